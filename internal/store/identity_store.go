package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"duskline/internal/domain"
	"duskline/internal/util/memzero"
)

// identityFile holds the scrypt+AES-GCM blob wrapping the identity key
// pairs. The extension marks it as opaque ciphertext, not inspectable
// JSON like the other store files.
const identityFile = "identity.enc"

// IdentityFileStore persists the local identity key pairs, encrypted at
// rest under a passphrase-derived key. Both clients and the relay use
// it for their own identities.
type IdentityFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{dir: dir}
}

// SaveIdentity seals id under passphrase and writes it atomically, so a
// crash mid-write can never leave a truncated blob where the only copy
// of the identity used to be.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	N, r, p := scryptParamsDefault()
	blob, err := encrypt(passphrase, raw, N, r, p)
	memzero.Zero(raw)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, identityFile), blob, 0o600)
}

// LoadIdentity reads and unseals the identity. The intermediate
// plaintext buffer is zeroed once the key material has been copied into
// the returned Identity.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := os.ReadFile(filepath.Join(s.dir, identityFile))
	if err != nil {
		return domain.Identity{}, err
	}
	raw, err := decrypt(passphrase, blob)
	if err != nil {
		return domain.Identity{}, err
	}
	var id domain.Identity
	err = json.Unmarshal(raw, &id)
	memzero.Zero(raw)
	if err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// Compile-time assertion that IdentityFileStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityFileStore)(nil)
