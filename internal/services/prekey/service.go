package prekey

import (
	"fmt"
	"time"

	"duskline/internal/crypto"
	"duskline/internal/domain"
)

// errNoSignedPreKey is returned when LoadBundle runs before any signed
// pre-key has ever been generated.
var errNoSignedPreKey = domain.NewError(domain.ErrInternal, "prekey: no signed pre-key available")

// Service manages pre-key pairs and builds the public bundle registered
// with the relay.
type Service struct {
	ids domain.IdentityStore
	ps  domain.PreKeyStore
}

// New returns a pre-key service backed by the given identity and pre-key stores.
func New(ids domain.IdentityStore, ps domain.PreKeyStore) *Service {
	return &Service{ids: ids, ps: ps}
}

// GenerateAndStorePreKeys creates a fresh signed pre-key and n one-time
// pre-keys, marks the signed pre-key current, and returns the public
// halves. Per the registration-only refill policy, this is the sole
// entry point that ever produces new one-time pre-keys.
func (s *Service) GenerateAndStorePreKeys(
	passphrase string,
	n int,
) (domain.X25519Public, []domain.X25519Public, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.X25519Public{}, nil, err
	}

	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.X25519Public{}, nil, err
	}
	spkID := domain.SignedPreKeyID(fmt.Sprintf("spk-%d", time.Now().UnixNano()))
	sig := crypto.SignEd25519(id.EdPriv, spkPub[:])
	if err := s.ps.SaveSignedPreKey(spkID, spkPriv, spkPub, sig); err != nil {
		return domain.X25519Public{}, nil, err
	}
	if err := s.ps.SetCurrentSignedPreKeyID(spkID); err != nil {
		return domain.X25519Public{}, nil, err
	}

	pairs := make([]domain.OneTimePreKeyPair, 0, n)
	publics := make([]domain.X25519Public, 0, n)
	for i := 0; i < n; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return domain.X25519Public{}, nil, err
		}
		pairs = append(pairs, domain.OneTimePreKeyPair{ID: domain.HashOneTimePreKeyID(pub), Priv: priv, Pub: pub})
		publics = append(publics, pub)
	}
	if err := s.ps.SaveOneTimePreKeys(pairs); err != nil {
		return domain.X25519Public{}, nil, err
	}
	return spkPub, publics, nil
}

// LoadBundle assembles the public bundle from the current signed pre-key
// and the remaining one-time pre-key pool, for handing to the relay at
// registration or refresh.
func (s *Service) LoadBundle(passphrase string, username domain.Username) (domain.PreKeyBundle, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	spkID, ok, err := s.ps.CurrentSignedPreKeyID()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, errNoSignedPreKey
	}
	_, spkPub, sig, found, err := s.ps.LoadSignedPreKey(spkID)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !found {
		return domain.PreKeyBundle{}, errNoSignedPreKey
	}

	oneTime, err := s.ps.ListOneTimePreKeyPublics()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	b := domain.PreKeyBundle{
		Username:              username,
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        spkID,
		SignedPreKey:          spkPub,
		SignedPreKeySignature: sig,
	}
	if len(oneTime) > 0 {
		otpk := oneTime[0]
		b.OneTimePreKey = &otpk
	}
	return b, nil
}

// Compile-time assertion that Service implements domain.PreKeyService.
var _ domain.PreKeyService = (*Service)(nil)
