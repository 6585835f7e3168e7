package store

import (
	"path/filepath"
	"sync"

	"duskline/internal/domain"
)

// profilesFile maps "relayURL|username" to the account profile pinned
// against that relay. Nothing in it is secret: it holds the relay's
// public identity key and fingerprint, so it stays plain JSON.
const profilesFile = "profiles.json"

// AccountFileStore persists one account profile per (relay, username)
// pair, most importantly the relay identity key pinned at registration.
type AccountFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewAccountFileStore returns an AccountFileStore rooted at dir.
func NewAccountFileStore(dir string) *AccountFileStore {
	return &AccountFileStore{dir: dir}
}

// SaveAccountProfile stores or replaces the profile under its
// (ServerURL, Username) key. Re-registering against the same relay
// overwrites the previous pin.
func (s *AccountFileStore) SaveAccountProfile(profile domain.AccountProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.readProfiles()
	if err != nil {
		return err
	}
	profiles[profileKey(profile.ServerURL, profile.Username)] = profile
	return writeJSON(filepath.Join(s.dir, profilesFile), profiles, 0o600)
}

// LoadAccountProfile retrieves the profile pinned for (serverURL,
// username); ok is false when this client has never registered there.
func (s *AccountFileStore) LoadAccountProfile(
	serverURL string,
	username domain.Username,
) (domain.AccountProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.readProfiles()
	if err != nil {
		return domain.AccountProfile{}, false, err
	}
	profile, ok := profiles[profileKey(serverURL, username)]
	return profile, ok, nil
}

func (s *AccountFileStore) readProfiles() (map[string]domain.AccountProfile, error) {
	profiles := make(map[string]domain.AccountProfile)
	if err := readJSON(filepath.Join(s.dir, profilesFile), &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// profileKey joins the relay URL and username with a separator no valid
// username can contain (usernames are alphanumeric).
func profileKey(serverURL string, username domain.Username) string {
	return serverURL + "|" + username.String()
}

// Compile-time assertion that AccountFileStore implements domain.AccountStore.
var _ domain.AccountStore = (*AccountFileStore)(nil)
