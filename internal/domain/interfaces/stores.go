package interfaces

import domaintypes "duskline/internal/domain/types"

// IdentityStore persists a principal's long-term identity key pair,
// encrypted at rest under a passphrase-derived key. Both the client and
// the relay use the same store shape for their own identities.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// PreKeyStore manages the signed pre-key and the one-time pre-key pool
// on disk. One-time pre-keys are consumed exactly once: ConsumeOneTimePreKey
// removes the entry it returns.
type PreKeyStore interface {
	SaveSignedPreKey(
		id domaintypes.SignedPreKeyID,
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		sig []byte,
	) error
	LoadSignedPreKey(
		id domaintypes.SignedPreKeyID,
	) (
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		sig []byte,
		ok bool,
		err error,
	)

	SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error
	ConsumeOneTimePreKey(id domaintypes.OneTimePreKeyID) (
		priv domaintypes.X25519Private,
		ok bool,
		err error,
	)
	ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error)

	SetCurrentSignedPreKeyID(id domaintypes.SignedPreKeyID) error
	CurrentSignedPreKeyID() (domaintypes.SignedPreKeyID, bool, error)
}

// AccountStore persists the local account profile for a relay server,
// including the relay identity fingerprint pinned at first connection.
type AccountStore interface {
	SaveAccountProfile(profile domaintypes.AccountProfile) error
	LoadAccountProfile(serverURL string, username domaintypes.Username) (domaintypes.AccountProfile, bool, error)
}
