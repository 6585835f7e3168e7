package interfaces

import domaintypes "duskline/internal/domain/types"

// IdentityService creates, retrieves, and inspects a principal's
// identity keys.
type IdentityService interface {
	GenerateIdentity(passphrase string) (
		domaintypes.Identity,
		domaintypes.Fingerprint,
		error,
	)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// PreKeyService generates pre-keys and assembles the public bundle that
// gets registered with the relay.
type PreKeyService interface {
	GenerateAndStorePreKeys(passphrase string, oneTimeCount int) (
		domaintypes.X25519Public,
		[]domaintypes.X25519Public,
		error,
	)
	LoadBundle(passphrase string, username domaintypes.Username) (domaintypes.PreKeyBundle, error)
}
