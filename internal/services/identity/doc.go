// Package identity manages creation, encryption and loading of the local
// identity key pair.
//
// It enforces passphrase policy, generates the X25519 and Ed25519 key
// pairs, and persists them via domain.IdentityStore.
package identity
