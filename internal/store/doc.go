// Package store provides file-based persistence for duskline's long-term
// secret material: identity keys, signed/one-time pre-keys, and the
// per-relay account profile. Everything is serialised as JSON. Only the
// identity is encrypted at rest, under a passphrase-derived key (scrypt +
// AES-256-GCM, internal/crypto); the pre-key files and the account
// profiles are written as plain JSON. All methods are concurrency-safe via internal
// locking. Stored files live under the caller's configured home
// directory.
//
// Ratchet state and X3DH session material are deliberately absent here:
// message history is never persisted, so both the client session
// manager and the relay keep that state in memory only, for the
// process lifetime.
//
// The package includes stores for:
//   - Identity keys (IdentityFileStore)
//   - Pre-keys (PrekeyFileStore)
//   - Account profiles (AccountFileStore)
package store
