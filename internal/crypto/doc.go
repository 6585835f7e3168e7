// Package crypto exposes the minimal primitives used by duskline.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - HKDF-SHA-256 key derivation (HKDFExpand)
//   - AES-256-GCM sealing and opening for the wire envelope (Seal, Open)
//   - A CSPRNG byte source (RandomBytes)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Key generation and DH return fixed-size array types defined in
// internal/domain; the AEAD, HKDF, random-byte, signing and fingerprint
// helpers return byte slices or strings. Callers should treat returned secrets as
// sensitive and rely on internal/util/memzero when practical to reduce
// their lifetime in memory.
package crypto
