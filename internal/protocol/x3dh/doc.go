// Package x3dh implements the X3DH key-agreement used to bootstrap a
// Double Ratchet session between two parties.
//
// # Overview
//
// X3DH lets an initiator derive a pair of session keys with a responder
// who has published a prekey bundle. The bundle contains:
//   - Identity key (X25519 + Ed25519)
//   - Signed prekey (X25519) and its Ed25519 signature
//   - Optional one-time prekey (X25519)
//
// # Flows
//
// Initiator (DeriveInitial):
//  1. Verify the bundle's signed prekey signature.
//  2. Generate an ephemeral X25519 key pair.
//  3. Compute DH1..DH3 (DH4 if an OTPK is present) and HKDF them into a
//     64-byte OKM, split into an encrypt key and a decrypt key.
//  4. Seal an authentication challenge under the encrypt key and build
//     the Initial Message.
//
// Responder (ProcessInitial):
//  1. Recompute the same DH values from local private counterparts.
//  2. Derive the same OKM and open the challenge; reject on any mismatch.
//
// # Errors
//
// InvalidSignature is returned when the bundle signature fails
// verification. InvalidKey is returned when the challenge fails to
// authenticate the claimed initiator identity.
package x3dh
