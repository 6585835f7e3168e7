// Package envelope implements the self-describing AEAD frame used by the
// client-server outer transport layer. The at-rest identity store does
// not use this frame; it seals with internal/crypto directly and keeps
// its own salt/nonce/ciphertext JSON blob.
//
// A frame is the base64 encoding of:
//
//	nonce[12] ∥ ad_len[2, big-endian] ∥ ad ∥ ciphertext∥tag
//
// Sealing draws a fresh random nonce per call. Opening recomputes the frame
// layout, authenticates the ciphertext under the embedded ad, and requires
// the recovered ad to equal the caller's expected ad in constant time before
// returning plaintext.
package envelope
