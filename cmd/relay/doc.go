// Package main runs the duskline relay: a WebSocket server that never
// sees plaintext or a private key belonging to any client, mediating
// only X3DH handshake material, registered pre-key bundles, and
// Double-Ratchet ciphertext it cannot open.
//
// On first start it generates and persists its own long-term identity
// and signed pre-key under --home. The identity is encrypted at rest
// under --passphrase exactly like a client identity; the signed pre-key
// is stored as plain JSON, like a client's pre-keys. Every later start
// must supply the
// same passphrase to unlock it — the relay's identity, and therefore
// the fingerprint operators publish out of band for clients to pin, is
// stable across restarts.
//
// All registrations and one-time pre-key pools live in memory only and
// are lost on process exit; messages are forwarded, never stored.
package main
