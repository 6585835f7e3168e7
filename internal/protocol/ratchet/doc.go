// Package ratchet implements the Double Ratchet algorithm following
// Signal's 2016 design, sealing every message with AES-256-GCM
// (internal/crypto) under a key derived by a symmetric KDF chain.
//
// The algorithm maintains a root key and two message chains (send and
// receive). Each message advances a KDF chain so that keys are forward
// secure. When a party changes its DH ratchet public key, both sides
// derive new chain keys from a new root derived via DH. Out-of-order
// message keys are cached in a bounded skipped-key map; exceeding either
// the per-step or total cap fails the operation with TooManySkipped
// rather than silently evicting the oldest entry.
//
// Concurrency: RatchetState is NOT safe for concurrent use. Callers must
// serialise access per conversation.
package ratchet
