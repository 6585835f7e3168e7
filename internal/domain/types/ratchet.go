package types

import "duskline/internal/util/memzero"

// RatchetHeader accompanies every Double-Ratchet ciphertext and is
// folded into the AEAD associated data on both encrypt and decrypt.
type RatchetHeader struct {
	DHPub []byte `json:"dh_pub"`
	PN    uint32 `json:"pn"`
	N     uint32 `json:"n"`
}

// RatchetState is the per-peer Double-Ratchet state: root, sending and
// receiving chains, counters, and the skipped-message-key cache. It
// lives in memory only and never touches disk: message history and
// ratchet state do not survive a process restart.
type RatchetState struct {
	RootKey   []byte
	DHPriv    X25519Private
	DHPub     X25519Public
	PeerDHPub X25519Public
	// HasPeerDH reports whether PeerDHPub has ever been set. A fresh
	// responder state (init_bob) starts with no peer ratchet public at
	// all, which X25519Public's zero value cannot represent on its own.
	HasPeerDH bool

	// SendChainKey is nil exactly when the local party has not performed
	// an outbound DH-step since the last inbound DH-step. RecvChainKey is
	// nil until the first inbound DH-step.
	SendChainKey []byte
	RecvChainKey []byte

	Ns, Nr, PN uint32

	// Skipped maps a (peer ratchet public, message index) pair, encoded
	// by skippedKeyID, to the message key cached for an out-of-order
	// message that has not yet arrived.
	Skipped map[string][]byte
}

// Zero wipes every secret the state carries.
func (s *RatchetState) Zero() {
	memzero.Zero(s.RootKey)
	s.DHPriv.Zero()
	memzero.Zero(s.SendChainKey)
	memzero.Zero(s.RecvChainKey)
	for k, v := range s.Skipped {
		memzero.Zero(v)
		delete(s.Skipped, k)
	}
}

// Conversation pairs a peer's ratchet state with its username so the
// client's session table can look it up by peer.
type Conversation struct {
	Peer  Username
	State RatchetState
}
