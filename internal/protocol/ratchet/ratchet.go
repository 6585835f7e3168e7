package ratchet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"duskline/internal/crypto"
	"duskline/internal/domain"
	"duskline/internal/util/memzero"
)

const (
	// maxSkippedTotal bounds the size of the skipped-message-key cache
	// across the whole conversation.
	maxSkippedTotal = 1000
	// maxSkipPerStep bounds how many keys a single ratchet step is
	// allowed to skip before failing outright. Both caps fail the
	// operation on overflow rather than silently evicting the oldest
	// entry.
	maxSkipPerStep = 2000

	// rkInfo labels the KDF_RK derivation so it never collides with the
	// X3DH root derivation even if ever fed the same ikm.
	rkInfo = "rk"
)

var (
	ckConstNext = []byte{0x01}
	ckConstMK   = []byte{0x02}
)

// InitAlice seeds the initiator side of a Double-Ratchet session. sharedKey
// is the X3DH root secret; bobSignedPreKeyPub is the responder's signed
// pre-key public value, used as Bob's initial ratchet public so Alice can
// perform the first DH-ratchet step immediately.
func InitAlice(sharedKey []byte, bobSignedPreKeyPub domain.X25519Public) (domain.RatchetState, error) {
	dhPriv, dhPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}
	dh, err := crypto.DH(dhPriv, bobSignedPreKeyPub)
	if err != nil {
		return domain.RatchetState{}, err
	}
	rk, sendCK, err := kdfRK(sharedKey, dh[:])
	memzero.Zero(dh[:])
	if err != nil {
		return domain.RatchetState{}, err
	}

	return domain.RatchetState{
		RootKey:      rk,
		DHPriv:       dhPriv,
		DHPub:        dhPub,
		PeerDHPub:    bobSignedPreKeyPub,
		HasPeerDH:    true,
		SendChainKey: sendCK,
		RecvChainKey: nil,
		Skipped:      make(map[string][]byte),
	}, nil
}

// InitBob seeds the responder side of a Double-Ratchet session. bobRatchetPriv
// / bobRatchetPub is the keypair Bob published as his signed pre-key — its
// private half becomes Bob's first ratchet private key.
func InitBob(sharedKey []byte, bobRatchetPriv domain.X25519Private, bobRatchetPub domain.X25519Public) (domain.RatchetState, error) {
	return domain.RatchetState{
		RootKey:      append([]byte(nil), sharedKey...),
		DHPriv:       bobRatchetPriv,
		DHPub:        bobRatchetPub,
		SendChainKey: nil,
		RecvChainKey: nil,
		Skipped:      make(map[string][]byte),
	}, nil
}

// Encrypt produces a header and ciphertext for plaintext under st, binding
// ad (e.g. sender/recipient identities) into the AEAD associated data
// alongside the serialized header.
func Encrypt(st *domain.RatchetState, ad, plaintext []byte) (domain.RatchetHeader, []byte, error) {
	if st.SendChainKey == nil {
		if !st.HasPeerDH {
			return domain.RatchetHeader{}, nil, domain.NewError(domain.ErrInternal, "ratchet: no peer ratchet key to send to yet")
		}
		newPriv, newPub, err := crypto.GenerateX25519()
		if err != nil {
			return domain.RatchetHeader{}, nil, err
		}
		dh, err := crypto.DH(newPriv, st.PeerDHPub)
		if err != nil {
			return domain.RatchetHeader{}, nil, err
		}
		rk, sendCK, err := kdfRK(st.RootKey, dh[:])
		memzero.Zero(dh[:])
		if err != nil {
			return domain.RatchetHeader{}, nil, err
		}
		st.PN = st.Ns
		st.Ns = 0
		memzero.Zero(st.RootKey)
		st.RootKey = rk
		st.DHPriv, st.DHPub = newPriv, newPub
		st.SendChainKey = sendCK
	}

	mk := kdfCKAdvance(&st.SendChainKey)
	header := domain.RatchetHeader{DHPub: append([]byte(nil), st.DHPub[:]...), PN: st.PN, N: st.Ns}

	nonce, ciphertext, err := crypto.Seal(mk, sealAD(ad, header), plaintext)
	memzero.Zero(mk)
	if err != nil {
		return domain.RatchetHeader{}, nil, err
	}
	st.Ns++
	return header, append(nonce, ciphertext...), nil
}

// Decrypt opens a ciphertext produced by Encrypt against st, handling
// skipped-key lookups, DH-ratchet steps on a new peer public, and
// within-chain skipping.
//
// All state transitions run against scratch values and commit only after
// the AEAD check passes: a forged, tampered, or replayed ciphertext
// leaves st exactly as it was, so the next correctly-ordered message
// still decrypts. The one exception is a hit in the skipped-key cache —
// that key is consumed by the attempt, successful or not.
func Decrypt(st *domain.RatchetState, ad []byte, header domain.RatchetHeader, wire []byte) ([]byte, error) {
	if len(header.DHPub) != 32 {
		return nil, domain.NewError(domain.ErrInvalidLength, "ratchet: header dh_pub must be 32 bytes")
	}
	if len(wire) < crypto.NonceSize {
		return nil, domain.NewError(domain.ErrInvalidLength, "ratchet: ciphertext shorter than a nonce")
	}
	nonce, ciphertext := wire[:crypto.NonceSize], wire[crypto.NonceSize:]

	if mk, ok := st.Skipped[skippedKeyID(header.DHPub, header.N)]; ok {
		delete(st.Skipped, skippedKeyID(header.DHPub, header.N))
		pt, err := crypto.Open(mk, nonce, sealAD(ad, header), ciphertext)
		memzero.Zero(mk)
		if err != nil {
			return nil, err
		}
		return pt, nil
	}

	var (
		rootKey = st.RootKey
		dhPriv  = st.DHPriv
		dhPub   = st.DHPub
		peerDH  = st.PeerDHPub
		hasPeer = st.HasPeerDH
		sendCK  = st.SendChainKey
		recvCK  = st.RecvChainKey
		ns      = st.Ns
		nr      = st.Nr
		pn      = st.PN
		pending = make(map[string][]byte)
		stepped = false
	)

	// skipAhead advances the scratch receiving chain to until, staging
	// each intermediate message key in pending, failing rather than
	// silently evicting once either cap would be exceeded.
	skipAhead := func(until uint32) error {
		if recvCK == nil || until <= nr {
			return nil
		}
		if until-nr > maxSkipPerStep {
			return domain.NewError(domain.ErrTooManySkipped, "ratchet: step would skip %d keys (limit %d)", until-nr, maxSkipPerStep)
		}
		if len(st.Skipped)+len(pending)+int(until-nr) > maxSkippedTotal {
			return domain.NewError(domain.ErrTooManySkipped, "ratchet: skipped-key cache would exceed %d entries", maxSkippedTotal)
		}
		for nr < until {
			var mk []byte
			recvCK, mk = kdfCK(recvCK)
			pending[skippedKeyID(peerDH[:], nr)] = mk
			nr++
		}
		return nil
	}

	discard := func() {
		for _, mk := range pending {
			memzero.Zero(mk)
		}
	}

	if !hasPeer || !equal32(peerDH[:], header.DHPub) {
		if err := skipAhead(header.PN); err != nil {
			discard()
			return nil, err
		}

		var newPeer domain.X25519Public
		copy(newPeer[:], header.DHPub)

		dh1, err := crypto.DH(dhPriv, newPeer)
		if err != nil {
			discard()
			return nil, err
		}
		rk2, newRecvCK, err := kdfRK(rootKey, dh1[:])
		memzero.Zero(dh1[:])
		if err != nil {
			discard()
			return nil, err
		}

		newPriv, newPub, err := crypto.GenerateX25519()
		if err != nil {
			discard()
			return nil, err
		}
		dh2, err := crypto.DH(newPriv, newPeer)
		if err != nil {
			discard()
			return nil, err
		}
		rk3, newSendCK, err := kdfRK(rk2, dh2[:])
		memzero.Zero(dh2[:])
		memzero.Zero(rk2)
		if err != nil {
			discard()
			return nil, err
		}

		pn = ns
		ns, nr = 0, 0
		rootKey = rk3
		dhPriv, dhPub = newPriv, newPub
		peerDH, hasPeer = newPeer, true
		sendCK, recvCK = newSendCK, newRecvCK
		stepped = true
	}

	if err := skipAhead(header.N); err != nil {
		discard()
		return nil, err
	}
	if recvCK == nil {
		discard()
		return nil, domain.NewError(domain.ErrUnknownMessageIndex, "ratchet: no receiving chain for message %d", header.N)
	}

	recvCK, mk := kdfCK(recvCK)
	pt, err := crypto.Open(mk, nonce, sealAD(ad, header), ciphertext)
	memzero.Zero(mk)
	if err != nil {
		discard()
		return nil, err
	}
	nr++

	for k, v := range pending {
		st.Skipped[k] = v
	}
	if stepped {
		memzero.Zero(st.RootKey)
		memzero.Zero(st.SendChainKey)
		st.DHPriv.Zero()
	}
	if st.RecvChainKey != nil {
		memzero.Zero(st.RecvChainKey)
	}
	st.RootKey = rootKey
	st.DHPriv, st.DHPub = dhPriv, dhPub
	st.PeerDHPub, st.HasPeerDH = peerDH, hasPeer
	st.SendChainKey = sendCK
	st.RecvChainKey = recvCK
	st.Ns, st.Nr, st.PN = ns, nr, pn
	return pt, nil
}

// kdfRK implements KDF_RK: HKDF-SHA-256 with salt = rk, ikm = dh,
// info = "rk", L = 64, split into a 32-byte root key and 32-byte chain key.
func kdfRK(rk, dh []byte) (newRK, ck []byte, err error) {
	okm, err := crypto.HKDFExpand(dh, rk, []byte(rkInfo), 64)
	if err != nil {
		return nil, nil, err
	}
	return okm[:32], okm[32:], nil
}

// kdfCK implements KDF_CK: two HMAC-SHA-256 invocations under ck with
// distinct single-byte constants, producing the next chain key and a
// 32-byte message key. It leaves ck itself untouched so Decrypt can run
// the chain forward speculatively before committing.
func kdfCK(ck []byte) (next, mk []byte) {
	return hmacSHA256(ck, ckConstNext), hmacSHA256(ck, ckConstMK)
}

// kdfCKAdvance replaces *ck with the next chain key in place, zeroing
// the old one, and returns the message key.
func kdfCKAdvance(ck *[]byte) []byte {
	next, mk := kdfCK(*ck)
	memzero.Zero(*ck)
	*ck = next
	return mk
}

func hmacSHA256(key, msg []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(msg)
	return m.Sum(nil)
}

func sealAD(ad []byte, h domain.RatchetHeader) []byte {
	out := make([]byte, 0, len(ad)+len(h.DHPub)+8)
	out = append(out, ad...)
	out = append(out, h.DHPub...)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.PN)
	out = append(out, b[:]...)
	binary.BigEndian.PutUint32(b[:], h.N)
	out = append(out, b[:]...)
	return out
}

func skippedKeyID(peerDHPub []byte, n uint32) string {
	b := make([]byte, 32+4)
	copy(b, peerDHPub)
	binary.BigEndian.PutUint32(b[32:], n)
	return string(b)
}

func equal32(a, b []byte) bool {
	if len(a) != 32 || len(b) != 32 {
		return false
	}
	var v byte
	for i := 0; i < 32; i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
