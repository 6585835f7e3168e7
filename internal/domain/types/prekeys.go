package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
)

// OneTimePreKeyPair is the full (private+public) one-time pre-key stored
// locally until it is consumed by the relay.
type OneTimePreKeyPair struct {
	ID   OneTimePreKeyID `json:"id"`
	Priv X25519Private   `json:"priv"`
	Pub  X25519Public    `json:"pub"`
}

// OneTimePreKeyPublic is only the public half, as handed out in a bundle.
type OneTimePreKeyPublic struct {
	ID  OneTimePreKeyID `json:"id"`
	Pub X25519Public    `json:"pub"`
}

// HashOneTimePreKeyID derives the identifier a counterparty uses to name
// a one-time pre-key: the SHA-256 hash of its public bytes. This lets the
// responder look up the matching private key without the server ever
// handing out an allocation-ordered identifier.
func HashOneTimePreKeyID(pub X25519Public) OneTimePreKeyID {
	sum := sha256.Sum256(pub[:])
	return OneTimePreKeyID(hex.EncodeToString(sum[:]))
}

// PreKeyBundle is the public-key package a principal registers with the
// relay so others can initiate a session asynchronously.
type PreKeyBundle struct {
	Username              Username              `json:"username"`
	IdentityKey           X25519Public          `json:"identity_key"`
	SigningKey            Ed25519Public         `json:"signing_key"`
	SignedPreKeyID        SignedPreKeyID        `json:"signed_pre_key_id"`
	SignedPreKey          X25519Public          `json:"signed_pre_key"`
	SignedPreKeySignature []byte                `json:"signed_pre_key_signature"`
	OneTimePreKey         *OneTimePreKeyPublic  `json:"one_time_pre_key,omitempty"`
}

// ErrBundleTooShort is returned by DecodeBundle on truncated input.
var ErrBundleTooShort = errors.New("pre-key bundle: truncated encoding")

// bundleFixedLen is the length of the fixed-order encoding without an
// embedded one-time pre-key: identity X25519 pub (32) ∥ identity Ed25519
// pub (32) ∥ signed pre-key pub (32) ∥ signature (64) ∥ otpk flag (1).
const bundleFixedLen = 32 + 32 + 32 + 64 + 1

// Encode serializes the bundle in the fixed field order the wire protocol
// requires: identity_pub ∥ signed_pre_pub ∥ signature ∥ otpk_flag[1] ∥
// otpk_pub?. "identity_pub" here is the concatenation of the X25519
// agreement key and the Ed25519 signing key that together make up the
// identity key pair. The signed pre-key id and username travel alongside
// this blob in the JSON envelope rather than in the fixed binary
// encoding, since they are never covered by the signature. The one-time
// pre-key id is not sent at all: DecodeBundle recomputes it from the
// public bytes.
func (b PreKeyBundle) Encode() []byte {
	out := make([]byte, 0, bundleFixedLen+32)
	out = append(out, b.IdentityKey[:]...)
	out = append(out, b.SigningKey[:]...)
	out = append(out, b.SignedPreKey[:]...)
	out = append(out, b.SignedPreKeySignature...)
	if b.OneTimePreKey != nil {
		out = append(out, 1)
		out = append(out, b.OneTimePreKey.Pub[:]...)
	} else {
		out = append(out, 0)
	}
	return out
}

// DecodeBundle parses the fixed-order encoding produced by Encode. The
// caller is expected to fill in Username and SignedPreKeyID separately;
// they are not part of the signed binary payload. An embedded one-time
// pre-key gets its ID recomputed here as HashOneTimePreKeyID of its
// public bytes.
func DecodeBundle(raw []byte) (PreKeyBundle, error) {
	if len(raw) < bundleFixedLen {
		return PreKeyBundle{}, ErrBundleTooShort
	}
	var b PreKeyBundle
	off := 0
	copy(b.IdentityKey[:], raw[off:off+32])
	off += 32
	copy(b.SigningKey[:], raw[off:off+32])
	off += 32
	copy(b.SignedPreKey[:], raw[off:off+32])
	off += 32
	b.SignedPreKeySignature = append([]byte(nil), raw[off:off+64]...)
	off += 64
	flag := raw[off]
	off++
	if flag == 1 {
		if len(raw) < off+32 {
			return PreKeyBundle{}, ErrBundleTooShort
		}
		var pub X25519Public
		copy(pub[:], raw[off:off+32])
		b.OneTimePreKey = &OneTimePreKeyPublic{ID: HashOneTimePreKeyID(pub), Pub: pub}
	}
	return b, nil
}

// SignablePayload returns the bytes the identity's Ed25519 key signs: the
// fixed 32-byte encoding of the signed pre-key public value, unambiguous
// because it carries no variable-length fields.
func (b PreKeyBundle) SignablePayload() []byte {
	cp := b.SignedPreKey
	return cp[:]
}

// InitialMessage is the first message an initiator sends a responder so
// the responder can derive the same X3DH root secret and authenticate
// the initiator.
type InitialMessage struct {
	InitiatorIdentityKey X25519Public    `json:"initiator_identity_key"`
	EphemeralKey         X25519Public    `json:"ephemeral_key"`
	SignedPreKeyID       SignedPreKeyID  `json:"signed_pre_key_id"`
	OneTimePreKeyID      OneTimePreKeyID `json:"one_time_pre_key_id,omitempty"`
	AssociatedData       []byte          `json:"associated_data"`
	Challenge            []byte          `json:"challenge"`
}

// ErrInitialMessageTooShort is returned by DecodeInitialMessage on
// truncated input.
var ErrInitialMessageTooShort = errors.New("initial message: truncated encoding")

// Encode serializes the message in the fixed/variable field order the
// wire protocol uses: identity_pub(32) ∥ ephemeral_pub(32) ∥
// spk_id_len[2,BE] ∥ spk_id ∥ otpk_id_len[2,BE] ∥ otpk_id ∥
// ad_len[2,BE] ∥ ad ∥ challenge_len[2,BE] ∥ challenge.
func (im InitialMessage) Encode() []byte {
	spkID := []byte(im.SignedPreKeyID)
	otpkID := []byte(im.OneTimePreKeyID)

	out := make([]byte, 0, 64+2+len(spkID)+2+len(otpkID)+2+len(im.AssociatedData)+2+len(im.Challenge))
	out = append(out, im.InitiatorIdentityKey[:]...)
	out = append(out, im.EphemeralKey[:]...)
	out = appendLenPrefixed(out, spkID)
	out = appendLenPrefixed(out, otpkID)
	out = appendLenPrefixed(out, im.AssociatedData)
	out = appendLenPrefixed(out, im.Challenge)
	return out
}

// DecodeInitialMessage parses the encoding produced by Encode.
func DecodeInitialMessage(raw []byte) (InitialMessage, error) {
	var im InitialMessage
	if len(raw) < 64 {
		return im, ErrInitialMessageTooShort
	}
	copy(im.InitiatorIdentityKey[:], raw[:32])
	copy(im.EphemeralKey[:], raw[32:64])
	rest := raw[64:]

	spkID, rest, err := readLenPrefixed(rest)
	if err != nil {
		return InitialMessage{}, err
	}
	otpkID, rest, err := readLenPrefixed(rest)
	if err != nil {
		return InitialMessage{}, err
	}
	ad, rest, err := readLenPrefixed(rest)
	if err != nil {
		return InitialMessage{}, err
	}
	challenge, _, err := readLenPrefixed(rest)
	if err != nil {
		return InitialMessage{}, err
	}

	im.SignedPreKeyID = SignedPreKeyID(spkID)
	if len(otpkID) > 0 {
		im.OneTimePreKeyID = OneTimePreKeyID(otpkID)
	}
	im.AssociatedData = ad
	im.Challenge = challenge
	return im, nil
}

func appendLenPrefixed(out, field []byte) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(field)))
	out = append(out, lenBuf[:]...)
	return append(out, field...)
}

func readLenPrefixed(raw []byte) (field, rest []byte, err error) {
	if len(raw) < 2 {
		return nil, nil, ErrInitialMessageTooShort
	}
	n := int(binary.BigEndian.Uint16(raw[:2]))
	raw = raw[2:]
	if len(raw) < n {
		return nil, nil, ErrInitialMessageTooShort
	}
	return append([]byte(nil), raw[:n]...), raw[n:], nil
}
