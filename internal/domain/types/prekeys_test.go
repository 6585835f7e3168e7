package types_test

import (
	"bytes"
	"testing"

	"duskline/internal/domain/types"
)

func TestPreKeyBundle_EncodeDecodeRoundTrip(t *testing.T) {
	var identity, signing, spk, otpk types.X25519Public
	for i := range identity {
		identity[i] = byte(i)
		signing[i] = byte(i + 1)
		spk[i] = byte(i + 2)
		otpk[i] = byte(i + 3)
	}
	b := types.PreKeyBundle{
		IdentityKey:           identity,
		SigningKey:            types.Ed25519Public(signing),
		SignedPreKey:          spk,
		SignedPreKeySignature: bytes.Repeat([]byte{0xAB}, 64),
		OneTimePreKey:         &types.OneTimePreKeyPublic{Pub: otpk},
	}

	decoded, err := types.DecodeBundle(b.Encode())
	if err != nil {
		t.Fatalf("DecodeBundle: %v", err)
	}
	if decoded.IdentityKey != b.IdentityKey || decoded.SignedPreKey != b.SignedPreKey {
		t.Fatal("DecodeBundle: fixed fields did not round-trip")
	}
	if decoded.OneTimePreKey == nil || decoded.OneTimePreKey.Pub != otpk {
		t.Fatal("DecodeBundle: one-time pre-key did not round-trip")
	}
	if decoded.OneTimePreKey.ID != types.HashOneTimePreKeyID(otpk) {
		t.Fatal("DecodeBundle: one-time pre-key id is not the content hash of its public key")
	}
}

func TestPreKeyBundle_EncodeDecodeRoundTrip_NoOneTimePreKey(t *testing.T) {
	b := types.PreKeyBundle{SignedPreKeySignature: bytes.Repeat([]byte{0x01}, 64)}
	decoded, err := types.DecodeBundle(b.Encode())
	if err != nil {
		t.Fatalf("DecodeBundle: %v", err)
	}
	if decoded.OneTimePreKey != nil {
		t.Fatal("DecodeBundle: want nil one-time pre-key, got one")
	}
}

func TestDecodeBundle_RejectsTruncated(t *testing.T) {
	if _, err := types.DecodeBundle([]byte{0x01, 0x02}); err != types.ErrBundleTooShort {
		t.Fatalf("DecodeBundle: want ErrBundleTooShort, got %v", err)
	}
}

func TestInitialMessage_EncodeDecodeRoundTrip(t *testing.T) {
	var initiator, eph types.X25519Public
	for i := range initiator {
		initiator[i] = byte(i)
		eph[i] = byte(255 - i)
	}
	im := types.InitialMessage{
		InitiatorIdentityKey: initiator,
		EphemeralKey:         eph,
		SignedPreKeyID:       types.SignedPreKeyID("spk-1700000000"),
		OneTimePreKeyID:      types.OneTimePreKeyID("deadbeef"),
		AssociatedData:       []byte("alice|bob"),
		Challenge:            bytes.Repeat([]byte{0x42}, 16),
	}

	decoded, err := types.DecodeInitialMessage(im.Encode())
	if err != nil {
		t.Fatalf("DecodeInitialMessage: %v", err)
	}
	if decoded.InitiatorIdentityKey != im.InitiatorIdentityKey || decoded.EphemeralKey != im.EphemeralKey {
		t.Fatal("DecodeInitialMessage: fixed keys did not round-trip")
	}
	if decoded.SignedPreKeyID != im.SignedPreKeyID || decoded.OneTimePreKeyID != im.OneTimePreKeyID {
		t.Fatal("DecodeInitialMessage: ids did not round-trip")
	}
	if !bytes.Equal(decoded.AssociatedData, im.AssociatedData) || !bytes.Equal(decoded.Challenge, im.Challenge) {
		t.Fatal("DecodeInitialMessage: variable-length fields did not round-trip")
	}
}

func TestInitialMessage_EncodeDecodeRoundTrip_NoOneTimePreKey(t *testing.T) {
	im := types.InitialMessage{SignedPreKeyID: types.SignedPreKeyID("spk-1")}
	decoded, err := types.DecodeInitialMessage(im.Encode())
	if err != nil {
		t.Fatalf("DecodeInitialMessage: %v", err)
	}
	if decoded.OneTimePreKeyID != "" {
		t.Fatalf("DecodeInitialMessage: want empty one-time pre-key id, got %q", decoded.OneTimePreKeyID)
	}
}

func TestDecodeInitialMessage_RejectsTruncated(t *testing.T) {
	if _, err := types.DecodeInitialMessage([]byte{0x01}); err != types.ErrInitialMessageTooShort {
		t.Fatalf("DecodeInitialMessage: want ErrInitialMessageTooShort, got %v", err)
	}
}
