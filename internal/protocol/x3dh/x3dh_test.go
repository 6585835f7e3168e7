package x3dh_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"duskline/internal/crypto"
	"duskline/internal/domain"
	"duskline/internal/protocol/x3dh"
)

func makeIdentity(t *testing.T) domain.Identity {
	t.Helper()
	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	return domain.Identity{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
}

func signedBundle(t *testing.T, bob domain.Identity, withOTPK bool) (domain.PreKeyBundle, domain.X25519Private, *domain.X25519Private) {
	t.Helper()
	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519 (spk): %v", err)
	}
	bundle := domain.PreKeyBundle{
		Username:       domain.Username("bob"),
		IdentityKey:    bob.XPub,
		SigningKey:     bob.EdPub,
		SignedPreKeyID: domain.SignedPreKeyID("spk-1"),
		SignedPreKey:   spkPub,
	}
	bundle.SignedPreKeySignature = crypto.SignEd25519(bob.EdPriv, bundle.SignablePayload())

	var otpkPriv *domain.X25519Private
	if withOTPK {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			t.Fatalf("GenerateX25519 (otpk): %v", err)
		}
		bundle.OneTimePreKey = &domain.OneTimePreKeyPublic{ID: domain.HashOneTimePreKeyID(pub), Pub: pub}
		otpkPriv = &priv
	}
	return bundle, spkPriv, otpkPriv
}

func TestVerifyBundle(t *testing.T) {
	bob := makeIdentity(t)
	bundle, _, _ := signedBundle(t, bob, true)
	if err := x3dh.VerifyBundle(bundle); err != nil {
		t.Fatalf("VerifyBundle: %v", err)
	}
	bundle.SignedPreKeySignature[3] ^= 0x01
	if err := x3dh.VerifyBundle(bundle); err == nil {
		t.Fatal("VerifyBundle: want error on tampered signature, got nil")
	}
}

func TestX3DHHandshake_NoOneTimePreKey(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, _ := signedBundle(t, bob, false)

	aliceResult, im, err := x3dh.DeriveInitial(alice, bundle)
	if err != nil {
		t.Fatalf("DeriveInitial: %v", err)
	}

	bobResult, err := x3dh.ProcessInitial(bob, spkPriv, nil, im)
	if err != nil {
		t.Fatalf("ProcessInitial: %v", err)
	}

	if !bytes.Equal(aliceResult.EncryptKey, bobResult.DecryptKey) {
		t.Fatal("alice encrypt key != bob decrypt key")
	}
	if !bytes.Equal(bobResult.EncryptKey, aliceResult.DecryptKey) {
		t.Fatal("bob encrypt key != alice decrypt key")
	}
	if bytes.Equal(aliceResult.EncryptKey, make([]byte, 32)) {
		t.Fatal("encrypt key is all-zero")
	}
}

func TestX3DHHandshake_WithOneTimePreKey(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, otpkPriv := signedBundle(t, bob, true)

	aliceResult, im, err := x3dh.DeriveInitial(alice, bundle)
	if err != nil {
		t.Fatalf("DeriveInitial: %v", err)
	}
	if im.OneTimePreKeyID != bundle.OneTimePreKey.ID {
		t.Fatalf("initial message one-time pre-key id mismatch: got %q want %q", im.OneTimePreKeyID, bundle.OneTimePreKey.ID)
	}

	bobResult, err := x3dh.ProcessInitial(bob, spkPriv, otpkPriv, im)
	if err != nil {
		t.Fatalf("ProcessInitial: %v", err)
	}

	if !bytes.Equal(aliceResult.EncryptKey, bobResult.DecryptKey) {
		t.Fatal("alice encrypt key != bob decrypt key")
	}
	if !bytes.Equal(bobResult.EncryptKey, aliceResult.DecryptKey) {
		t.Fatal("bob encrypt key != alice decrypt key")
	}
}

func TestDeriveInitialRejectsBadSignatureBundle(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, _, _ := signedBundle(t, bob, false)
	bundle.SignedPreKeySignature[0] ^= 0xFF

	if _, _, err := x3dh.DeriveInitial(alice, bundle); err == nil {
		t.Fatal("DeriveInitial: want error on tampered signature, got nil")
	}
}

func TestProcessInitialRejectsTamperedChallenge(t *testing.T) {
	alice := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, _ := signedBundle(t, bob, false)

	_, im, err := x3dh.DeriveInitial(alice, bundle)
	if err != nil {
		t.Fatalf("DeriveInitial: %v", err)
	}
	im.Challenge[len(im.Challenge)-1] ^= 0x01

	if _, err := x3dh.ProcessInitial(bob, spkPriv, nil, im); err == nil {
		t.Fatal("ProcessInitial: want error on tampered challenge, got nil")
	}
}

func TestProcessInitialPinnedRejectsUnexpectedInitiator(t *testing.T) {
	alice := makeIdentity(t)
	mallory := makeIdentity(t)
	bob := makeIdentity(t)
	bundle, spkPriv, _ := signedBundle(t, bob, false)

	_, im, err := x3dh.DeriveInitial(alice, bundle)
	if err != nil {
		t.Fatalf("DeriveInitial: %v", err)
	}

	if _, err := x3dh.ProcessInitialPinned(bob, spkPriv, nil, im, mallory.XPub); err == nil {
		t.Fatal("ProcessInitialPinned: want error on unexpected initiator, got nil")
	}
}

func TestHKDFVectorRFC5869Case1(t *testing.T) {
	ikm := bytes.Repeat([]byte{0x0b}, 22)
	salt := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c}
	info := []byte{0xf0, 0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8, 0xf9}

	want, err := hex.DecodeString("3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865")
	if err != nil {
		t.Fatalf("bad hex vector: %v", err)
	}

	got, err := crypto.HKDFExpand(ikm, salt, info, 42)
	if err != nil {
		t.Fatalf("HKDFExpand: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("HKDFExpand: got %x want %x", got, want)
	}
}
