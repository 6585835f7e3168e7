package prekey_test

import (
	"testing"

	"duskline/internal/crypto"
	"duskline/internal/domain"
	"duskline/internal/services/identity"
	"duskline/internal/services/prekey"
	"duskline/internal/store"
)

const strongPass = "Tr0ub4dor&3xtra"

func newServices(t *testing.T) (*identity.Service, *prekey.Service, domain.PreKeyStore) {
	t.Helper()
	dir := t.TempDir()
	ids := store.NewIdentityFileStore(dir)
	ps := store.NewPrekeyFileStore(dir)
	return identity.New(ids), prekey.New(ids, ps), ps
}

func TestLoadBundle_BeforeGeneration(t *testing.T) {
	idSvc, pkSvc, _ := newServices(t)
	if _, _, err := idSvc.GenerateIdentity(strongPass); err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	if _, err := pkSvc.LoadBundle(strongPass, domain.Username("alice")); err == nil {
		t.Fatal("LoadBundle: want error before any signed pre-key exists, got nil")
	}
}

func TestGenerateAndStorePreKeys_BundleVerifies(t *testing.T) {
	idSvc, pkSvc, ps := newServices(t)
	id, _, err := idSvc.GenerateIdentity(strongPass)
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}

	spkPub, otpks, err := pkSvc.GenerateAndStorePreKeys(strongPass, 5)
	if err != nil {
		t.Fatalf("GenerateAndStorePreKeys: %v", err)
	}
	if len(otpks) != 5 {
		t.Fatalf("GenerateAndStorePreKeys: want 5 one-time pre-keys, got %d", len(otpks))
	}

	bundle, err := pkSvc.LoadBundle(strongPass, domain.Username("alice"))
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}
	if bundle.SignedPreKey != spkPub {
		t.Fatal("LoadBundle: signed pre-key public does not match what was generated")
	}
	if bundle.OneTimePreKey == nil {
		t.Fatal("LoadBundle: want an embedded one-time pre-key, got nil")
	}
	if !crypto.VerifyEd25519(id.EdPub, bundle.SignablePayload(), bundle.SignedPreKeySignature) {
		t.Fatal("LoadBundle: signed pre-key signature does not verify")
	}

	remaining, err := ps.ListOneTimePreKeyPublics()
	if err != nil {
		t.Fatalf("ListOneTimePreKeyPublics: %v", err)
	}
	if len(remaining) != 5 {
		t.Fatalf("ListOneTimePreKeyPublics: want 5 remaining (LoadBundle must not consume), got %d", len(remaining))
	}
}

func TestConsumeOneTimePreKey_RemovesEntryOnce(t *testing.T) {
	idSvc, pkSvc, ps := newServices(t)
	if _, _, err := idSvc.GenerateIdentity(strongPass); err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	_, otpks, err := pkSvc.GenerateAndStorePreKeys(strongPass, 1)
	if err != nil {
		t.Fatalf("GenerateAndStorePreKeys: %v", err)
	}
	id := domain.HashOneTimePreKeyID(otpks[0])

	if _, ok, err := ps.ConsumeOneTimePreKey(id); err != nil || !ok {
		t.Fatalf("ConsumeOneTimePreKey: want ok, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := ps.ConsumeOneTimePreKey(id); err != nil || ok {
		t.Fatalf("ConsumeOneTimePreKey: want already consumed, got ok=%v err=%v", ok, err)
	}
}
