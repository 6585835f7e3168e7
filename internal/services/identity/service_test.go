package identity_test

import (
	"testing"

	"duskline/internal/services/identity"
	"duskline/internal/store"
)

const strongPass = "Tr0ub4dor&3xtra"

func TestGenerateIdentity_RejectsWeakPassphrase(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))

	cases := []string{"", "short1A!", "alllowercase1!", "ALLUPPERCASE1!", "NoDigitsHere!", "NoSymbolsHere1"}
	for _, pass := range cases {
		if _, _, err := svc.GenerateIdentity(pass); err != identity.ErrWeakPassphrase {
			t.Errorf("GenerateIdentity(%q): want ErrWeakPassphrase, got %v", pass, err)
		}
	}
}

func TestGenerateAndLoadIdentity_RoundTrip(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))

	id, fp, err := svc.GenerateIdentity(strongPass)
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	if fp == "" {
		t.Fatal("GenerateIdentity: want non-empty fingerprint")
	}

	loaded, err := svc.LoadIdentity(strongPass)
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if loaded.XPub != id.XPub || loaded.EdPub != id.EdPub {
		t.Fatal("LoadIdentity: public keys do not match what GenerateIdentity produced")
	}

	if _, err := svc.LoadIdentity("wrong-passphrase-Entirely1!"); err == nil {
		t.Fatal("LoadIdentity: want error under wrong passphrase, got nil")
	}
}

func TestFingerprintIdentity_MatchesGenerated(t *testing.T) {
	svc := identity.New(store.NewIdentityFileStore(t.TempDir()))

	_, fp, err := svc.GenerateIdentity(strongPass)
	if err != nil {
		t.Fatalf("GenerateIdentity: %v", err)
	}
	got, err := svc.FingerprintIdentity(strongPass)
	if err != nil {
		t.Fatalf("FingerprintIdentity: %v", err)
	}
	if got != fp {
		t.Fatalf("FingerprintIdentity: want %s, got %s", fp, got)
	}
}
