package relayserver

import (
	"testing"

	"duskline/internal/domain"
	"duskline/internal/wire"
)

func TestRegistry_RegisterRejectsDuplicateUsername(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("alice", domain.PreKeyBundle{}, nil, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := r.Register("alice", domain.PreKeyBundle{}, nil, nil)
	de, ok := err.(*domain.Error)
	if !ok || de.Kind != domain.ErrUserAlreadyExists {
		t.Fatalf("Register: want ErrUserAlreadyExists, got %v", err)
	}
}

func TestRegistry_BundlePopsOneOneTimePreKeyPerCall(t *testing.T) {
	r := NewRegistry()
	otpks := []domain.OneTimePreKeyPublic{{ID: "otpk-1"}, {ID: "otpk-2"}}
	if err := r.Register("alice", domain.PreKeyBundle{}, otpks, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	first, ok := r.Bundle("alice")
	if !ok || first.OneTimePreKey == nil || first.OneTimePreKey.ID != "otpk-1" {
		t.Fatalf("Bundle: want otpk-1 first, got %+v ok=%v", first.OneTimePreKey, ok)
	}
	second, ok := r.Bundle("alice")
	if !ok || second.OneTimePreKey == nil || second.OneTimePreKey.ID != "otpk-2" {
		t.Fatalf("Bundle: want otpk-2 second, got %+v ok=%v", second.OneTimePreKey, ok)
	}
	third, ok := r.Bundle("alice")
	if !ok || third.OneTimePreKey != nil {
		t.Fatalf("Bundle: want exhausted pool (nil one-time pre-key), got %+v ok=%v", third.OneTimePreKey, ok)
	}
}

func TestRegistry_BundleUnknownUser(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Bundle("ghost"); ok {
		t.Fatal("Bundle: want ok=false for unregistered user")
	}
}

func TestRegistry_DeliverFailsWhenRecipientNotConnected(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("bob", domain.PreKeyBundle{}, nil, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	msg := queuedMessage{From: "alice", Req: wire.SendMessageRequest{To: "bob", From: "alice"}}
	err := r.Deliver("bob", msg)
	de, ok := err.(*domain.Error)
	if !ok || de.Kind != domain.ErrUserNotFound {
		t.Fatalf("Deliver: want ErrUserNotFound for a registration with no live connection, got %v", err)
	}
}

func TestRegistry_DeliverUnknownRecipient(t *testing.T) {
	r := NewRegistry()
	err := r.Deliver("ghost", queuedMessage{})
	de, ok := err.(*domain.Error)
	if !ok || de.Kind != domain.ErrUserNotFound {
		t.Fatalf("Deliver: want ErrUserNotFound, got %v", err)
	}
}

func TestRegistry_UnbindRemovesUserOnDisconnect(t *testing.T) {
	r := NewRegistry()
	live := &Connection{}
	if err := r.Register("alice", domain.PreKeyBundle{}, nil, live); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r.Unbind("alice", live)

	if _, ok := r.Bundle("alice"); ok {
		t.Fatal("Unbind: a connection drop must remove the owning user from the registry")
	}
}

func TestRegistry_UnbindIgnoresStaleConnection(t *testing.T) {
	r := NewRegistry()
	live := &Connection{}
	if err := r.Register("alice", domain.PreKeyBundle{}, nil, live); err != nil {
		t.Fatalf("Register: %v", err)
	}
	stale := &Connection{}

	r.Unbind("alice", stale)

	r.mu.Lock()
	conn := r.users["alice"].conn
	r.mu.Unlock()
	if conn != live {
		t.Fatal("Unbind: a stale connection must not clear the live one")
	}
}
