package envelope_test

import (
	"bytes"
	"testing"

	"duskline/internal/domain"
	"duskline/internal/protocol/envelope"
)

func key32(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := key32(0x42)
	ad := []byte("routing-header")
	plaintext := []byte("hello, bob")

	blob, err := envelope.Seal(key, ad, plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	got, err := envelope.Open(key, blob, ad)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("Open: want %q, got %q", plaintext, got)
	}
}

func TestOpenRejectsWrongAD(t *testing.T) {
	key := key32(0x11)
	blob, err := envelope.Seal(key, []byte("ad-one"), []byte("secret"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := envelope.Open(key, blob, []byte("ad-two")); err == nil {
		t.Fatal("Open: want error on ad mismatch, got nil")
	} else if !errorsIsAead(err) {
		t.Fatalf("Open: want AeadFailure, got %v", err)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key := key32(0x77)
	blob, err := envelope.Seal(key, []byte("ad"), []byte("payload"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	tampered := []byte(blob)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := envelope.Open(key, string(tampered), []byte("ad")); err == nil {
		t.Fatal("Open: want error on tampered frame, got nil")
	}
}

func TestOpenRejectsTruncatedFrame(t *testing.T) {
	key := key32(0x09)
	if _, err := envelope.Open(key, "AA==", []byte("ad")); err == nil {
		t.Fatal("Open: want error on truncated frame, got nil")
	}
}

func errorsIsAead(err error) bool {
	e, ok := err.(*domain.Error)
	return ok && e.Kind == domain.ErrAeadFailure
}
