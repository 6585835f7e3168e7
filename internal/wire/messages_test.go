package wire_test

import (
	"encoding/json"
	"testing"

	"duskline/internal/wire"
)

func TestB64RoundTrip(t *testing.T) {
	want := []byte{0x00, 0x01, 0xFF, 0x42}
	got, err := wire.UnB64(wire.B64(want))
	if err != nil {
		t.Fatalf("UnB64: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("UnB64(B64(x)): want %v, got %v", want, got)
	}
}

func TestNewRequest_MarshalsBodyAndMintsUUID(t *testing.T) {
	req, err := wire.NewRequest(wire.MsgRegister, wire.RegisterRequest{Username: "alice"})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if req.RequestUUID == "" {
		t.Fatal("NewRequest: want non-empty request_uuid")
	}
	if req.MsgType != wire.MsgRegister {
		t.Fatalf("NewRequest: want msg_type %q, got %q", wire.MsgRegister, req.MsgType)
	}
	var body wire.RegisterRequest
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Username != "alice" {
		t.Fatalf("NewRequest: body username = %q, want alice", body.Username)
	}
}

func TestNewResponse_NilBody(t *testing.T) {
	resp, err := wire.NewResponse("req-1", wire.StatusOK, nil)
	if err != nil {
		t.Fatalf("NewResponse: %v", err)
	}
	if resp.Body != nil {
		t.Fatalf("NewResponse: want nil body, got %s", resp.Body)
	}
}

func TestStatus_String(t *testing.T) {
	cases := map[wire.Status]string{
		wire.StatusOK:       "ok",
		wire.StatusConflict: "conflict",
		wire.StatusNotFound: "not_found",
		wire.Status(999):    "unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}

func TestNewRequestUUID_Unique(t *testing.T) {
	a := wire.NewRequestUUID()
	b := wire.NewRequestUUID()
	if a == b {
		t.Fatal("NewRequestUUID: want distinct ids across calls")
	}
}
