package relayserver

import (
	"encoding/json"
	"testing"

	"duskline/internal/crypto"
	"duskline/internal/domain"
	"duskline/internal/protocol/envelope"
	"duskline/internal/protocol/x3dh"
	"duskline/internal/wire"
)

func testIdentity(t *testing.T) domain.Identity {
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

func testServer(t *testing.T) *Server {
	t.Helper()
	id := testIdentity(t)
	_, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519 (spk): %v", err)
	}
	sig := crypto.SignEd25519(id.EdPriv, spkPub[:])
	return NewServer(id, "spk-1", spkPub, sig)
}

// connectionBundle builds the bundle a client sends with
// establish_connection, returning the signed-pre-key private half the
// client keeps for the responder side of the handshake.
func connectionBundle(t *testing.T, id domain.Identity) (domain.PreKeyBundle, domain.X25519Private) {
	t.Helper()
	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519 (conn spk): %v", err)
	}
	b := domain.PreKeyBundle{
		IdentityKey:    id.XPub,
		SigningKey:     id.EdPub,
		SignedPreKeyID: domain.SignedPreKeyID("conn-" + crypto.Fingerprint(spkPub.Slice())),
		SignedPreKey:   spkPub,
	}
	b.SignedPreKeySignature = crypto.SignEd25519(id.EdPriv, b.SignablePayload())
	return b, spkPriv
}

// establish runs the full establish_connection exchange against a fresh
// connection on srv, returning the connection and the client's derived
// outer session.
func establish(t *testing.T, srv *Server, clientID domain.Identity) (*Connection, x3dh.Result, []byte) {
	t.Helper()
	c := newConnection(srv, nil)
	bundle, spkPriv := connectionBundle(t, clientID)

	body, err := json.Marshal(wire.EstablishConnectionRequest{
		Bundle:         wire.B64(bundle.Encode()),
		SignedPreKeyID: bundle.SignedPreKeyID.String(),
	})
	if err != nil {
		t.Fatalf("marshal establish request: %v", err)
	}
	status, resp, err := c.handleEstablishConnection(body)
	if err != nil || status != wire.StatusOK {
		t.Fatalf("handleEstablishConnection: status %v, err %v", status, err)
	}
	// receiveLoop flips established only after the plaintext reply leaves.
	c.established, c.establishPending = true, false

	imRaw, err := wire.UnB64(resp.(wire.EstablishConnectionResponse).InitialMessage)
	if err != nil {
		t.Fatalf("decode initial message: %v", err)
	}
	im, err := domain.DecodeInitialMessage(imRaw)
	if err != nil {
		t.Fatalf("DecodeInitialMessage: %v", err)
	}

	result, err := x3dh.ProcessInitialPinned(clientID, spkPriv, nil, im, srv.identity.XPub)
	if err != nil {
		t.Fatalf("ProcessInitialPinned: %v", err)
	}
	return c, result, im.AssociatedData
}

func registerBody(t *testing.T, id domain.Identity, username string) []byte {
	t.Helper()
	_, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519 (spk): %v", err)
	}
	sig := crypto.SignEd25519(id.EdPriv, spkPub[:])
	body, err := json.Marshal(wire.RegisterRequest{
		Username:              username,
		IdentityKey:           wire.B64(id.XPub[:]),
		SigningKey:            wire.B64(id.EdPub[:]),
		SignedPreKeyID:        "spk-reg",
		SignedPreKey:          wire.B64(spkPub[:]),
		SignedPreKeySignature: wire.B64(sig),
	})
	if err != nil {
		t.Fatalf("marshal register request: %v", err)
	}
	return body
}

func TestEstablishConnection_OuterSessionMatches(t *testing.T) {
	srv := testServer(t)
	client := testIdentity(t)
	conn, clientSession, ad := establish(t, srv, client)

	// Client seals a request body; the relay-side session must open it.
	blob, err := envelope.Seal(clientSession.EncryptKey, ad, []byte(`{"username":"alice"}`))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	pt, err := envelope.Open(conn.session.DecryptKey, blob, conn.ad)
	if err != nil {
		t.Fatalf("Open (relay side): %v", err)
	}
	if string(pt) != `{"username":"alice"}` {
		t.Fatalf("round trip mismatch: %q", pt)
	}

	// And the reverse direction.
	blob, err = envelope.Seal(conn.session.EncryptKey, conn.ad, []byte(`pushed`))
	if err != nil {
		t.Fatalf("Seal (relay side): %v", err)
	}
	if _, err := envelope.Open(clientSession.DecryptKey, blob, ad); err != nil {
		t.Fatalf("Open (client side): %v", err)
	}
}

func TestEstablishConnection_RejectsOccupiedSessionSlot(t *testing.T) {
	srv := testServer(t)
	client := testIdentity(t)
	conn, _, _ := establish(t, srv, client)

	bundle, _ := connectionBundle(t, client)
	body, _ := json.Marshal(wire.EstablishConnectionRequest{
		Bundle:         wire.B64(bundle.Encode()),
		SignedPreKeyID: bundle.SignedPreKeyID.String(),
	})
	status, _, err := conn.handleEstablishConnection(body)
	if status != wire.StatusBadRequest || err == nil {
		t.Fatalf("want BadRequest on second establish, got status %v err %v", status, err)
	}
}

func TestEstablishConnection_RejectsTamperedBundleSignature(t *testing.T) {
	srv := testServer(t)
	client := testIdentity(t)
	conn := newConnection(srv, nil)

	bundle, _ := connectionBundle(t, client)
	bundle.SignedPreKeySignature[0] ^= 0xFF
	body, _ := json.Marshal(wire.EstablishConnectionRequest{
		Bundle:         wire.B64(bundle.Encode()),
		SignedPreKeyID: bundle.SignedPreKeyID.String(),
	})
	status, _, err := conn.handleEstablishConnection(body)
	if status != wire.StatusAuthFailed || err == nil {
		t.Fatalf("want AuthFailed on tampered bundle, got status %v err %v", status, err)
	}
}

func TestRegister_SecondClaimOfUsernameConflicts(t *testing.T) {
	srv := testServer(t)
	first := testIdentity(t)
	second := testIdentity(t)
	connA, _, _ := establish(t, srv, first)
	connB, _, _ := establish(t, srv, second)

	status, _, err := connA.handleRegister(registerBody(t, first, "alice"))
	if err != nil || status != wire.StatusOK {
		t.Fatalf("first register: status %v err %v", status, err)
	}
	status, _, err = connB.handleRegister(registerBody(t, second, "alice"))
	if status != wire.StatusConflict {
		t.Fatalf("second register: want Conflict, got status %v err %v", status, err)
	}
	de, ok := err.(*domain.Error)
	if !ok || de.Kind != domain.ErrUserAlreadyExists {
		t.Fatalf("second register: want ErrUserAlreadyExists, got %v", err)
	}
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	srv := testServer(t)
	client := testIdentity(t)
	conn, _, _ := establish(t, srv, client)

	status, _, _ := conn.handleRegister(registerBody(t, client, "al ice"))
	if status != wire.StatusBadRequest {
		t.Fatalf("want BadRequest for invalid username, got %v", status)
	}
}

func TestSendMessage_InnerPayloadPassesThroughVerbatim(t *testing.T) {
	srv := testServer(t)
	alice := testIdentity(t)
	bob := testIdentity(t)
	connA, _, _ := establish(t, srv, alice)
	connB, bobSession, bobAD := establish(t, srv, bob)

	if status, _, err := connA.handleRegister(registerBody(t, alice, "alice")); status != wire.StatusOK {
		t.Fatalf("register alice: status %v err %v", status, err)
	}
	if status, _, err := connB.handleRegister(registerBody(t, bob, "bob")); status != wire.StatusOK {
		t.Fatalf("register bob: status %v err %v", status, err)
	}

	sent := wire.SendMessageRequest{
		Kind:       wire.MessageKindMessage,
		To:         "bob",
		From:       "alice",
		Header:     wire.B64([]byte(`{"dh_pub":"...","pn":0,"n":0}`)),
		Ciphertext: wire.B64([]byte("opaque-ratchet-ciphertext")),
		Timestamp:  "2026-01-02T03:04:05Z",
	}
	body, err := json.Marshal(sent)
	if err != nil {
		t.Fatalf("marshal send request: %v", err)
	}
	status, _, err := connA.handleSendMessage(body)
	if status != wire.StatusOK || err != nil {
		t.Fatalf("handleSendMessage: status %v err %v", status, err)
	}

	// The frame queued on bob's sender channel must carry the inner
	// payload byte-identical to what alice submitted.
	var frame []byte
	select {
	case frame = <-connB.out:
	default:
		t.Fatal("no frame queued for recipient")
	}
	var req wire.Request
	if err := json.Unmarshal(frame, &req); err != nil {
		t.Fatalf("unmarshal pushed frame: %v", err)
	}
	if req.MsgType != wire.MsgSendMessage {
		t.Fatalf("pushed frame msg_type = %q", req.MsgType)
	}
	var env wire.EncryptedEnvelope
	if err := json.Unmarshal(req.Body, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	plaintext, err := envelope.Open(bobSession.DecryptKey, env.Ciphertext, bobAD)
	if err != nil {
		t.Fatalf("open pushed frame: %v", err)
	}
	var got wire.IncomingMessage
	if err := json.Unmarshal(plaintext, &got); err != nil {
		t.Fatalf("unmarshal incoming message: %v", err)
	}
	if got.Kind != sent.Kind || got.From != "alice" || got.Header != sent.Header || got.Ciphertext != sent.Ciphertext || got.Timestamp != sent.Timestamp {
		t.Fatalf("inner payload not forwarded verbatim: %+v", got)
	}
}

func TestDispatch_RequiresEstablishedSession(t *testing.T) {
	srv := testServer(t)
	conn := newConnection(srv, nil)

	for _, msgType := range []wire.MsgType{wire.MsgRegister, wire.MsgGetUserBundle, wire.MsgSendMessage} {
		status, _, _ := conn.dispatch(msgType, []byte(`{}`))
		if status != wire.StatusAuthFailed {
			t.Errorf("%s before establish: want AuthFailed, got %v", msgType, status)
		}
	}
}
