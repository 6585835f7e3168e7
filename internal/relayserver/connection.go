package relayserver

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"duskline/internal/domain"
	"duskline/internal/protocol/envelope"
	"duskline/internal/protocol/x3dh"
	"duskline/internal/wire"
)

// outboundQueueSize bounds how far a connection's sender goroutine may
// fall behind before the receiver applies backpressure by blocking on
// the send.
const outboundQueueSize = 64

// maxFrameSize bounds a single inbound frame. Larger frames are refused
// before JSON decoding starts.
const maxFrameSize = 1 << 20

// Connection is one client's live WebSocket session: a receiver
// goroutine decoding and dispatching inbound frames, and a sender
// goroutine draining an outbound queue, joined by an errgroup so either
// side exiting tears down the other.
type Connection struct {
	srv *Server
	ws  *websocket.Conn
	log *log.Logger
	out chan []byte

	// established flips only after the establish_connection response has
	// been written: that one response must leave in plaintext, since the
	// client derives the session keys from the initial message it carries.
	established      bool
	establishPending bool
	session          x3dh.Result
	ad               []byte
	peerIdentity     domain.X25519Public
	username         domain.Username
}

func newConnection(srv *Server, ws *websocket.Conn) *Connection {
	return &Connection{
		srv: srv,
		ws:  ws,
		log: log.New(log.Writer(), "relay: ", log.LstdFlags),
		out: make(chan []byte, outboundQueueSize),
	}
}

// Run drives the connection until either task exits or ctx is canceled.
// A blocked socket read does not observe ctx, so cancellation closes the
// socket to unblock it.
func (c *Connection) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.receiveLoop(ctx) })
	g.Go(func() error { return c.sendLoop(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		c.ws.Close()
		return ctx.Err()
	})

	err := g.Wait()
	if c.username != "" {
		c.srv.registry.Unbind(c.username, c)
	}
	c.session.Zero()
	return err
}

func (c *Connection) receiveLoop(ctx context.Context) error {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		if len(raw) > maxFrameSize {
			c.replyError("", wire.StatusTooLarge, "frame too large")
			continue
		}

		var req wire.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.replyError(req.RequestUUID, wire.StatusBadRequest, "malformed request")
			continue
		}

		body, err := c.plaintextBody(req)
		if err != nil {
			c.replyError(req.RequestUUID, wire.StatusAuthFailed, "could not open request")
			continue
		}

		status, respBody, err := c.dispatch(req.MsgType, body)
		if err != nil {
			c.log.Printf("dispatch %s: %v", req.MsgType, err)
		}
		if err := c.reply(req.RequestUUID, status, respBody); err != nil {
			return err
		}
		if c.establishPending {
			c.established = true
			c.establishPending = false
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (c *Connection) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-c.out:
			if !ok {
				return nil
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		}
	}
}

// plaintextBody opens req.Body: before establish_connection completes it
// is plaintext JSON (there is no session key yet); afterward it is an
// EncryptedEnvelope the connection's outer session key must open.
func (c *Connection) plaintextBody(req wire.Request) ([]byte, error) {
	if !c.established {
		return req.Body, nil
	}
	var env wire.EncryptedEnvelope
	if err := json.Unmarshal(req.Body, &env); err != nil {
		return nil, err
	}
	return envelope.Open(c.session.DecryptKey, env.Ciphertext, c.ad)
}

func (c *Connection) dispatch(msgType wire.MsgType, body []byte) (wire.Status, any, error) {
	switch msgType {
	case wire.MsgEstablishConnection:
		return c.handleEstablishConnection(body)
	case wire.MsgRegister:
		return c.handleRegister(body)
	case wire.MsgGetUserBundle:
		return c.handleGetUserBundle(body)
	case wire.MsgSendMessage:
		return c.handleSendMessage(body)
	default:
		return wire.StatusBadRequest, nil, domain.NewError(domain.ErrBadRequest, "relay: unknown msg_type %q", msgType)
	}
}

// handleEstablishConnection validates the client's connection bundle and
// runs the initiator side of X3DH against it: the relay proves its
// identity through the initial message's challenge, and the client pins
// the initiator identity key the message carries. Accepted only while
// the session slot is empty.
func (c *Connection) handleEstablishConnection(body []byte) (wire.Status, any, error) {
	if c.established || c.establishPending {
		return wire.StatusBadRequest, nil, domain.NewError(domain.ErrBadRequest, "relay: session already established")
	}

	var req wire.EstablishConnectionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return wire.StatusBadRequest, nil, err
	}
	raw, err := wire.UnB64(req.Bundle)
	if err != nil {
		return wire.StatusBadRequest, nil, err
	}
	bundle, err := domain.DecodeBundle(raw)
	if err != nil {
		return wire.StatusBadRequest, nil, err
	}
	bundle.SignedPreKeyID = domain.SignedPreKeyID(req.SignedPreKeyID)

	result, im, err := x3dh.DeriveInitial(c.srv.identity, bundle)
	if err != nil {
		return wire.StatusAuthFailed, nil, err
	}

	c.session = result
	c.ad = im.AssociatedData
	c.peerIdentity = bundle.IdentityKey
	c.establishPending = true

	return wire.StatusOK, wire.EstablishConnectionResponse{
		InitialMessage: wire.B64(im.Encode()),
	}, nil
}

func (c *Connection) handleRegister(body []byte) (wire.Status, any, error) {
	if !c.established {
		return wire.StatusAuthFailed, nil, domain.NewError(domain.ErrNotAuthenticated, "relay: register before establish_connection")
	}
	var req wire.RegisterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return wire.StatusBadRequest, nil, err
	}

	username := domain.Username(req.Username)
	if !username.Valid() {
		return wire.StatusBadRequest, nil, domain.NewError(domain.ErrInvalidUsername, "relay: username %q must be non-empty and alphanumeric", req.Username)
	}

	bundleCore, otpks, err := decodeRegisterRequest(req)
	if err != nil {
		return wire.StatusBadRequest, nil, err
	}

	if err := c.srv.registry.Register(username, bundleCore, otpks, c); err != nil {
		de, ok := err.(*domain.Error)
		if ok && de.Kind == domain.ErrUserAlreadyExists {
			return wire.StatusConflict, nil, err
		}
		return wire.StatusInternal, nil, err
	}

	c.username = username
	return wire.StatusOK, nil, nil
}

func (c *Connection) handleGetUserBundle(body []byte) (wire.Status, any, error) {
	if !c.established {
		return wire.StatusAuthFailed, nil, domain.NewError(domain.ErrNotAuthenticated, "relay: get_user_bundle before establish_connection")
	}
	var req wire.GetUserBundleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return wire.StatusBadRequest, nil, err
	}

	b, ok := c.srv.registry.Bundle(domain.Username(req.Username))
	if !ok {
		return wire.StatusNotFound, nil, domain.NewError(domain.ErrUserNotFound, "relay: unknown user %q", req.Username)
	}

	return wire.StatusOK, wire.GetUserBundleResponse{
		Username:       req.Username,
		SignedPreKeyID: b.SignedPreKeyID.String(),
		Bundle:         wire.B64(b.Encode()),
	}, nil
}

func (c *Connection) handleSendMessage(body []byte) (wire.Status, any, error) {
	if !c.established {
		return wire.StatusAuthFailed, nil, domain.NewError(domain.ErrNotAuthenticated, "relay: send_message before establish_connection")
	}
	var req wire.SendMessageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return wire.StatusBadRequest, nil, err
	}

	err := c.srv.registry.Deliver(domain.Username(req.To), queuedMessage{
		From: domain.Username(req.From),
		Req:  req,
	})
	if err != nil {
		return wire.StatusNotFound, nil, err
	}
	return wire.StatusOK, wire.SendMessageResponse{Delivered: true}, nil
}

// pushIncoming seals q as an unsolicited frame under this connection's
// outer session and enqueues it on the outbound channel. The inner
// payload fields pass through byte-identical: the relay re-wraps only
// the outer layer it owns.
func (c *Connection) pushIncoming(q queuedMessage) error {
	msg := wire.IncomingMessage{
		Kind:           q.Req.Kind,
		From:           q.From.String(),
		InitialMessage: q.Req.InitialMessage,
		Header:         q.Req.Header,
		Ciphertext:     q.Req.Ciphertext,
		Timestamp:      q.Req.Timestamp,
	}
	plaintext, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ciphertext, err := envelope.Seal(c.session.EncryptKey, c.ad, plaintext)
	if err != nil {
		return err
	}
	envBody, err := json.Marshal(wire.EncryptedEnvelope{Ciphertext: ciphertext})
	if err != nil {
		return err
	}
	out, err := json.Marshal(wire.Request{
		RequestUUID: wire.NewRequestUUID(),
		MsgType:     wire.MsgSendMessage,
		Body:        json.RawMessage(envBody),
	})
	if err != nil {
		return err
	}
	return c.enqueue(out)
}

// reply writes a Response frame. The request_uuid and status stay in the
// clear so the client can correlate before decrypting; the body is
// sealed under the outer session once one exists. The establish_
// connection response itself goes out before established flips, so its
// body is the one that ships in plaintext.
func (c *Connection) reply(requestUUID string, status wire.Status, body any) error {
	var bodyRaw json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyRaw = b
	}

	if c.established && bodyRaw != nil {
		ciphertext, err := envelope.Seal(c.session.EncryptKey, c.ad, bodyRaw)
		if err != nil {
			return err
		}
		b, err := json.Marshal(wire.EncryptedEnvelope{Ciphertext: ciphertext})
		if err != nil {
			return err
		}
		bodyRaw = b
	}

	raw, err := json.Marshal(wire.Response{RequestUUID: requestUUID, Status: status, Body: bodyRaw})
	if err != nil {
		return err
	}
	return c.enqueue(raw)
}

func (c *Connection) replyError(requestUUID string, status wire.Status, msg string) {
	_ = c.reply(requestUUID, status, map[string]string{"error": msg})
}

func (c *Connection) enqueue(b []byte) error {
	select {
	case c.out <- b:
		return nil
	case <-time.After(5 * time.Second):
		return domain.NewError(domain.ErrTimeout, "relay: outbound queue full")
	}
}

func decodeRegisterRequest(req wire.RegisterRequest) (domain.PreKeyBundle, []domain.OneTimePreKeyPublic, error) {
	identityKey, err := wire.UnB64(req.IdentityKey)
	if err != nil {
		return domain.PreKeyBundle{}, nil, err
	}
	signingKey, err := wire.UnB64(req.SigningKey)
	if err != nil {
		return domain.PreKeyBundle{}, nil, err
	}
	spkPub, err := wire.UnB64(req.SignedPreKey)
	if err != nil {
		return domain.PreKeyBundle{}, nil, err
	}
	sig, err := wire.UnB64(req.SignedPreKeySignature)
	if err != nil {
		return domain.PreKeyBundle{}, nil, err
	}
	if len(identityKey) != 32 || len(signingKey) != 32 || len(spkPub) != 32 {
		return domain.PreKeyBundle{}, nil, domain.NewError(domain.ErrInvalidLength, "relay: register: malformed key length")
	}

	var b domain.PreKeyBundle
	b.Username = domain.Username(req.Username)
	copy(b.IdentityKey[:], identityKey)
	copy(b.SigningKey[:], signingKey)
	b.SignedPreKeyID = domain.SignedPreKeyID(req.SignedPreKeyID)
	copy(b.SignedPreKey[:], spkPub)
	b.SignedPreKeySignature = sig

	if err := x3dh.VerifyBundle(b); err != nil {
		return domain.PreKeyBundle{}, nil, err
	}

	otpks := make([]domain.OneTimePreKeyPublic, 0, len(req.OneTimePreKeys))
	for _, s := range req.OneTimePreKeys {
		raw, err := wire.UnB64(s)
		if err != nil {
			return domain.PreKeyBundle{}, nil, err
		}
		if len(raw) != 32 {
			return domain.PreKeyBundle{}, nil, domain.NewError(domain.ErrInvalidLength, "relay: register: malformed one-time pre-key")
		}
		var pub domain.X25519Public
		copy(pub[:], raw)
		otpks = append(otpks, domain.OneTimePreKeyPublic{ID: domain.HashOneTimePreKeyID(pub), Pub: pub})
	}
	return b, otpks, nil
}
