package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"duskline/internal/crypto"
	"duskline/internal/domain"
	"duskline/internal/protocol/envelope"
	"duskline/internal/protocol/x3dh"
	"duskline/internal/wire"
)

// callTimeout bounds how long Call waits for a matching response before
// failing with ErrTimeout.
const callTimeout = 30 * time.Second

// outboundQueueSize bounds the sender goroutine's backlog.
const outboundQueueSize = 64

// Manager owns one client's persistent connection to the relay: the
// outer X3DH session established once at Handshake, the pending-request
// table correlating responses to calls by UUID, and the in-memory table
// of per-peer Double-Ratchet conversations (session.go).
type Manager struct {
	ws       *websocket.Conn
	identity domain.Identity

	session x3dh.Result
	ad      []byte

	relayIdentity    domain.X25519Public
	relayFingerprint domain.Fingerprint

	out       chan []byte
	pendingMu sync.Mutex
	pending   map[string]chan wire.Response

	events chan domain.DecryptedMessage

	sessionsMu sync.Mutex
	sessions   map[domain.Username]*domain.Conversation

	prekeyStore domain.PreKeyStore
	username    domain.Username
}

// NewManager wraps an already-dialed WebSocket connection. Call
// Handshake before Run.
func NewManager(ws *websocket.Conn, identity domain.Identity) *Manager {
	return &Manager{
		ws:       ws,
		identity: identity,
		out:      make(chan []byte, outboundQueueSize),
		pending:  make(map[string]chan wire.Response),
		events:   make(chan domain.DecryptedMessage, 32),
		sessions: make(map[domain.Username]*domain.Conversation),
	}
}

// Events returns the channel the caller should range over for incoming
// decrypted messages.
func (m *Manager) Events() <-chan domain.DecryptedMessage { return m.events }

// RelayIdentityKey returns the relay's identity public key learned and
// verified during Handshake, for pinning in the account profile.
func (m *Manager) RelayIdentityKey() domain.X25519Public { return m.relayIdentity }

// RelayFingerprint returns the relay identity fingerprint learned during
// Handshake.
func (m *Manager) RelayFingerprint() domain.Fingerprint { return m.relayFingerprint }

// SetUsername records the locally registered username, used as the
// sender field on outgoing send_message requests.
func (m *Manager) SetUsername(u domain.Username) { m.username = u }

// Close zeroes every secret this manager holds — the outer client<->
// server session keys and every per-peer ratchet's root/chain/skipped
// keys — and closes the underlying connection. It must run once Run
// has returned.
func (m *Manager) Close() error {
	m.session.Zero()

	m.sessionsMu.Lock()
	for peer, conv := range m.sessions {
		conv.State.Zero()
		delete(m.sessions, peer)
	}
	m.sessionsMu.Unlock()

	return m.ws.Close()
}

// Handshake establishes the outer client<->server session: it builds a
// fresh connection bundle, sends establish_connection, and validates the
// relay's initial message as the X3DH responder. pinnedRelay, when
// non-nil, is the relay identity key pinned at registration — the
// initial message's claimed initiator identity must match it or the
// handshake fails before any key is accepted. A nil pin means first
// contact: the key the challenge proves possession of is trusted and
// reported via RelayIdentityKey for the caller to persist. Handshake
// must run before Run, synchronously, since no pending-request
// machinery exists yet.
func (m *Manager) Handshake(pinnedRelay *domain.X25519Public) error {
	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	defer spkPriv.Zero()

	spkID := domain.SignedPreKeyID("conn-" + crypto.Fingerprint(spkPub.Slice()))
	bundle := domain.PreKeyBundle{
		IdentityKey:    m.identity.XPub,
		SigningKey:     m.identity.EdPub,
		SignedPreKeyID: spkID,
		SignedPreKey:   spkPub,
	}
	bundle.SignedPreKeySignature = crypto.SignEd25519(m.identity.EdPriv, bundle.SignablePayload())

	req, err := wire.NewRequest(wire.MsgEstablishConnection, wire.EstablishConnectionRequest{
		Bundle:         wire.B64(bundle.Encode()),
		SignedPreKeyID: spkID.String(),
	})
	if err != nil {
		return err
	}
	if err := m.ws.WriteJSON(req); err != nil {
		return err
	}

	_, raw, err := m.ws.ReadMessage()
	if err != nil {
		return err
	}
	var resp wire.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return err
	}
	if resp.Status != wire.StatusOK {
		return domain.NewError(domain.ErrNotAuthenticated, "client: establish_connection refused: %s", resp.Status)
	}
	var eresp wire.EstablishConnectionResponse
	if err := json.Unmarshal(resp.Body, &eresp); err != nil {
		return err
	}

	imRaw, err := wire.UnB64(eresp.InitialMessage)
	if err != nil {
		return err
	}
	im, err := domain.DecodeInitialMessage(imRaw)
	if err != nil {
		return err
	}
	if im.SignedPreKeyID != spkID {
		return domain.NewError(domain.ErrInvalidKey, "client: relay answered for signed pre-key %q, sent %q", im.SignedPreKeyID, spkID)
	}

	var result x3dh.Result
	if pinnedRelay != nil {
		result, err = x3dh.ProcessInitialPinned(m.identity, spkPriv, nil, im, *pinnedRelay)
	} else {
		result, err = x3dh.ProcessInitial(m.identity, spkPriv, nil, im)
	}
	if err != nil {
		return err
	}

	m.session = result
	m.ad = im.AssociatedData
	m.relayIdentity = im.InitiatorIdentityKey
	m.relayFingerprint = domain.Fingerprint(crypto.Fingerprint(im.InitiatorIdentityKey.Slice()))
	return nil
}

// Run drives the outbound sender and inbound receiver until ctx is
// canceled or either side's connection fails. A blocked socket read does
// not observe ctx, so cancellation closes the socket to unblock it.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.sendLoop(ctx) })
	g.Go(func() error { return m.receiveLoop(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		m.ws.Close()
		return ctx.Err()
	})
	return g.Wait()
}

func (m *Manager) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-m.out:
			if !ok {
				return nil
			}
			if err := m.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		}
	}
}

func (m *Manager) receiveLoop(ctx context.Context) error {
	for {
		_, raw, err := m.ws.ReadMessage()
		if err != nil {
			return err
		}

		var f struct {
			RequestUUID string          `json:"request_uuid"`
			Status      *wire.Status    `json:"status"`
			MsgType     wire.MsgType    `json:"msg_type"`
			Body        json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}

		if f.Status != nil {
			m.resolve(f.RequestUUID, wire.Response{RequestUUID: f.RequestUUID, Status: *f.Status, Body: f.Body})
			continue
		}
		if f.MsgType == wire.MsgSendMessage {
			if err := m.handleIncoming(ctx, f.Body); err != nil {
				continue
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Call seals reqBody into msgType's request, sends it, and blocks until
// the matching response arrives or callTimeout elapses.
func (m *Manager) Call(ctx context.Context, msgType wire.MsgType, reqBody any) (wire.Response, error) {
	plaintext, err := json.Marshal(reqBody)
	if err != nil {
		return wire.Response{}, err
	}
	ciphertext, err := envelope.Seal(m.session.EncryptKey, m.ad, plaintext)
	if err != nil {
		return wire.Response{}, err
	}
	envBody, err := json.Marshal(wire.EncryptedEnvelope{Ciphertext: ciphertext})
	if err != nil {
		return wire.Response{}, err
	}

	requestUUID := wire.NewRequestUUID()
	frame, err := json.Marshal(wire.Request{RequestUUID: requestUUID, MsgType: msgType, Body: envBody})
	if err != nil {
		return wire.Response{}, err
	}

	ch := make(chan wire.Response, 1)
	m.pendingMu.Lock()
	m.pending[requestUUID] = ch
	m.pendingMu.Unlock()
	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, requestUUID)
		m.pendingMu.Unlock()
	}()

	select {
	case m.out <- frame:
	case <-ctx.Done():
		return wire.Response{}, ctx.Err()
	}

	timeout := time.NewTimer(callTimeout)
	defer timeout.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-timeout.C:
		return wire.Response{}, domain.NewError(domain.ErrTimeout, "client: %s timed out", msgType)
	case <-ctx.Done():
		return wire.Response{}, ctx.Err()
	}
}

func (m *Manager) resolve(requestUUID string, resp wire.Response) {
	m.pendingMu.Lock()
	ch, ok := m.pending[requestUUID]
	m.pendingMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

// decryptBody opens an EncryptedEnvelope body under the outer session.
func (m *Manager) decryptBody(raw json.RawMessage) ([]byte, error) {
	var env wire.EncryptedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return envelope.Open(m.session.DecryptKey, env.Ciphertext, m.ad)
}
