package client

import (
	"context"
	"encoding/json"
	"time"

	"duskline/internal/domain"
	"duskline/internal/protocol/ratchet"
	"duskline/internal/protocol/x3dh"
	"duskline/internal/wire"
)

// SetPreKeyStore gives the manager access to the local signed pre-key
// and one-time pre-key pool, needed to respond to an inbound
// InitialMessage from a peer who has never messaged us before.
func (m *Manager) SetPreKeyStore(ps domain.PreKeyStore) { m.prekeyStore = ps }

// AddPeer fetches peer's bundle from the relay, runs the initiator side
// of X3DH against it, and seeds a fresh outbound ratchet session —
// equivalent to the first-outbound-to-new-peer path that SendMessage
// would otherwise take lazily, exposed directly so a "chat" REPL can
// show the user the session is ready before the first message is sent.
func (m *Manager) AddPeer(ctx context.Context, peer domain.Username) error {
	_, err := m.ensureOutboundSession(ctx, peer)
	return err
}

// ensureOutboundSession returns the existing conversation with peer, or
// fetches their bundle and seeds a new initiator session if none exists
// yet.
func (m *Manager) ensureOutboundSession(ctx context.Context, peer domain.Username) (*domain.Conversation, error) {
	m.sessionsMu.Lock()
	conv, ok := m.sessions[peer]
	m.sessionsMu.Unlock()
	if ok {
		return conv, nil
	}

	resp, err := m.Call(ctx, wire.MsgGetUserBundle, wire.GetUserBundleRequest{Username: peer.String()})
	if err != nil {
		return nil, err
	}
	if resp.Status != wire.StatusOK {
		return nil, domain.NewError(domain.ErrUserNotFound, "client: get_user_bundle for %q: %s", peer, resp.Status)
	}
	plaintext, err := m.decryptBody(resp.Body)
	if err != nil {
		return nil, err
	}
	var body wire.GetUserBundleResponse
	if err := json.Unmarshal(plaintext, &body); err != nil {
		return nil, err
	}
	raw, err := wire.UnB64(body.Bundle)
	if err != nil {
		return nil, err
	}
	bundle, err := domain.DecodeBundle(raw)
	if err != nil {
		return nil, err
	}
	bundle.Username = peer
	bundle.SignedPreKeyID = domain.SignedPreKeyID(body.SignedPreKeyID)

	result, im, err := x3dh.DeriveInitial(m.identity, bundle)
	if err != nil {
		return nil, err
	}
	state, err := ratchet.InitAlice(result.EncryptKey, bundle.SignedPreKey)
	if err != nil {
		return nil, err
	}

	req := wire.SendMessageRequest{
		Kind:           wire.MessageKindInitial,
		To:             peer.String(),
		From:           m.username.String(),
		InitialMessage: wire.B64(im.Encode()),
		Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	sendResp, err := m.Call(ctx, wire.MsgSendMessage, req)
	if err != nil {
		return nil, err
	}
	if sendResp.Status != wire.StatusOK {
		return nil, domain.NewError(domain.ErrInternal, "client: delivering initial message to %q: %s", peer, sendResp.Status)
	}

	conv = &domain.Conversation{Peer: peer, State: state}
	m.sessionsMu.Lock()
	m.sessions[peer] = conv
	m.sessionsMu.Unlock()
	return conv, nil
}

// SendMessage encrypts plaintext under the conversation with peer,
// initiating a fresh X3DH handshake first if none exists, and delivers
// the ciphertext through the relay.
func (m *Manager) SendMessage(ctx context.Context, peer domain.Username, plaintext []byte) error {
	conv, err := m.ensureOutboundSession(ctx, peer)
	if err != nil {
		return err
	}

	ad := conversationAD(m.username, conv.Peer)
	header, ciphertext, err := ratchet.Encrypt(&conv.State, ad, plaintext)
	if err != nil {
		return err
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return err
	}

	req := wire.SendMessageRequest{
		Kind:       wire.MessageKindMessage,
		To:         peer.String(),
		From:       m.username.String(),
		Header:     wire.B64(headerJSON),
		Ciphertext: wire.B64(ciphertext),
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	resp, err := m.Call(ctx, wire.MsgSendMessage, req)
	if err != nil {
		return err
	}
	if resp.Status != wire.StatusOK {
		return domain.NewError(domain.ErrInternal, "client: send_message to %q: %s", peer, resp.Status)
	}
	return nil
}

// handleIncoming opens the outer layer of an unsolicited send_message
// push and, depending on its kind, either seeds a new responder session
// or advances an existing conversation's ratchet, publishing the
// resulting plaintext on Events.
func (m *Manager) handleIncoming(ctx context.Context, raw json.RawMessage) error {
	plaintext, err := m.decryptBody(raw)
	if err != nil {
		return err
	}
	var msg wire.IncomingMessage
	if err := json.Unmarshal(plaintext, &msg); err != nil {
		return err
	}
	from := domain.Username(msg.From)

	switch msg.Kind {
	case wire.MessageKindInitial:
		return m.handleInitialMessage(from, msg)
	case wire.MessageKindMessage:
		return m.handleRatchetMessage(ctx, from, msg)
	default:
		return domain.NewError(domain.ErrBadRequest, "client: unknown message kind %q from %q", msg.Kind, from)
	}
}

func (m *Manager) handleInitialMessage(from domain.Username, msg wire.IncomingMessage) error {
	raw, err := wire.UnB64(msg.InitialMessage)
	if err != nil {
		return err
	}
	im, err := domain.DecodeInitialMessage(raw)
	if err != nil {
		return err
	}

	spkPriv, spkPub, _, ok, err := m.prekeyStore.LoadSignedPreKey(im.SignedPreKeyID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewError(domain.ErrInvalidKey, "client: unknown signed pre-key id %q", im.SignedPreKeyID)
	}

	var otpkPriv *domain.X25519Private
	if im.OneTimePreKeyID != "" {
		priv, ok, err := m.prekeyStore.ConsumeOneTimePreKey(im.OneTimePreKeyID)
		if err != nil {
			return err
		}
		if ok {
			otpkPriv = &priv
		}
	}

	result, err := x3dh.ProcessInitial(m.identity, spkPriv, otpkPriv, im)
	if err != nil {
		return err
	}
	state, err := ratchet.InitBob(result.DecryptKey, spkPriv, spkPub)
	if err != nil {
		return err
	}

	conv := &domain.Conversation{Peer: from, State: state}
	m.sessionsMu.Lock()
	m.sessions[from] = conv
	m.sessionsMu.Unlock()
	return nil
}

func (m *Manager) handleRatchetMessage(ctx context.Context, from domain.Username, msg wire.IncomingMessage) error {
	m.sessionsMu.Lock()
	conv, ok := m.sessions[from]
	m.sessionsMu.Unlock()
	if !ok {
		return domain.NewError(domain.ErrNotAuthenticated, "client: ratchet message from %q with no session", from)
	}

	headerRaw, err := wire.UnB64(msg.Header)
	if err != nil {
		return err
	}
	var header domain.RatchetHeader
	if err := json.Unmarshal(headerRaw, &header); err != nil {
		return err
	}
	ciphertext, err := wire.UnB64(msg.Ciphertext)
	if err != nil {
		return err
	}

	ad := conversationAD(from, m.username)
	plaintext, err := ratchet.Decrypt(&conv.State, ad, header, ciphertext)
	if err != nil {
		return err
	}

	ts, err := time.Parse(time.RFC3339Nano, msg.Timestamp)
	if err != nil {
		// An unparseable sender timestamp falls back to receipt time.
		ts = time.Now().UTC()
	}
	// A full events channel blocks the receive loop: backpressure, not
	// silent message loss.
	select {
	case m.events <- domain.DecryptedMessage{From: from, Plaintext: plaintext, Timestamp: ts}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// conversationAD binds the sender and recipient usernames into the inner
// ratchet's associated data, in (sender, recipient) order, so a
// ciphertext from one conversation can never be replayed as if it
// belonged to another. The sender always passes (self, peer) and the
// recipient always passes (from, self) — the same pair in the same
// order — so both sides compute identical bytes without needing any
// canonical sort.
func conversationAD(sender, recipient domain.Username) []byte {
	return []byte(sender.String() + "|" + recipient.String())
}
