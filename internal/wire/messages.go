package wire

import (
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"
)

// Request is the outer envelope a client sends to the relay: a
// correlation id, the message type naming how to parse Body, and Body
// itself. After establish_connection succeeds, Body carries the base64
// outer-layer ciphertext rather than plaintext JSON (see EncryptedEnvelope
// below).
type Request struct {
	RequestUUID string          `json:"request_uuid"`
	MsgType     MsgType         `json:"msg_type"`
	Body        json.RawMessage `json:"body"`
}

// Response is the relay's reply, correlated back to the Request that
// produced it by RequestUUID.
type Response struct {
	RequestUUID string          `json:"request_uuid"`
	Status      Status          `json:"status"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// NewRequestUUID mints a fresh correlation id for an outbound request.
func NewRequestUUID() string { return uuid.NewString() }

// NewRequest marshals body into a Request under a fresh UUID.
func NewRequest(msgType MsgType, body any) (Request, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return Request{}, err
	}
	return Request{RequestUUID: NewRequestUUID(), MsgType: msgType, Body: raw}, nil
}

// NewResponse marshals body into a Response for the given request id.
func NewResponse(requestUUID string, status Status, body any) (Response, error) {
	var raw json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Response{}, err
		}
		raw = b
	}
	return Response{RequestUUID: requestUUID, Status: status, Body: raw}, nil
}

// EstablishConnectionRequest carries the client's connection pre-key
// bundle, base64 fixed-order encoded (PreKeyBundle.Encode), so the relay
// can run the initiator side of X3DH against it and derive the
// client<->server outer session keys. SignedPreKeyID travels alongside
// the blob since it is never part of the signed binary payload.
type EstablishConnectionRequest struct {
	Bundle         string `json:"bundle"`
	SignedPreKeyID string `json:"signed_pre_key_id"`
}

// EstablishConnectionResponse carries the relay's InitialMessage, base64
// fixed-order encoded. It is the one response body that crosses the wire
// in plaintext: the client derives the outer session keys from it, so no
// session key exists yet that could seal it. The message's initiator
// identity key is the relay's own, which the client checks against its
// pinned copy.
type EstablishConnectionResponse struct {
	InitialMessage string `json:"initial_message"`
}

// RegisterRequest reserves a username and uploads the full bundle,
// including every one-time pre-key in the freshly generated pool. Sent
// over the already-established outer session, so its JSON is itself the
// plaintext body that gets outer-encrypted before transmission.
type RegisterRequest struct {
	Username              string   `json:"username"`
	IdentityKey           string   `json:"identity_key"`
	SigningKey            string   `json:"signing_key"`
	SignedPreKeyID        string   `json:"signed_pre_key_id"`
	SignedPreKey          string   `json:"signed_pre_key"`
	SignedPreKeySignature string   `json:"signed_pre_key_signature"`
	OneTimePreKeys        []string `json:"one_time_pre_keys"`
}

// GetUserBundleRequest asks the relay for a peer's current bundle so the
// caller can run the initiator side of X3DH against it.
type GetUserBundleRequest struct {
	Username string `json:"username"`
}

// GetUserBundleResponse carries the fixed-order bundle encoding
// (base64), with at most one one-time pre-key embedded: the relay pops
// one from the pool per call and never hands the same one out twice.
// SignedPreKeyID travels alongside the blob since it is never part of
// the signed binary payload (PreKeyBundle.Encode/DecodeBundle).
type GetUserBundleResponse struct {
	Username       string `json:"username"`
	SignedPreKeyID string `json:"signed_pre_key_id"`
	Bundle         string `json:"bundle"`
}

// The two values a send_message payload's msg_type field takes: a
// session-opening X3DH initial message, or an ongoing Double-Ratchet
// message.
const (
	MessageKindInitial = "initial_message"
	MessageKindMessage = "message"
)

// SendMessageRequest carries either a fresh session's InitialMessage or
// a subsequent Double-Ratchet ciphertext to a named recipient. Kind
// discriminates which of the payload fields is set.
type SendMessageRequest struct {
	Kind           string `json:"msg_type"`
	To             string `json:"to"`
	From           string `json:"from"`
	InitialMessage string `json:"initial_message,omitempty"`
	Header         string `json:"header,omitempty"`
	Ciphertext     string `json:"ciphertext,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// SendMessageResponse acknowledges enqueuing (or immediate delivery) of a
// message to its recipient.
type SendMessageResponse struct {
	Delivered bool `json:"delivered"`
}

// IncomingMessage is pushed by the relay to a connected recipient,
// unsolicited by any request the recipient made — it rides the same
// WebSocket connection as a Request with MsgType MsgSendMessage but no
// corresponding RequestUUID the recipient itself minted.
type IncomingMessage struct {
	Kind           string `json:"msg_type"`
	From           string `json:"from"`
	InitialMessage string `json:"initial_message,omitempty"`
	Header         string `json:"header,omitempty"`
	Ciphertext     string `json:"ciphertext,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// EncryptedEnvelope wraps every Request/Response Body once the outer
// session is established: Ciphertext is the base64 framing produced by
// internal/protocol/envelope.Seal over the plaintext JSON body.
type EncryptedEnvelope struct {
	Ciphertext string `json:"ciphertext"`
}

// B64 and UnB64 are the standard padded base64 encoding every binary
// field on the wire uses.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func UnB64(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }
