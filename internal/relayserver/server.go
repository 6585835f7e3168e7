package relayserver

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"duskline/internal/crypto"
	"duskline/internal/domain"
	"duskline/internal/wire"
)

// Server is the relay's WebSocket endpoint: it owns the relay's own
// long-term identity and signed pre-key pair (persisted via
// internal/store, loaded once at start by cmd/relay) and the registry
// of registered usernames.
type Server struct {
	identity    domain.Identity
	fingerprint domain.Fingerprint
	spkPub      domain.X25519Public
	spkID       domain.SignedPreKeyID
	spkSig      []byte

	registry *Registry
	upgrader websocket.Upgrader
	log      *log.Logger
}

// NewServer returns a relay server for the given identity and signed
// pre-key, with a fresh, empty registry. Only the signed pre-key's
// public half crosses this boundary: the relay initiates every outer
// handshake itself, so the private half stays in the store.
func NewServer(
	identity domain.Identity,
	spkID domain.SignedPreKeyID,
	spkPub domain.X25519Public,
	spkSig []byte,
) *Server {
	return &Server{
		identity:    identity,
		fingerprint: domain.Fingerprint(crypto.Fingerprint(identity.XPub.Slice())),
		spkPub:      spkPub,
		spkID:       spkID,
		spkSig:      spkSig,
		registry:    NewRegistry(),
		upgrader:    websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		log:         log.New(log.Writer(), "relay: ", log.LstdFlags),
	}
}

// bundleCore returns the relay's own pre-key bundle, with no one-time
// pre-key embedded: the relay identity never runs a one-time pre-key
// pool, since it never plays the responder role in any handshake.
func (s *Server) bundleCore() domain.PreKeyBundle {
	return domain.PreKeyBundle{
		IdentityKey:           s.identity.XPub,
		SigningKey:            s.identity.EdPub,
		SignedPreKeyID:        s.spkID,
		SignedPreKey:          s.spkPub,
		SignedPreKeySignature: s.spkSig,
	}
}

// Fingerprint returns the relay identity's public fingerprint, for the
// operator to publish out of band so clients can verify the pin cmd/
// duskline's "fingerprint" command shows after first connection.
func (s *Server) Fingerprint() domain.Fingerprint { return s.fingerprint }

// ServeHTTP upgrades the incoming request to a WebSocket connection and
// drives it until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("upgrade: %v", err)
		return
	}
	defer ws.Close()

	conn := newConnection(s, ws)
	if err := conn.Run(r.Context()); err != nil {
		s.log.Printf("connection closed: %v", err)
	}
}

// ServeBundle publishes the relay's signed pre-key bundle over plain
// HTTP so operators and tooling can fetch the relay's public material
// out of band and cross-check the fingerprint clients pin.
func (s *Server) ServeBundle(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Fingerprint    string `json:"fingerprint"`
		SignedPreKeyID string `json:"signed_pre_key_id"`
		Bundle         string `json:"bundle"`
	}{
		Fingerprint:    s.fingerprint.String(),
		SignedPreKeyID: s.spkID.String(),
		Bundle:         wire.B64(s.bundleCore().Encode()),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Printf("bundle: %v", err)
	}
}
