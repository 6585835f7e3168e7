package app

import (
	"context"

	"github.com/gorilla/websocket"

	"duskline/internal/client"
	"duskline/internal/domain"
)

// App is the CLI's entry point into the wired dependency graph: the
// stores/services in Wire, plus the relay URL to dial when a command
// needs a live connection.
type App struct {
	Wire     *Wire
	RelayURL string
}

// New returns an App backed by w, dialing relayURL for any command that
// calls Connect.
func New(w *Wire, relayURL string) *App {
	return &App{Wire: w, RelayURL: relayURL}
}

// Connect loads the local identity under passphrase, dials the relay,
// and runs the outer X3DH handshake, returning a Manager ready for
// AddPeer/SendMessage/Run. pinnedRelay, when non-nil, is the relay
// identity key saved in the account profile at registration; a nil pin
// is first contact, and the caller should persist the key Handshake
// reports. The caller still owns SetUsername and the background Run
// loop.
func (a *App) Connect(ctx context.Context, passphrase string, pinnedRelay *domain.X25519Public) (*client.Manager, error) {
	id, err := a.Wire.IDs.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	if a.RelayURL == "" {
		return nil, domain.NewError(domain.ErrInternal, "app: no relay configured, use --relay")
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, a.RelayURL, nil)
	if err != nil {
		return nil, err
	}

	mgr := client.NewManager(ws, id)
	mgr.SetPreKeyStore(a.Wire.PreKeys)
	if err := mgr.Handshake(pinnedRelay); err != nil {
		ws.Close()
		return nil, err
	}
	return mgr, nil
}

// PinnedRelayKey looks up the relay identity key the account profile for
// (RelayURL, username) pinned at registration, or nil when this client
// has never registered with that relay.
func (a *App) PinnedRelayKey(username domain.Username) *domain.X25519Public {
	profile, ok, err := a.Wire.Accounts.LoadAccountProfile(a.RelayURL, username)
	if err != nil || !ok {
		return nil
	}
	key := profile.RelayIdentityKey
	return &key
}
