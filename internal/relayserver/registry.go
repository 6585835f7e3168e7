package relayserver

import (
	"sync"

	"duskline/internal/domain"
	"duskline/internal/wire"
)

// queuedMessage is a send_message payload in flight to a connected
// recipient. It never touches disk and is never held past the single
// handoff to the recipient's sender channel: there is no at-rest
// mailbox for offline delivery, so a recipient with no live connection
// simply fails the send as not found.
type queuedMessage struct {
	From domain.Username
	Req  wire.SendMessageRequest
}

// account is everything the registry remembers about one registered
// username, for exactly as long as its connection stays up.
type account struct {
	bundleCore domain.PreKeyBundle
	otpks      []domain.OneTimePreKeyPublic
	conn       *Connection
}

// Registry is the relay's mutex-guarded table of registered usernames:
// per-account state plus the live connection handle needed to push
// messages without a polling round trip. A registration only exists
// while its connection is live — a disconnect removes the user
// outright, so a later registration under the same name is a fresh
// registration, not a resumption.
type Registry struct {
	mu    sync.Mutex
	users map[domain.Username]*account
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[domain.Username]*account)}
}

// Register reserves username with the given bundle core fields and
// one-time pre-key pool, binding it immediately to conn. It rejects a
// username that is already registered by a still-live connection.
func (r *Registry) Register(
	username domain.Username,
	bundleCore domain.PreKeyBundle,
	otpks []domain.OneTimePreKeyPublic,
	conn *Connection,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[username]; exists {
		return domain.NewError(domain.ErrUserAlreadyExists, "relay: username %q already registered", username)
	}
	r.users[username] = &account{
		bundleCore: bundleCore,
		otpks:      append([]domain.OneTimePreKeyPublic(nil), otpks...),
		conn:       conn,
	}
	return nil
}

// Unbind removes username from the registry when its owning connection
// drops. It is a no-op if a different, newer connection has since
// replaced conn under the same name.
func (r *Registry) Unbind(username domain.Username, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if acct, ok := r.users[username]; ok && acct.conn == conn {
		delete(r.users, username)
	}
}

// Bundle returns username's current bundle with one one-time pre-key
// popped from the pool and embedded, if any remain. Popping happens
// before the caller gets the result, so the same one-time pre-key is
// never handed out twice.
func (r *Registry) Bundle(username domain.Username) (domain.PreKeyBundle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.users[username]
	if !ok {
		return domain.PreKeyBundle{}, false
	}
	b := acct.bundleCore
	if len(acct.otpks) > 0 {
		otpk := acct.otpks[0]
		acct.otpks = acct.otpks[1:]
		b.OneTimePreKey = &otpk
	}
	return b, true
}

// Deliver routes a send_message payload directly onto the recipient's
// live outbound channel. There is no at-rest mailbox: a recipient who
// is not currently connected — whether never registered or since
// disconnected — fails the send with ErrUserNotFound.
func (r *Registry) Deliver(to domain.Username, msg queuedMessage) error {
	r.mu.Lock()
	acct, ok := r.users[to]
	if !ok || acct.conn == nil {
		r.mu.Unlock()
		return domain.NewError(domain.ErrUserNotFound, "relay: %q is not connected", to)
	}
	conn := acct.conn
	r.mu.Unlock()

	return conn.pushIncoming(msg)
}
