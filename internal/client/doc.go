// Package client implements the session manager a duskline client runs
// over its one persistent WebSocket connection to the relay: the
// request/response correlation table keyed by UUID, the outbound
// request sink and inbound event stream running as a joined pair of
// goroutines, and the in-memory table of per-peer Double-Ratchet
// sessions. Ratchet state never touches disk — it lives exactly as long
// as the process does, per the data model's ban on persisting message
// history.
package client
