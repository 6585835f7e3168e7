// Package relayserver implements the session relay: a long-lived
// WebSocket server that authenticates each connection via X3DH, stores
// registered usernames and their pre-key bundles, and forwards the outer
// layer of every message between connected peers without ever inspecting
// the inner Double-Ratchet ciphertext it carries.
//
// Each connection runs a receiver goroutine and a sender goroutine,
// joined by an errgroup.Group so either side's exit tears down the
// other. Inbound frames decrypt under the connection's own outer session
// key (derived once, at establish_connection) before being dispatched by
// message type; outbound frames are serialized and queued on a bounded
// channel so one slow reader cannot block the registry.
package relayserver
