// Package commands defines the duskline CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - init         Create the local identity
//   - fingerprint  Print the identity fingerprint
//   - register     Publish a pre-key bundle and reserve a username
//   - add-peer     Run X3DH against a peer and seed a ratchet session
//   - chat         Persistent REPL: send and receive with a peer
//
// # Implementation
//
// The root command builds a Wire (stores and services rooted at --home)
// before any subcommand runs. A subcommand that needs a live connection
// dials the relay itself via App.Connect, since each one owns its own
// WebSocket session and its own background Manager.Run loop rather than
// sharing a pooled client the way a stateless HTTP relay client would.
package commands
