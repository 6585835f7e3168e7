// Package app wires together the file stores and services that back the
// duskline CLI: identity and pre-key persistence, the higher-level
// services built on top of them, and the WebSocket dial-and-handshake
// step that hands a caller a ready internal/client.Manager.
package app
