// Package wire defines the JSON request/response envelopes exchanged over
// the client-relay WebSocket connection: a status-coded response wrapper,
// the four message schemas (establish_connection, register,
// get_user_bundle, send_message), and the base64 framing used for every
// binary field. Every request is correlated to its response by a 128-bit
// UUID (google/uuid) so the client's pending-request table can match
// asynchronous replies to the call that made them.
package wire
