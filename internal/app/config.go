package app

// Config holds runtime wiring options for building the app.
type Config struct {
	Home     string // config directory, e.g. $HOME/.duskline
	RelayURL string // relay WebSocket URL, e.g. ws://127.0.0.1:8080/ws
}
