package types

import "time"

// DecryptedMessage is what the client session manager hands to the UI
// after successfully peeling both the outer and inner encryption layers.
type DecryptedMessage struct {
	From      Username
	Plaintext []byte
	Timestamp time.Time
}
