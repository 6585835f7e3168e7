package types

// Identity holds the long-term X25519 (agreement) and Ed25519 (signing)
// key pairs for a principal (a client or the relay). The private halves
// never leave the owning process; only the public halves are ever
// serialized into a PreKeyBundle.
type Identity struct {
	XPub   X25519Public   `json:"xpub"`
	XPriv  X25519Private  `json:"xpriv"`
	EdPub  Ed25519Public  `json:"edpub"`
	EdPriv Ed25519Private `json:"edpriv"`
}

// Zero wipes both private halves of the identity.
func (id *Identity) Zero() {
	id.XPriv.Zero()
	id.EdPriv.Zero()
}
