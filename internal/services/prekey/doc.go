// Package prekey manages the signed pre-key and the one-time pre-key pool
// used to bootstrap X3DH.
//
// It rotates the current signed pre-key, assembles bundles for
// registration, and tracks one-time pre-key consumption via the store.
package prekey
