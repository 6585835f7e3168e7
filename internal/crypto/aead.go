package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"duskline/internal/domain"
)

// NonceSize is the AES-GCM nonce length used throughout duskline.
const NonceSize = 12

// Seal encrypts plaintext with AES-256-GCM under key, authenticating ad as
// additional data, and returns a fresh random nonce alongside the
// ciphertext||tag.
func Seal(key, ad, plaintext []byte) (nonce, ciphertext []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, NonceSize)
	if _, err = rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	ciphertext = gcm.Seal(nil, nonce, plaintext, ad)
	return nonce, ciphertext, nil
}

// Open decrypts and authenticates an AES-256-GCM ciphertext produced by Seal.
// It returns domain.ErrAeadFailure on any authentication failure.
func Open(key, nonce, ad, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, domain.NewError(domain.ErrInvalidLength, "aead: bad nonce length %d", len(nonce))
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, domain.NewError(domain.ErrAeadFailure, "aead: authentication failed")
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, domain.NewError(domain.ErrInvalidKey, "aead: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
