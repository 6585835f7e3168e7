package envelope

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"

	"duskline/internal/crypto"
	"duskline/internal/domain"
)

const adLenFieldSize = 2

// Seal encrypts plaintext under key with AES-256-GCM, binds ad as
// additional authenticated data, and frames the result as
// base64(nonce ∥ ad_len ∥ ad ∥ ct∥tag).
func Seal(key, ad, plaintext []byte) (string, error) {
	if len(ad) > 0xFFFF {
		return "", domain.NewError(domain.ErrInvalidLength, "envelope: ad too long (%d bytes)", len(ad))
	}
	nonce, ciphertext, err := crypto.Seal(key, ad, plaintext)
	if err != nil {
		return "", err
	}
	frame := make([]byte, 0, len(nonce)+adLenFieldSize+len(ad)+len(ciphertext))
	frame = append(frame, nonce...)
	frame = binary.BigEndian.AppendUint16(frame, uint16(len(ad)))
	frame = append(frame, ad...)
	frame = append(frame, ciphertext...)
	return base64.StdEncoding.EncodeToString(frame), nil
}

// Open reverses Seal: it decodes blob, authenticates the ciphertext under
// key, and requires the frame's embedded ad to equal expectedAD in
// constant time before returning plaintext.
func Open(key []byte, blob string, expectedAD []byte) ([]byte, error) {
	frame, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, domain.NewError(domain.ErrInvalidLength, "envelope: bad base64 framing")
	}
	if len(frame) < crypto.NonceSize+adLenFieldSize {
		return nil, domain.NewError(domain.ErrInvalidLength, "envelope: frame too short")
	}
	nonce := frame[:crypto.NonceSize]
	rest := frame[crypto.NonceSize:]
	adLen := int(binary.BigEndian.Uint16(rest[:adLenFieldSize]))
	rest = rest[adLenFieldSize:]
	if len(rest) < adLen {
		return nil, domain.NewError(domain.ErrInvalidLength, "envelope: ad_len exceeds frame")
	}
	ad := rest[:adLen]
	ciphertext := rest[adLen:]

	if len(ad) != len(expectedAD) || subtle.ConstantTimeCompare(ad, expectedAD) != 1 {
		return nil, domain.NewError(domain.ErrAeadFailure, "envelope: associated data mismatch")
	}
	return crypto.Open(key, nonce, ad, ciphertext)
}
