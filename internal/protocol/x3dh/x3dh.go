package x3dh

import (
	"crypto/subtle"

	"duskline/internal/crypto"
	"duskline/internal/domain"
	"duskline/internal/util/memzero"
)

// rootInfo is the HKDF info string identifying the X3DH root derivation.
// It is distinct from the Double Ratchet's own KDF_RK info ("rk") so the
// two derivations never collide even if ever fed the same ikm.
const rootInfo = "duskline-x3dh-root"

// domainSeparator is the 32-byte X3DH prefix F, required ahead of the DH
// transcript so the root secret cannot be confused with output from a
// related protocol that happens to hash the same DH values.
var domainSeparator = func() [32]byte {
	var f [32]byte
	for i := range f {
		f[i] = 0xFF
	}
	return f
}()

// Result is the pair of session keys X3DH yields for one party. EncryptKey
// is used to seal frames sent to the peer; DecryptKey is used to open
// frames received from the peer. The initiator's EncryptKey equals the
// responder's DecryptKey and vice versa.
type Result struct {
	EncryptKey []byte
	DecryptKey []byte
}

// Zero wipes both derived keys.
func (r *Result) Zero() {
	memzero.Zero(r.EncryptKey)
	memzero.Zero(r.DecryptKey)
}

// VerifyBundle checks a bundle's signed pre-key signature against the
// bundle's own signing key. It is the first check run on any received
// bundle; everything downstream assumes it has passed.
func VerifyBundle(b domain.PreKeyBundle) error {
	if !crypto.VerifyEd25519(b.SigningKey, b.SignablePayload(), b.SignedPreKeySignature) {
		return domain.NewError(domain.ErrInvalidSignature, "x3dh: bundle signature verification failed")
	}
	return nil
}

// DeriveInitial runs the initiator side of X3DH against peerBundle and
// builds the Initial Message that carries the handshake to the responder.
func DeriveInitial(myIdentity domain.Identity, peerBundle domain.PreKeyBundle) (Result, domain.InitialMessage, error) {
	if err := VerifyBundle(peerBundle); err != nil {
		return Result{}, domain.InitialMessage{}, err
	}

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return Result{}, domain.InitialMessage{}, err
	}

	dh1, err := crypto.DH(myIdentity.XPriv, peerBundle.SignedPreKey)
	if err != nil {
		return Result{}, domain.InitialMessage{}, err
	}
	dh2, err := crypto.DH(ephPriv, peerBundle.IdentityKey)
	if err != nil {
		return Result{}, domain.InitialMessage{}, err
	}
	dh3, err := crypto.DH(ephPriv, peerBundle.SignedPreKey)
	if err != nil {
		return Result{}, domain.InitialMessage{}, err
	}

	km := make([]byte, 0, 32*4)
	km = append(km, domainSeparator[:]...)
	km = append(km, dh1[:]...)
	km = append(km, dh2[:]...)
	km = append(km, dh3[:]...)

	var otpkID domain.OneTimePreKeyID
	if peerBundle.OneTimePreKey != nil {
		dh4, err := crypto.DH(ephPriv, peerBundle.OneTimePreKey.Pub)
		if err != nil {
			return Result{}, domain.InitialMessage{}, err
		}
		km = append(km, dh4[:]...)
		otpkID = peerBundle.OneTimePreKey.ID
		memzero.Zero(dh4[:])
	}

	okm, err := crypto.HKDFExpand(km, zeroSalt(), []byte(rootInfo), 64)
	memzero.Zero(km)
	memzero.Zero(dh1[:])
	memzero.Zero(dh2[:])
	memzero.Zero(dh3[:])
	if err != nil {
		return Result{}, domain.InitialMessage{}, err
	}

	result := Result{EncryptKey: okm[:32], DecryptKey: okm[32:]}

	ad := associatedData(myIdentity.XPub, peerBundle.IdentityKey)
	nonce, challenge, err := crypto.Seal(result.EncryptKey, ad, myIdentity.XPub.Slice())
	if err != nil {
		return Result{}, domain.InitialMessage{}, err
	}

	im := domain.InitialMessage{
		InitiatorIdentityKey: myIdentity.XPub,
		EphemeralKey:         ephPub,
		SignedPreKeyID:       peerBundle.SignedPreKeyID,
		OneTimePreKeyID:      otpkID,
		AssociatedData:       ad,
		Challenge:            append(nonce, challenge...),
	}
	return result, im, nil
}

// ProcessInitial runs the responder side of X3DH: it recomputes the DH
// transcript with local private counterparts, derives the same OKM, and
// validates the initiator-authentication challenge in constant time.
func ProcessInitial(
	myIdentity domain.Identity,
	mySignedPreKeyPriv domain.X25519Private,
	myOneTimePreKeyPriv *domain.X25519Private,
	im domain.InitialMessage,
) (Result, error) {
	dh1, err := crypto.DH(mySignedPreKeyPriv, im.InitiatorIdentityKey)
	if err != nil {
		return Result{}, err
	}
	dh2, err := crypto.DH(myIdentity.XPriv, im.EphemeralKey)
	if err != nil {
		return Result{}, err
	}
	dh3, err := crypto.DH(mySignedPreKeyPriv, im.EphemeralKey)
	if err != nil {
		return Result{}, err
	}

	km := make([]byte, 0, 32*4)
	km = append(km, domainSeparator[:]...)
	km = append(km, dh1[:]...)
	km = append(km, dh2[:]...)
	km = append(km, dh3[:]...)

	if myOneTimePreKeyPriv != nil {
		if im.OneTimePreKeyID == "" {
			return Result{}, domain.NewError(domain.ErrInvalidKey, "x3dh: initial message omits one-time pre-key id but a private half was supplied")
		}
		dh4, err := crypto.DH(*myOneTimePreKeyPriv, im.EphemeralKey)
		if err != nil {
			return Result{}, err
		}
		km = append(km, dh4[:]...)
		memzero.Zero(dh4[:])
	}

	okm, err := crypto.HKDFExpand(km, zeroSalt(), []byte(rootInfo), 64)
	memzero.Zero(km)
	memzero.Zero(dh1[:])
	memzero.Zero(dh2[:])
	memzero.Zero(dh3[:])
	if err != nil {
		return Result{}, err
	}

	// Responder's decryption key equals the initiator's encryption key.
	result := Result{EncryptKey: okm[32:], DecryptKey: okm[:32]}

	if len(im.Challenge) < crypto.NonceSize {
		return Result{}, domain.NewError(domain.ErrInvalidLength, "x3dh: challenge too short")
	}
	nonce, ct := im.Challenge[:crypto.NonceSize], im.Challenge[crypto.NonceSize:]
	claimed, err := crypto.Open(result.DecryptKey, nonce, im.AssociatedData, ct)
	if err != nil {
		return Result{}, domain.NewError(domain.ErrInvalidKey, "x3dh: challenge decryption failed")
	}
	if len(claimed) != len(im.InitiatorIdentityKey) || subtle.ConstantTimeCompare(claimed, im.InitiatorIdentityKey.Slice()) != 1 {
		return Result{}, domain.NewError(domain.ErrInvalidKey, "x3dh: challenge identity mismatch")
	}

	return result, nil
}

// ProcessInitialPinned wraps ProcessInitial with the check a client runs
// against its relay: the initiator's claimed identity must match the
// locally pinned public key before any derived key is accepted, so a
// relay whose identity changed since registration fails the handshake
// rather than the challenge.
func ProcessInitialPinned(
	myIdentity domain.Identity,
	mySignedPreKeyPriv domain.X25519Private,
	myOneTimePreKeyPriv *domain.X25519Private,
	im domain.InitialMessage,
	expectedInitiator domain.X25519Public,
) (Result, error) {
	if subtle.ConstantTimeCompare(im.InitiatorIdentityKey.Slice(), expectedInitiator.Slice()) != 1 {
		return Result{}, domain.NewError(domain.ErrInvalidKey, "x3dh: initiator identity does not match pinned key")
	}
	return ProcessInitial(myIdentity, mySignedPreKeyPriv, myOneTimePreKeyPriv, im)
}

func associatedData(initiatorIdentity, responderIdentity domain.X25519Public) []byte {
	ad := make([]byte, 0, 64)
	ad = append(ad, initiatorIdentity.Slice()...)
	ad = append(ad, responderIdentity.Slice()...)
	return ad
}

func zeroSalt() []byte {
	return make([]byte, 32)
}
