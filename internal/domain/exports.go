package domain

import (
	interfaces "duskline/internal/domain/interfaces"
	types "duskline/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username            = types.Username
	Fingerprint         = types.Fingerprint
	SignedPreKeyID      = types.SignedPreKeyID
	OneTimePreKeyID     = types.OneTimePreKeyID
	Identity            = types.Identity
	OneTimePreKeyPair   = types.OneTimePreKeyPair
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	PreKeyBundle        = types.PreKeyBundle
	InitialMessage      = types.InitialMessage
	DecryptedMessage    = types.DecryptedMessage
	RatchetHeader       = types.RatchetHeader
	RatchetState        = types.RatchetState
	Conversation        = types.Conversation
	AccountProfile      = types.AccountProfile
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	Ed25519Public       = types.Ed25519Public
	Ed25519Private      = types.Ed25519Private
	ErrorKind           = types.ErrorKind
	Error               = types.Error
)

// Error kind constants, aliased for compact imports.
const (
	ErrInvalidSignature    = types.ErrInvalidSignature
	ErrInvalidKey          = types.ErrInvalidKey
	ErrAeadFailure         = types.ErrAeadFailure
	ErrInvalidLength       = types.ErrInvalidLength
	ErrTooManySkipped      = types.ErrTooManySkipped
	ErrUnknownMessageIndex = types.ErrUnknownMessageIndex
	ErrUserNotFound        = types.ErrUserNotFound
	ErrUserAlreadyExists   = types.ErrUserAlreadyExists
	ErrInvalidUsername     = types.ErrInvalidUsername
	ErrNotAuthenticated    = types.ErrNotAuthenticated
	ErrBadRequest          = types.ErrBadRequest
	ErrTimeout             = types.ErrTimeout
	ErrTransportClosed     = types.ErrTransportClosed
	ErrInternal            = types.ErrInternal
)

// NewError constructs a typed core error.
var NewError = types.NewError

// HashOneTimePreKeyID derives a one-time pre-key's public identifier.
var HashOneTimePreKeyID = types.HashOneTimePreKeyID

// DecodeBundle parses the fixed-order pre-key bundle encoding.
var DecodeBundle = types.DecodeBundle

// DecodeInitialMessage parses the encoding produced by InitialMessage.Encode.
var DecodeInitialMessage = types.DecodeInitialMessage

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService = interfaces.IdentityService
	PreKeyService   = interfaces.PreKeyService
	IdentityStore   = interfaces.IdentityStore
	PreKeyStore     = interfaces.PreKeyStore
	AccountStore    = interfaces.AccountStore
)
