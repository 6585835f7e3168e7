package types

import "fmt"

// ErrorKind is an opaque, non-leaky classification for a core failure.
// The kind is safe to log and to report to a peer; the optional
// diagnostic string attached by Error.Error is never derived from
// secret material.
type ErrorKind string

const (
	ErrInvalidSignature    ErrorKind = "invalid_signature"
	ErrInvalidKey          ErrorKind = "invalid_key"
	ErrAeadFailure         ErrorKind = "aead_failure"
	ErrInvalidLength       ErrorKind = "invalid_length"
	ErrTooManySkipped      ErrorKind = "too_many_skipped"
	ErrUnknownMessageIndex ErrorKind = "unknown_message_number"
	ErrUserNotFound        ErrorKind = "user_not_found"
	ErrUserAlreadyExists   ErrorKind = "user_already_exists"
	ErrInvalidUsername     ErrorKind = "invalid_username"
	ErrNotAuthenticated    ErrorKind = "not_authenticated"
	ErrBadRequest          ErrorKind = "bad_request"
	ErrTimeout             ErrorKind = "timeout"
	ErrTransportClosed     ErrorKind = "transport_closed"
	ErrInternal            ErrorKind = "internal_error"
)

// Error is a typed core error: a closed-set kind tag plus an optional
// human-readable diagnostic that callers may log or show to a user.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is reports whether target names the same error kind, so callers can
// use errors.Is(err, &Error{Kind: ErrAeadFailure}) without matching Msg.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds a typed error of the given kind with a diagnostic
// string. The diagnostic must never be built from secret material.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
