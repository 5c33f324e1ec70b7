package kmsjwt

import "fmt"

// Kind classifies adapter failures. Callers must be able to tell a missing
// key apart from a bad ciphertext, so every failure carries exactly one kind.
type Kind string

const (
	KindSigning        Kind = "signing"
	KindVerification   Kind = "verification"
	KindKeyNotFound    Kind = "key_not_found"
	KindMalformedJWE   Kind = "malformed_jwe"
	KindKeyUnwrap      Kind = "key_unwrap"
	KindPayloadDecrypt Kind = "payload_decrypt"
	KindDecode         Kind = "decode"
)

// Error is returned by every Adapter operation.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches by kind so callers can use the sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrSigning        = &Error{Kind: KindSigning}
	ErrVerification   = &Error{Kind: KindVerification}
	ErrKeyNotFound    = &Error{Kind: KindKeyNotFound}
	ErrMalformedJWE   = &Error{Kind: KindMalformedJWE}
	ErrKeyUnwrap      = &Error{Kind: KindKeyUnwrap}
	ErrPayloadDecrypt = &Error{Kind: KindPayloadDecrypt}
	ErrDecode         = &Error{Kind: KindDecode}
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}
