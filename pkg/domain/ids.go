// Package domain provides type-safe identifiers shared across modules.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "vcissuer/pkg/domain-errors"
)

// SessionID identifies one verification journey. VendorSessionID is the
// vendor's own identifier and is never interchangeable with it.
type (
	SessionID       uuid.UUID
	VendorSessionID string
)

// NewSessionID mints a random session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID validates a session id at a trust boundary.
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session ID cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid session ID format")
	}
	if parsed == uuid.Nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session ID cannot be nil")
	}
	return SessionID(parsed), nil
}

// ParseVendorSessionID rejects blank vendor ids; the vendor owns the format.
func ParseVendorSessionID(s string) (VendorSessionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "vendor session ID cannot be empty")
	}
	return VendorSessionID(s), nil
}

func (id SessionID) String() string       { return uuid.UUID(id).String() }
func (id VendorSessionID) String() string { return string(id) }

func (id SessionID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id VendorSessionID) IsNil() bool { return id == "" }
