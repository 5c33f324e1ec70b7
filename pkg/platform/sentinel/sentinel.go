package sentinel

import "errors"

// Sentinel dependency errors. Stores and clients return these (optionally
// wrapped) so services can translate them into domain errors exactly once.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrExpired         = errors.New("expired")
	ErrAlreadyUsed     = errors.New("already used")
	ErrInvalidState    = errors.New("invalid state")
	ErrConditionFailed = errors.New("conditional update failed")
	ErrUnavailable     = errors.New("unavailable")
)
