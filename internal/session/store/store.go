// Package store persists sessions. Every backend supports lookup by session
// id, vendor session id and authorization code, and writes only through
// ConditionalUpdate once a session exists.
package store

import (
	"context"
	"fmt"
	"slices"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
	"vcissuer/pkg/platform/sentinel"
)

// Error contract for every backend:
// - a missing session wraps sentinel.ErrNotFound
// - a failed state precondition wraps sentinel.ErrConditionFailed
// - infrastructure failures are wrapped with the operation name

var (
	errSessionNotFound  = fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	errStateMismatch    = fmt.Errorf("session state precondition failed: %w", sentinel.ErrConditionFailed)
	errSessionExists    = fmt.Errorf("session already exists: %w", sentinel.ErrConditionFailed)
	errVendorIDConflict = fmt.Errorf("vendor session id already bound: %w", sentinel.ErrConditionFailed)
)

// Store is the full session persistence contract. Consumers depend on the
// narrower interfaces they need.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindByVendorSessionID(ctx context.Context, vendorSessionID id.VendorSessionID) (*models.Session, error)
	FindByAuthorizationCode(ctx context.Context, code string) (*models.Session, error)
	ConditionalUpdate(ctx context.Context, sessionID id.SessionID, expected []models.AuthState, fields models.Fields) error
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
	_ Store = (*DynamoStore)(nil)
)

func validateNew(session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required: %w", sentinel.ErrInvalidInput)
	}
	if session.ID.IsNil() {
		return fmt.Errorf("session id is required: %w", sentinel.ErrInvalidInput)
	}
	if !session.AuthState.IsValid() {
		return fmt.Errorf("session state %q: %w", session.AuthState, sentinel.ErrInvalidInput)
	}
	return nil
}

func stateAllowed(current models.AuthState, expected []models.AuthState) bool {
	return slices.Contains(expected, current)
}

// vendorRebind reports whether fields would replace an existing vendor id.
func vendorRebind(current id.VendorSessionID, fields models.Fields) bool {
	return fields.VendorSessionID != nil && !current.IsNil() && *fields.VendorSessionID != current
}
