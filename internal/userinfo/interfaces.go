package userinfo

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks TokenVerifier

import (
	"context"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
)

type SessionStore interface {
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
}

// TokenVerifier checks an access token signed by this service.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}
