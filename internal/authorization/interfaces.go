package authorization

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks SessionStore,StateMachine,Signer,AuditPublisher

import (
	"context"
	"time"

	"vcissuer/internal/audit"
	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
)

type SessionStore interface {
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindByAuthorizationCode(ctx context.Context, code string) (*models.Session, error)
}

// StateMachine writes the code and token transitions.
type StateMachine interface {
	IssueAuthorizationCode(ctx context.Context, sessionID id.SessionID, code string, expiry time.Time) (*models.Session, error)
	IssueAccessToken(ctx context.Context, sessionID id.SessionID, token string, expiry time.Time) (*models.Session, error)
}

type Signer interface {
	Sign(ctx context.Context, claims any, issuerDNS string) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
