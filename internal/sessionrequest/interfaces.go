package sessionrequest

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks RequestCrypto

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"vcissuer/internal/audit"
	"vcissuer/internal/session/models"
)

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
}

type ClaimStore interface {
	Save(ctx context.Context, claim *models.IdentityClaim) error
}

// RequestCrypto opens the encrypted request object and checks it against the
// keys the relying party publishes.
type RequestCrypto interface {
	Decrypt(ctx context.Context, compact string) (string, error)
	VerifyWithJWKS(ctx context.Context, token, endpoint, kid string) (jwt.MapClaims, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
