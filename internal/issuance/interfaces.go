package issuance

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks SessionStore,StateMachine,ClaimStore,VendorClient,Signer,Sender,AuditPublisher

import (
	"context"

	"vcissuer/internal/audit"
	"vcissuer/internal/delivery"
	"vcissuer/internal/session/models"
	"vcissuer/internal/vendor"
	id "vcissuer/pkg/domain"
)

// SessionStore resolves the session a vendor callback refers to.
type SessionStore interface {
	FindByVendorSessionID(ctx context.Context, vendorSessionID id.VendorSessionID) (*models.Session, error)
}

// StateMachine writes the terminal session states.
type StateMachine interface {
	MarkCredentialIssued(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	MarkIssuanceFailed(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
}

// ClaimStore returns the identity the user claimed at session start.
type ClaimStore interface {
	FindBySessionID(ctx context.Context, sessionID id.SessionID) (*models.IdentityClaim, error)
}

type VendorClient interface {
	GetCompletedSession(ctx context.Context, vendorSessionID id.VendorSessionID) (*vendor.SessionResult, error)
	GetMediaContent(ctx context.Context, vendorSessionID id.VendorSessionID, mediaID string) (*vendor.DocumentFields, error)
}

type Signer interface {
	Sign(ctx context.Context, claims any, issuerDNS string) (string, error)
}

// Sender posts the terminal message for a session to the relying party.
type Sender interface {
	Send(ctx context.Context, outcome delivery.Outcome) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
