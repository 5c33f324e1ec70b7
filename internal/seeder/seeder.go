// Package seeder populates local stores with demo journeys so the callback
// and token endpoints can be exercised without an upstream session service.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
)

const (
	demoClientID    = "ipv-core-stub"
	demoRedirectURI = "http://localhost:8085/callback"
	demoSessionTTL  = 2 * time.Hour
)

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
}

type ClaimStore interface {
	Save(ctx context.Context, claim *models.IdentityClaim) error
}

// Journey is one seeded session and the identifiers a caller needs to drive it.
type Journey struct {
	Name            string
	SessionID       id.SessionID
	VendorSessionID id.VendorSessionID
	State           models.AuthState
}

type Seeder struct {
	sessions SessionStore
	claims   ClaimStore
	logger   *slog.Logger
	now      func() time.Time
}

func New(sessions SessionStore, claims ClaimStore, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{sessions: sessions, claims: claims, logger: logger, now: time.Now}
}

// SeedAll creates one journey waiting for an authorization code and one
// waiting for the vendor callback. Both carry an identity claim.
func (s *Seeder) SeedAll(ctx context.Context) ([]Journey, error) {
	s.logger.Info("seeding demo journeys")

	journeys := []Journey{
		{Name: "awaiting-authorization", State: models.StateVendorSessionCreated},
		{Name: "awaiting-callback", State: models.StateAccessTokenIssued},
	}
	for i := range journeys {
		journeys[i].SessionID = id.NewSessionID()
		journeys[i].VendorSessionID = id.VendorSessionID(uuid.NewString())
		if err := s.seedJourney(ctx, journeys[i]); err != nil {
			return nil, fmt.Errorf("seed %s: %w", journeys[i].Name, err)
		}
		s.logger.Info("demo journey seeded",
			"journey", journeys[i].Name,
			"session_id", journeys[i].SessionID.String(),
			"vendor_session_id", string(journeys[i].VendorSessionID),
			"state", journeys[i].State.String(),
		)
	}
	return journeys, nil
}

func (s *Seeder) seedJourney(ctx context.Context, j Journey) error {
	now := s.now().UTC()
	session := &models.Session{
		ID:                  j.SessionID,
		ClientID:            demoClientID,
		ClientSessionID:     uuid.NewString(),
		RedirectURI:         demoRedirectURI,
		OAuthState:          uuid.NewString(),
		Subject:             "urn:fdc:demo:" + uuid.NewString(),
		AuthState:           j.State,
		VendorSessionID:     j.VendorSessionID,
		PersistentSessionID: uuid.NewString(),
		ClientIPAddress:     "127.0.0.1",
		ExpiresAt:           now.Add(demoSessionTTL),
		CreatedAt:           now,
	}
	if j.State == models.StateAccessTokenIssued {
		session.AccessToken = "demo-" + uuid.NewString()
		session.AccessTokenExpiry = now.Add(time.Hour)
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	claim := &models.IdentityClaim{
		SessionID: j.SessionID,
		Names: []models.Name{{NameParts: []models.NamePart{
			{Value: "Kenneth", Type: models.GivenName},
			{Value: "Decerqueira", Type: models.FamilyName},
		}}},
		BirthDates:   []string{"1965-07-08"},
		EmailAddress: "kenneth.decerqueira@example.com",
	}
	if err := s.claims.Save(ctx, claim); err != nil {
		return fmt.Errorf("save claim: %w", err)
	}
	return nil
}
