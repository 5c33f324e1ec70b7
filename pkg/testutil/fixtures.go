package testutil

import (
	"time"

	"github.com/google/uuid"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
)

// TestIDs are fixed identifiers for deterministic fixtures.
var TestIDs = struct {
	SessionID1      id.SessionID
	SessionID2      id.SessionID
	VendorSessionID id.VendorSessionID
	Subject         string
}{
	SessionID1:      id.SessionID(uuid.MustParse("eeee0000-0000-0000-0000-000000000001")),
	SessionID2:      id.SessionID(uuid.MustParse("eeee0000-0000-0000-0000-000000000002")),
	VendorSessionID: "b988e9c8-47c6-430c-9ca3-8cdacd85ee91",
	Subject:         "urn:fdc:gov.uk:2022:0df67954-5537-4c98-92d9-e95f0b2e6f44",
}

// SessionBuilder provides a fluent interface for building test sessions.
type SessionBuilder struct {
	session *models.Session
}

// NewSessionBuilder starts from a fresh session in SESSION_CREATED.
func NewSessionBuilder() *SessionBuilder {
	now := time.Now().UTC().Truncate(time.Second)
	return &SessionBuilder{
		session: &models.Session{
			ID:                  id.NewSessionID(),
			ClientID:            "ipv-core-stub",
			ClientSessionID:     "sdfssg",
			RedirectURI:         "https://ipvstub.review-c.build.account.gov.uk/redirect",
			OAuthState:          "Y@atr",
			Subject:             TestIDs.Subject,
			AuthState:           models.StateSessionCreated,
			PersistentSessionID: "sdgsdg",
			ClientIPAddress:     "127.0.0.1",
			ExpiresAt:           now.Add(2 * time.Hour),
			CreatedAt:           now,
		},
	}
}

func (b *SessionBuilder) WithID(sessionID id.SessionID) *SessionBuilder {
	b.session.ID = sessionID
	return b
}

func (b *SessionBuilder) WithState(state models.AuthState) *SessionBuilder {
	b.session.AuthState = state
	return b
}

func (b *SessionBuilder) WithVendorSessionID(vendorSessionID id.VendorSessionID) *SessionBuilder {
	b.session.VendorSessionID = vendorSessionID
	return b
}

func (b *SessionBuilder) WithAuthorizationCode(code string, expiry time.Time) *SessionBuilder {
	b.session.AuthorizationCode = code
	b.session.AuthorizationCodeExpiry = expiry
	return b
}

func (b *SessionBuilder) WithAccessToken(token string, expiry time.Time) *SessionBuilder {
	b.session.AccessToken = token
	b.session.AccessTokenExpiry = expiry
	return b
}

func (b *SessionBuilder) WithRedirectURI(uri string) *SessionBuilder {
	b.session.RedirectURI = uri
	return b
}

func (b *SessionBuilder) ExpiresAt(t time.Time) *SessionBuilder {
	b.session.ExpiresAt = t
	return b
}

func (b *SessionBuilder) Build() *models.Session {
	cp := *b.session
	return &cp
}

// NewIdentityClaim returns a claim for sessionID with one name.
func NewIdentityClaim(sessionID id.SessionID, given []string, family string) *models.IdentityClaim {
	parts := make([]models.NamePart, 0, len(given)+1)
	for _, g := range given {
		parts = append(parts, models.NamePart{Value: g, Type: models.GivenName})
	}
	parts = append(parts, models.NamePart{Value: family, Type: models.FamilyName})
	return &models.IdentityClaim{
		SessionID:    sessionID,
		Names:        []models.Name{{NameParts: parts}},
		BirthDates:   []string{"1988-12-04"},
		EmailAddress: "test@example.com",
	}
}
