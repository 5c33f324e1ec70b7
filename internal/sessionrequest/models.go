package sessionrequest

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
)

// Request is the body the relying party posts to start a journey. Request
// holds the compact JWE wrapping the signed request object.
type Request struct {
	ClientID        string `json:"client_id" validate:"required,notblank"`
	Request         string `json:"request" validate:"required,notblank"`
	ClientIPAddress string `json:"-"`
}

func (r *Request) Normalize() {
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.Request = strings.TrimSpace(r.Request)
}

type Result struct {
	SessionID   string `json:"session_id"`
	State       string `json:"state"`
	RedirectURI string `json:"redirect_uri"`
}

// Client is a relying party allowed to start sessions.
type Client struct {
	ID           string
	RedirectURI  string
	JWKSEndpoint string
}

// requestClaims is the verified payload of the request object.
type requestClaims struct {
	ClientID            string           `json:"client_id" validate:"required,notblank"`
	RedirectURI         string           `json:"redirect_uri" validate:"required,url"`
	State               string           `json:"state" validate:"required,notblank"`
	JourneyID           string           `json:"govuk_signin_journey_id" validate:"required,notblank"`
	Subject             string           `json:"sub"`
	PersistentSessionID string           `json:"persistent_session_id"`
	ExpiresAt           *jwt.NumericDate `json:"exp" validate:"required"`
	SharedClaims        sharedClaims     `json:"shared_claims"`
}

type sharedClaims struct {
	Name         []nameClaim    `json:"name" validate:"required,min=1,dive"`
	BirthDate    []birthDate    `json:"birthDate"`
	Address      []addressClaim `json:"address" validate:"required,min=1,dive"`
	EmailAddress string         `json:"emailAddress" validate:"omitempty,email"`
}

type nameClaim struct {
	NameParts []namePartClaim `json:"nameParts" validate:"required,min=1,dive"`
}

type namePartClaim struct {
	Value string `json:"value" validate:"required,notblank"`
	Type  string `json:"type" validate:"oneof=GivenName FamilyName"`
}

type birthDate struct {
	Value string `json:"value"`
}

type addressClaim struct {
	BuildingNumber  string `json:"buildingNumber" validate:"required_without=BuildingName"`
	BuildingName    string `json:"buildingName"`
	StreetName      string `json:"streetName"`
	AddressLocality string `json:"addressLocality"`
	PostalCode      string `json:"postalCode" validate:"required,notblank"`
	AddressCountry  string `json:"addressCountry"`
	ValidFrom       string `json:"validFrom"`
	ValidUntil      string `json:"validUntil"`
}

// hasFullName reports whether the first name carries both a given and a
// family part.
func (c sharedClaims) hasFullName() bool {
	var given, family bool
	for _, p := range c.Name[0].NameParts {
		switch models.NamePartType(p.Type) {
		case models.GivenName:
			given = true
		case models.FamilyName:
			family = true
		}
	}
	return given && family
}

// preferredAddress is the current address: one with no end date, the most
// recently started if there are several. With none current the first wins.
func (c sharedClaims) preferredAddress() addressClaim {
	preferred := c.Address[0]
	found := false
	for _, a := range c.Address {
		if a.ValidUntil != "" {
			continue
		}
		if !found || a.ValidFrom > preferred.ValidFrom {
			preferred, found = a, true
		}
	}
	return preferred
}

func (c sharedClaims) identityClaim(sessionID id.SessionID) *models.IdentityClaim {
	claim := &models.IdentityClaim{
		SessionID:    sessionID,
		EmailAddress: c.EmailAddress,
	}
	for _, n := range c.Name {
		name := models.Name{NameParts: make([]models.NamePart, 0, len(n.NameParts))}
		for _, p := range n.NameParts {
			name.NameParts = append(name.NameParts, models.NamePart{Value: strings.TrimSpace(p.Value), Type: models.NamePartType(p.Type)})
		}
		claim.Names = append(claim.Names, name)
	}
	for _, b := range c.BirthDate {
		claim.BirthDates = append(claim.BirthDates, b.Value)
	}
	a := c.preferredAddress()
	claim.Addresses = []models.PostalAddress{{
		BuildingNumber:  a.BuildingNumber,
		BuildingName:    a.BuildingName,
		StreetName:      a.StreetName,
		AddressLocality: a.AddressLocality,
		PostalCode:      a.PostalCode,
		AddressCountry:  a.AddressCountry,
	}}
	return claim
}
