// Package models holds the session entity shared by every processor and the
// identity claims captured before the vendor journey starts.
package models

import (
	"fmt"
	"time"

	id "vcissuer/pkg/domain"
)

// AuthState is the authorization progress of a session.
type AuthState string

const (
	StateSessionCreated       AuthState = "SESSION_CREATED"
	StateDocumentSelected     AuthState = "DOCUMENT_SELECTED"
	StateVendorSessionCreated AuthState = "VENDOR_SESSION_CREATED"
	StateDataReceived         AuthState = "DATA_RECEIVED"
	StateAuthCodeIssued       AuthState = "AUTH_CODE_ISSUED"
	StateAccessTokenIssued    AuthState = "ACCESS_TOKEN_ISSUED"
	StateCredentialIssued     AuthState = "CREDENTIAL_ISSUED"
	StateIssuanceFailed       AuthState = "CREDENTIAL_ISSUANCE_FAILED"
)

// rank orders states. Siblings share a rank; both terminal states share the
// highest rank so neither can follow the other.
var rank = map[AuthState]int{
	StateSessionCreated:       0,
	StateDocumentSelected:     1,
	StateVendorSessionCreated: 1,
	StateDataReceived:         1,
	StateAuthCodeIssued:       2,
	StateAccessTokenIssued:    3,
	StateCredentialIssued:     4,
	StateIssuanceFailed:       4,
}

// ParseAuthState accepts only the values above.
func ParseAuthState(s string) (AuthState, error) {
	st := AuthState(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown auth state %q", s)
	}
	return st, nil
}

func (s AuthState) String() string { return string(s) }

func (s AuthState) IsValid() bool {
	_, ok := rank[s]
	return ok
}

// Rank reports the position of s in the state order, or -1 if unknown.
func (s AuthState) Rank() int {
	if r, ok := rank[s]; ok {
		return r
	}
	return -1
}

// Precedes reports whether moving from s to next advances the session.
func (s AuthState) Precedes(next AuthState) bool {
	return s.IsValid() && next.IsValid() && s.Rank() < next.Rank()
}

func (s AuthState) IsTerminal() bool {
	return s == StateCredentialIssued || s == StateIssuanceFailed
}

// Session is one verification journey.
type Session struct {
	ID              id.SessionID
	ClientID        string
	ClientSessionID string // relying party correlation id (govuk_signin_journey_id)
	RedirectURI     string
	// OAuthState is the opaque state parameter the relying party sent; it is
	// echoed on every redirect and delivery.
	OAuthState          string
	Subject             string
	AuthState           AuthState
	VendorSessionID     id.VendorSessionID
	DocumentSelected    string
	PersistentSessionID string
	ClientIPAddress     string
	AttemptCount        int

	AuthorizationCode       string
	AuthorizationCodeExpiry time.Time
	AccessToken             string
	AccessTokenExpiry       time.Time

	ExpiresAt time.Time
	CreatedAt time.Time
}

func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// HasState reports whether the session is in any of states.
func (s *Session) HasState(states ...AuthState) bool {
	for _, st := range states {
		if s.AuthState == st {
			return true
		}
	}
	return false
}

// Fields are the attributes a single conditional update writes. Nil fields
// are left untouched; AuthState is always written.
type Fields struct {
	AuthState               AuthState
	VendorSessionID         *id.VendorSessionID
	DocumentSelected        *string
	AuthorizationCode       *string
	AuthorizationCodeExpiry *time.Time
	AccessToken             *string
	AccessTokenExpiry       *time.Time
}

// ClearAuthorizationCode marks the code and its expiry for removal.
func (f Fields) ClearAuthorizationCode() Fields {
	empty, zero := "", time.Time{}
	f.AuthorizationCode = &empty
	f.AuthorizationCodeExpiry = &zero
	return f
}

// Apply writes f onto s.
func (f Fields) Apply(s *Session) {
	s.AuthState = f.AuthState
	if f.VendorSessionID != nil {
		s.VendorSessionID = *f.VendorSessionID
	}
	if f.DocumentSelected != nil {
		s.DocumentSelected = *f.DocumentSelected
	}
	if f.AuthorizationCode != nil {
		s.AuthorizationCode = *f.AuthorizationCode
	}
	if f.AuthorizationCodeExpiry != nil {
		s.AuthorizationCodeExpiry = *f.AuthorizationCodeExpiry
	}
	if f.AccessToken != nil {
		s.AccessToken = *f.AccessToken
	}
	if f.AccessTokenExpiry != nil {
		s.AccessTokenExpiry = *f.AccessTokenExpiry
	}
}

// NamePartType distinguishes given and family name parts.
type NamePartType string

const (
	GivenName  NamePartType = "GivenName"
	FamilyName NamePartType = "FamilyName"
)

type NamePart struct {
	Value string
	Type  NamePartType
}

type Name struct {
	NameParts []NamePart
}

// GivenNames returns the given name parts in order.
func (n Name) GivenNames() []string {
	return n.partsOf(GivenName)
}

func (n Name) FamilyNames() []string {
	return n.partsOf(FamilyName)
}

func (n Name) partsOf(t NamePartType) []string {
	var out []string
	for _, p := range n.NameParts {
		if p.Type == t {
			out = append(out, p.Value)
		}
	}
	return out
}

type PostalAddress struct {
	BuildingNumber  string
	BuildingName    string
	StreetName      string
	AddressLocality string
	PostalCode      string
	AddressCountry  string
}

// IdentityClaim is what the user claimed before the vendor journey.
type IdentityClaim struct {
	SessionID    id.SessionID
	Names        []Name
	BirthDates   []string
	Addresses    []PostalAddress
	EmailAddress string
}
