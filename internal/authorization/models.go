package authorization

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	GrantTypeAuthorizationCode = "authorization_code"
	TokenTypeBearer            = "Bearer"
)

type AuthorizationRequest struct {
	SessionID string `validate:"required,uuid"`
}

func (r *AuthorizationRequest) Normalize() {
	r.SessionID = strings.TrimSpace(r.SessionID)
}

type AuthorizationCode struct {
	Value string `json:"value"`
}

// AuthorizationResult is returned to the front end, which redirects the
// user back to the relying party with the code.
type AuthorizationResult struct {
	AuthorizationCode AuthorizationCode `json:"authorizationCode"`
	RedirectURI       string            `json:"redirect_uri"`
	State             string            `json:"state"`
}

// TokenRequest is the form body of the token endpoint.
type TokenRequest struct {
	GrantType   string `validate:"required"`
	Code        string `validate:"required,uuid"`
	RedirectURI string `validate:"required"`
}

func (r *TokenRequest) Normalize() {
	r.GrantType = strings.TrimSpace(r.GrantType)
	r.Code = strings.TrimSpace(r.Code)
	r.RedirectURI = strings.TrimSpace(r.RedirectURI)
}

type TokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// AccessTokenClaims is the access token payload. The subject is the session id.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
}
