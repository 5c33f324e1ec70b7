package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vcissuer/pkg/domain"
)

func TestAuthStateOrder(t *testing.T) {
	t.Run("happy path advances", func(t *testing.T) {
		path := []AuthState{
			StateSessionCreated,
			StateVendorSessionCreated,
			StateAuthCodeIssued,
			StateAccessTokenIssued,
			StateCredentialIssued,
		}
		for i := 1; i < len(path); i++ {
			assert.True(t, path[i-1].Precedes(path[i]), "%s -> %s", path[i-1], path[i])
			assert.False(t, path[i].Precedes(path[i-1]), "%s -> %s", path[i], path[i-1])
		}
	})

	t.Run("siblings do not precede each other", func(t *testing.T) {
		assert.False(t, StateDocumentSelected.Precedes(StateVendorSessionCreated))
		assert.False(t, StateDataReceived.Precedes(StateDocumentSelected))
		assert.True(t, StateDataReceived.Precedes(StateAuthCodeIssued))
	})

	t.Run("terminal states are final", func(t *testing.T) {
		assert.False(t, StateCredentialIssued.Precedes(StateIssuanceFailed))
		assert.False(t, StateIssuanceFailed.Precedes(StateCredentialIssued))
		assert.True(t, StateAccessTokenIssued.Precedes(StateIssuanceFailed))
		assert.True(t, StateIssuanceFailed.IsTerminal())
		assert.False(t, StateAccessTokenIssued.IsTerminal())
	})

	t.Run("unknown states never precede", func(t *testing.T) {
		assert.Equal(t, -1, AuthState("BOGUS").Rank())
		assert.False(t, AuthState("BOGUS").Precedes(StateCredentialIssued))
		assert.False(t, StateSessionCreated.Precedes(AuthState("BOGUS")))
	})
}

func TestParseAuthState(t *testing.T) {
	st, err := ParseAuthState("AUTH_CODE_ISSUED")
	require.NoError(t, err)
	assert.Equal(t, StateAuthCodeIssued, st)

	_, err = ParseAuthState("auth_code_issued")
	assert.Error(t, err)
}

func TestFieldsApply(t *testing.T) {
	expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := &Session{
		ID:                      id.NewSessionID(),
		AuthState:               StateAuthCodeIssued,
		AuthorizationCode:       "code-1",
		AuthorizationCodeExpiry: expiry,
		Subject:                 "urn:fdc:subject",
	}

	token := "token-1"
	Fields{
		AuthState:         StateAccessTokenIssued,
		AccessToken:       &token,
		AccessTokenExpiry: &expiry,
	}.ClearAuthorizationCode().Apply(s)

	assert.Equal(t, StateAccessTokenIssued, s.AuthState)
	assert.Equal(t, "token-1", s.AccessToken)
	assert.Equal(t, expiry, s.AccessTokenExpiry)
	assert.Empty(t, s.AuthorizationCode)
	assert.True(t, s.AuthorizationCodeExpiry.IsZero())
	assert.Equal(t, "urn:fdc:subject", s.Subject, "untouched fields are kept")
}

func TestSessionIsExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&Session{}).IsExpired(now))
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Minute)}).IsExpired(now))
	assert.True(t, (&Session{ExpiresAt: now}).IsExpired(now))
}

func TestNameParts(t *testing.T) {
	n := Name{NameParts: []NamePart{
		{Value: "Frederick", Type: GivenName},
		{Value: "Joseph", Type: GivenName},
		{Value: "Flintstone", Type: FamilyName},
	}}
	assert.Equal(t, []string{"Frederick", "Joseph"}, n.GivenNames())
	assert.Equal(t, []string{"Flintstone"}, n.FamilyNames())
}
