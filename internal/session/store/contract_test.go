package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
	"vcissuer/pkg/platform/sentinel"
	"vcissuer/pkg/testutil"
)

type sessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindByVendorSessionID(ctx context.Context, vendorSessionID id.VendorSessionID) (*models.Session, error)
	FindByAuthorizationCode(ctx context.Context, code string) (*models.Session, error)
	ConditionalUpdate(ctx context.Context, sessionID id.SessionID, expected []models.AuthState, fields models.Fields) error
}

var (
	_ sessionStore = (*InMemoryStore)(nil)
	_ sessionStore = (*RedisStore)(nil)
	_ sessionStore = (*DynamoStore)(nil)
)

func newTestSession(state models.AuthState) *models.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Session{
		ID:                  id.NewSessionID(),
		ClientID:            "ipv-core-stub",
		ClientSessionID:     "journey-123",
		RedirectURI:         "https://ipv.core/callback",
		OAuthState:          "af0ifjsldkj",
		Subject:             "urn:fdc:gov.uk:2022:subject",
		AuthState:           state,
		PersistentSessionID: "persistent-1",
		ClientIPAddress:     "203.0.113.7",
		ExpiresAt:           now.Add(2 * time.Hour),
		CreatedAt:           now,
	}
}

// runStoreContract checks the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) sessionStore) {
	ctx := context.Background()

	t.Run("create then find by id", func(t *testing.T) {
		st := newStore(t)
		session := newTestSession(models.StateSessionCreated)
		require.NoError(t, st.Create(ctx, session))

		got, err := st.FindByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.Subject, got.Subject)
		assert.Equal(t, session.OAuthState, got.OAuthState)
		assert.Equal(t, models.StateSessionCreated, got.AuthState)
		assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("duplicate create is rejected", func(t *testing.T) {
		st := newStore(t)
		session := newTestSession(models.StateSessionCreated)
		require.NoError(t, st.Create(ctx, session))
		assert.ErrorIs(t, st.Create(ctx, session), sentinel.ErrConditionFailed)
	})

	t.Run("missing session is not found", func(t *testing.T) {
		st := newStore(t)
		_, err := st.FindByID(ctx, id.NewSessionID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = st.FindByVendorSessionID(ctx, "no-such-vendor-session")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = st.FindByAuthorizationCode(ctx, "no-such-code")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("conditional update writes fields and indexes", func(t *testing.T) {
		st := newStore(t)
		session := newTestSession(models.StateSessionCreated)
		require.NoError(t, st.Create(ctx, session))

		vendorID := id.VendorSessionID("vendor-" + session.ID.String())
		require.NoError(t, st.ConditionalUpdate(ctx, session.ID,
			[]models.AuthState{models.StateSessionCreated},
			models.Fields{AuthState: models.StateVendorSessionCreated, VendorSessionID: &vendorID},
		))

		got, err := st.FindByVendorSessionID(ctx, vendorID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, models.StateVendorSessionCreated, got.AuthState)
		assert.Equal(t, session.RedirectURI, got.RedirectURI, "unrelated fields untouched")
	})

	t.Run("wrong expected state leaves the record unchanged", func(t *testing.T) {
		st := newStore(t)
		session := newTestSession(models.StateAuthCodeIssued)
		require.NoError(t, st.Create(ctx, session))

		err := st.ConditionalUpdate(ctx, session.ID,
			[]models.AuthState{models.StateVendorSessionCreated},
			models.Fields{AuthState: models.StateCredentialIssued},
		)
		assert.ErrorIs(t, err, sentinel.ErrConditionFailed)

		got, err := st.FindByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateAuthCodeIssued, got.AuthState)
	})

	t.Run("update on missing session is not found", func(t *testing.T) {
		st := newStore(t)
		err := st.ConditionalUpdate(ctx, id.NewSessionID(),
			[]models.AuthState{models.StateSessionCreated},
			models.Fields{AuthState: models.StateDataReceived},
		)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("vendor session id cannot be rebound", func(t *testing.T) {
		st := newStore(t)
		session := newTestSession(models.StateSessionCreated)
		session.VendorSessionID = "vendor-original"
		require.NoError(t, st.Create(ctx, session))

		other := id.VendorSessionID("vendor-other")
		err := st.ConditionalUpdate(ctx, session.ID,
			[]models.AuthState{models.StateSessionCreated},
			models.Fields{AuthState: models.StateVendorSessionCreated, VendorSessionID: &other},
		)
		assert.ErrorIs(t, err, sentinel.ErrConditionFailed)
	})

	t.Run("exchanging the code clears its index", func(t *testing.T) {
		st := newStore(t)
		session := newTestSession(models.StateVendorSessionCreated)
		require.NoError(t, st.Create(ctx, session))

		code := "code-" + session.ID.String()
		expiry := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
		require.NoError(t, st.ConditionalUpdate(ctx, session.ID,
			[]models.AuthState{models.StateVendorSessionCreated},
			models.Fields{AuthState: models.StateAuthCodeIssued, AuthorizationCode: &code, AuthorizationCodeExpiry: &expiry},
		))
		got, err := st.FindByAuthorizationCode(ctx, code)
		require.NoError(t, err)
		assert.True(t, expiry.Equal(got.AuthorizationCodeExpiry))

		token := "access-token"
		require.NoError(t, st.ConditionalUpdate(ctx, session.ID,
			[]models.AuthState{models.StateAuthCodeIssued},
			models.Fields{AuthState: models.StateAccessTokenIssued, AccessToken: &token, AccessTokenExpiry: &expiry}.ClearAuthorizationCode(),
		))
		_, err = st.FindByAuthorizationCode(ctx, code)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		got, err = st.FindByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Empty(t, got.AuthorizationCode)
		assert.Equal(t, "access-token", got.AccessToken)
	})

	t.Run("concurrent writers from the same state: exactly one wins", func(t *testing.T) {
		st := newStore(t)
		session := newTestSession(models.StateAccessTokenIssued)
		require.NoError(t, st.Create(ctx, session))

		const writers = 8
		result := testutil.RunConcurrent(writers, func(int) error {
			return st.ConditionalUpdate(ctx, session.ID,
				[]models.AuthState{models.StateAccessTokenIssued},
				models.Fields{AuthState: models.StateCredentialIssued},
			)
		})
		assert.EqualValues(t, 1, result.Successes)
		assert.EqualValues(t, writers-1, result.Conflicts)
	})
}

func TestInMemoryStore(t *testing.T) {
	runStoreContract(t, func(*testing.T) sessionStore { return NewInMemory() })

	t.Run("returned sessions do not alias stored state", func(t *testing.T) {
		st := NewInMemory()
		session := newTestSession(models.StateSessionCreated)
		require.NoError(t, st.Create(context.Background(), session))

		got, err := st.FindByID(context.Background(), session.ID)
		require.NoError(t, err)
		got.AuthState = models.StateCredentialIssued

		again, err := st.FindByID(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateSessionCreated, again.AuthState)
	})

	t.Run("rejects invalid sessions", func(t *testing.T) {
		st := NewInMemory()
		assert.ErrorIs(t, st.Create(context.Background(), nil), sentinel.ErrInvalidInput)
		assert.ErrorIs(t, st.Create(context.Background(), &models.Session{AuthState: models.StateSessionCreated}), sentinel.ErrInvalidInput)
		bad := newTestSession("NOT_A_STATE")
		assert.ErrorIs(t, st.Create(context.Background(), bad), sentinel.ErrInvalidInput)
	})
}
