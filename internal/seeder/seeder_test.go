package seeder

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcissuer/internal/session/claims"
	"vcissuer/internal/session/models"
	"vcissuer/internal/session/store"
)

func TestSeedAll(t *testing.T) {
	ctx := context.Background()
	sessions := store.NewInMemory()
	claimStore := claims.NewInMemory()
	s := New(sessions, claimStore, slog.New(slog.NewTextHandler(io.Discard, nil)))

	journeys, err := s.SeedAll(ctx)
	require.NoError(t, err)
	require.Len(t, journeys, 2)

	for _, j := range journeys {
		session, err := sessions.FindByVendorSessionID(ctx, j.VendorSessionID)
		require.NoError(t, err, j.Name)
		assert.Equal(t, j.SessionID, session.ID)
		assert.Equal(t, j.State, session.AuthState)

		claim, err := claimStore.FindBySessionID(ctx, j.SessionID)
		require.NoError(t, err, j.Name)
		assert.Equal(t, []string{"Kenneth"}, claim.Names[0].GivenNames())
	}

	callback := journeys[1]
	session, err := sessions.FindByID(ctx, callback.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StateAccessTokenIssued, session.AuthState)
	assert.NotEmpty(t, session.AccessToken)
}

type failingStore struct{}

func (failingStore) Create(context.Context, *models.Session) error { return assert.AnError }

func TestSeedAllStopsOnStoreError(t *testing.T) {
	s := New(failingStore{}, claims.NewInMemory(), nil)

	_, err := s.SeedAll(context.Background())
	require.ErrorIs(t, err, assert.AnError)
}
