//go:build integration

package claims_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"vcissuer/internal/session/claims"
	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
	"vcissuer/pkg/platform/sentinel"
	"vcissuer/pkg/testutil"
	"vcissuer/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *claims.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = claims.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	claim := testutil.NewIdentityClaim(id.NewSessionID(), []string{"Kenneth", "Paul"}, "Decerqueira")
	claim.Addresses = []models.PostalAddress{{
		BuildingNumber:  "8",
		StreetName:      "HADLEY ROAD",
		AddressLocality: "BATH",
		PostalCode:      "BA2 5AA",
		AddressCountry:  "GB",
	}}

	s.Require().NoError(s.store.Save(ctx, claim))

	got, err := s.store.FindBySessionID(ctx, claim.SessionID)
	s.Require().NoError(err)
	s.Equal(claim, got)
}

func (s *PostgresStoreSuite) TestEmptyCollections() {
	ctx := context.Background()
	claim := &models.IdentityClaim{SessionID: id.NewSessionID()}

	s.Require().NoError(s.store.Save(ctx, claim))

	got, err := s.store.FindBySessionID(ctx, claim.SessionID)
	s.Require().NoError(err)
	s.Empty(got.Names)
	s.Empty(got.BirthDates)
	s.Empty(got.EmailAddress)
}

func (s *PostgresStoreSuite) TestWrittenOnce() {
	ctx := context.Background()
	claim := testutil.NewIdentityClaim(id.NewSessionID(), []string{"A"}, "B")
	s.Require().NoError(s.store.Save(ctx, claim))

	s.ErrorIs(s.store.Save(ctx, claim), sentinel.ErrConditionFailed)
}

func (s *PostgresStoreSuite) TestMissing() {
	_, err := s.store.FindBySessionID(context.Background(), id.NewSessionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
