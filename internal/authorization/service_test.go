package authorization

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"vcissuer/internal/audit"
	"vcissuer/internal/authorization/mocks"
	"vcissuer/internal/session/models"
	"vcissuer/internal/session/statemachine"
	"vcissuer/internal/session/store"
	id "vcissuer/pkg/domain"
	dErrors "vcissuer/pkg/domain-errors"
	"vcissuer/pkg/testutil"
)

const (
	testIssuer = "https://review-c.account.gov.uk"
	testCode   = "6a7f3c4e-0d2b-4a41-9a57-0e6c2b1f8d10"
	testToken  = "header.payload.signature"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	sessions *store.InMemoryStore
	signer   *mocks.MockSigner
	sink     *audit.MemorySink
	service  *Service
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.sessions = store.NewInMemory()
	s.signer = mocks.NewMockSigner(s.ctrl)
	s.sink = audit.NewMemorySink()
	s.now = time.Now().UTC().Truncate(time.Second)
	s.service = s.newService(s.sessions, statemachine.New(s.sessions))
}

func (s *ServiceSuite) newService(sessions SessionStore, machine StateMachine) *Service {
	return New(sessions, machine, s.signer, audit.NewPublisher(s.sink),
		Config{Issuer: testIssuer, IssuerDNS: "review-c.account.gov.uk"},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return s.now }),
		WithCodeGenerator(func() string { return testCode }),
	)
}

func (s *ServiceSuite) seed(b *testutil.SessionBuilder) *models.Session {
	session := b.Build()
	s.Require().NoError(s.sessions.Create(s.ctx, session))
	return session
}

func (s *ServiceSuite) stateOf(sessionID id.SessionID) *models.Session {
	session, err := s.sessions.FindByID(s.ctx, sessionID)
	s.Require().NoError(err)
	return session
}

func (s *ServiceSuite) TestIssueAuthorizationCode() {
	s.Run("vendor session created", func() {
		session := s.seed(testutil.NewSessionBuilder().
			WithState(models.StateVendorSessionCreated).
			WithVendorSessionID(testutil.TestIDs.VendorSessionID))

		result, err := s.service.IssueAuthorizationCode(s.ctx, &AuthorizationRequest{SessionID: session.ID.String()})
		s.Require().NoError(err)

		s.Equal(&AuthorizationResult{
			AuthorizationCode: AuthorizationCode{Value: testCode},
			RedirectURI:       session.RedirectURI,
			State:             session.OAuthState,
		}, result)
		stored := s.stateOf(session.ID)
		s.Equal(models.StateAuthCodeIssued, stored.AuthState)
		s.Equal(testCode, stored.AuthorizationCode)
		s.True(s.now.Add(defaultAuthCodeTTL).Equal(stored.AuthorizationCodeExpiry))

		s.Len(s.sink.ByName(audit.EventAuthCodeIssued), 1)
		end := s.sink.ByName(audit.EventCRIEnd)
		s.Require().Len(end, 1)
		s.Equal(audit.JourneyExtensions{
			PreviousJourneyID: session.ClientSessionID,
			Evidence:          []audit.TxnRef{{Txn: testutil.TestIDs.VendorSessionID.String()}},
		}, end[0].Extensions)
	})

	s.Run("unknown session", func() {
		_, err := s.service.IssueAuthorizationCode(s.ctx, &AuthorizationRequest{SessionID: testutil.TestIDs.SessionID2.String()})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("malformed session id", func() {
		_, err := s.service.IssueAuthorizationCode(s.ctx, &AuthorizationRequest{SessionID: "not-a-uuid"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("expired session", func() {
		session := s.seed(testutil.NewSessionBuilder().
			WithState(models.StateVendorSessionCreated).
			ExpiresAt(s.now.Add(-time.Minute)))

		_, err := s.service.IssueAuthorizationCode(s.ctx, &AuthorizationRequest{SessionID: session.ID.String()})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal(models.StateVendorSessionCreated, s.stateOf(session.ID).AuthState)
	})

	s.Run("wrong state", func() {
		session := s.seed(testutil.NewSessionBuilder().WithState(models.StateCredentialIssued))

		_, err := s.service.IssueAuthorizationCode(s.ctx, &AuthorizationRequest{SessionID: session.ID.String()})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Contains(err.Error(), "CREDENTIAL_ISSUED")
	})
}

func (s *ServiceSuite) TestIssueAccessToken() {
	seedCode := func(expiry time.Time) *models.Session {
		return s.seed(testutil.NewSessionBuilder().
			WithState(models.StateAuthCodeIssued).
			WithAuthorizationCode(testCode, expiry))
	}

	s.Run("exchanges the code once", func() {
		session := seedCode(s.now.Add(time.Minute))
		s.signer.EXPECT().Sign(gomock.Any(), gomock.Any(), "review-c.account.gov.uk").DoAndReturn(
			func(_ context.Context, claims any, _ string) (string, error) {
				c := claims.(AccessTokenClaims)
				s.Equal(session.ID.String(), c.Subject)
				s.Equal(testIssuer, c.Issuer)
				s.Equal([]string{testIssuer}, []string(c.Audience))
				s.True(s.now.Add(defaultAccessTokenTTL).Equal(c.ExpiresAt.Time))
				return testToken, nil
			})

		req := &TokenRequest{GrantType: GrantTypeAuthorizationCode, Code: testCode, RedirectURI: session.RedirectURI}
		result, err := s.service.IssueAccessToken(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(&TokenResult{AccessToken: testToken, TokenType: "Bearer", ExpiresIn: 3600}, result)

		stored := s.stateOf(session.ID)
		s.Equal(models.StateAccessTokenIssued, stored.AuthState)
		s.Equal(testToken, stored.AccessToken)
		s.Empty(stored.AuthorizationCode)

		_, err = s.service.IssueAccessToken(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidGrant))
	})

	s.Run("escaped redirect uri", func() {
		s.sessions = store.NewInMemory()
		s.service = s.newService(s.sessions, statemachine.New(s.sessions))
		session := seedCode(s.now.Add(time.Minute))
		s.signer.EXPECT().Sign(gomock.Any(), gomock.Any(), gomock.Any()).Return(testToken, nil)

		_, err := s.service.IssueAccessToken(s.ctx, &TokenRequest{
			GrantType:   GrantTypeAuthorizationCode,
			Code:        testCode,
			RedirectURI: "https%3A%2F%2Fipvstub.review-c.build.account.gov.uk%2Fredirect",
		})
		s.Require().NoError(err)
		s.Equal(models.StateAccessTokenIssued, s.stateOf(session.ID).AuthState)
	})

	cases := []struct {
		name     string
		expiry   time.Duration
		req      TokenRequest
		wantCode dErrors.Code
	}{
		{"unsupported grant type", time.Minute, TokenRequest{GrantType: "client_credentials", Code: testCode}, dErrors.CodeUnsupportedGrantType},
		{"unknown code", time.Minute, TokenRequest{GrantType: GrantTypeAuthorizationCode, Code: "2b0a2f55-6f1c-4b8e-9b7a-3d1f0f7b7e11"}, dErrors.CodeInvalidGrant},
		{"expired code", -time.Second, TokenRequest{GrantType: GrantTypeAuthorizationCode, Code: testCode}, dErrors.CodeInvalidGrant},
		{"redirect mismatch", time.Minute, TokenRequest{GrantType: GrantTypeAuthorizationCode, Code: testCode, RedirectURI: "https://evil.example/cb"}, dErrors.CodeInvalidGrant},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.sessions = store.NewInMemory()
			s.service = s.newService(s.sessions, statemachine.New(s.sessions))
			session := seedCode(s.now.Add(tc.expiry))
			if tc.req.RedirectURI == "" {
				tc.req.RedirectURI = session.RedirectURI
			}

			_, err := s.service.IssueAccessToken(s.ctx, &tc.req)
			s.True(dErrors.HasCode(err, tc.wantCode), "got %v", err)
			s.Equal(models.StateAuthCodeIssued, s.stateOf(session.ID).AuthState)
		})
	}

	s.Run("signing failure", func() {
		s.sessions = store.NewInMemory()
		s.service = s.newService(s.sessions, statemachine.New(s.sessions))
		session := seedCode(s.now.Add(time.Minute))
		s.signer.EXPECT().Sign(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("kms down"))

		_, err := s.service.IssueAccessToken(s.ctx, &TokenRequest{
			GrantType: GrantTypeAuthorizationCode, Code: testCode, RedirectURI: session.RedirectURI,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Equal(models.StateAuthCodeIssued, s.stateOf(session.ID).AuthState)
	})
}

func (s *ServiceSuite) TestConcurrentWriterIsConflict() {
	sessions := mocks.NewMockSessionStore(s.ctrl)
	machine := mocks.NewMockStateMachine(s.ctrl)
	session := testutil.NewSessionBuilder().WithState(models.StateVendorSessionCreated).Build()
	sessions.EXPECT().FindByID(gomock.Any(), session.ID).Return(session, nil)
	machine.EXPECT().IssueAuthorizationCode(gomock.Any(), session.ID, testCode, gomock.Any()).
		Return(nil, statemachine.ErrRegression)

	_, err := s.newService(sessions, machine).IssueAuthorizationCode(s.ctx, &AuthorizationRequest{SessionID: session.ID.String()})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Empty(s.sink.Events())
}

func TestRedirectURIMatches(t *testing.T) {
	registered := "https://rp.example/callback"
	assert.True(t, redirectURIMatches(registered, registered))
	assert.True(t, redirectURIMatches("https%3A%2F%2Frp.example%2Fcallback", registered))
	assert.False(t, redirectURIMatches("https://rp.example/other", registered))
	assert.False(t, redirectURIMatches("", registered))

	withSlash := "https%3A%2F%2Frp.example/callback"
	assert.True(t, redirectURIMatches(withSlash, registered))
	assert.False(t, redirectURIMatches("https%3A%2F%2Frp.example%2Fother", registered))
	assert.False(t, redirectURIMatches("https%ZZrp.example", registered))

	withQuery := "https://rp.example/callback?tenant=a%20b"
	assert.True(t, redirectURIMatches(withQuery, withQuery))
	assert.True(t, redirectURIMatches(url.QueryEscape(withQuery), withQuery))
}
