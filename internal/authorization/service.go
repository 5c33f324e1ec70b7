// Package authorization hands the relying party an authorization code once
// the user has finished with the vendor, and exchanges that code for the
// access token used when the credential is later collected.
package authorization

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vcissuer/internal/audit"
	"vcissuer/internal/session/statemachine"
	id "vcissuer/pkg/domain"
	dErrors "vcissuer/pkg/domain-errors"
	"vcissuer/pkg/platform/sentinel"
)

const (
	defaultAuthCodeTTL    = 10 * time.Minute
	defaultAccessTokenTTL = time.Hour
)

type Config struct {
	Issuer         string
	IssuerDNS      string
	AuthCodeTTL    time.Duration
	AccessTokenTTL time.Duration
}

type Service struct {
	sessions SessionStore
	machine  StateMachine
	signer   Signer
	auditor  AuditPublisher
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	newCode  func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithCodeGenerator replaces the uuid code source. Tests use it to pin codes.
func WithCodeGenerator(gen func() string) Option {
	return func(s *Service) {
		s.newCode = gen
	}
}

func New(sessions SessionStore, machine StateMachine, signer Signer, auditor AuditPublisher, cfg Config, opts ...Option) *Service {
	if cfg.AuthCodeTTL <= 0 {
		cfg.AuthCodeTTL = defaultAuthCodeTTL
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = defaultAccessTokenTTL
	}
	s := &Service{
		sessions: sessions,
		machine:  machine,
		signer:   signer,
		auditor:  auditor,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		newCode:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueAuthorizationCode moves a session that has a vendor session on to
// AUTH_CODE_ISSUED and returns the code for the relying party redirect.
func (s *Service) IssueAuthorizationCode(ctx context.Context, req *AuthorizationRequest) (*AuthorizationResult, error) {
	sessionID, err := id.ParseSessionID(req.SessionID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With("session_id", sessionID.String())

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			log.WarnContext(ctx, "no session found for authorization")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "no session found with the session id")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	now := s.now()
	if session.IsExpired(now) {
		log.WarnContext(ctx, "session expired", "expires_at", session.ExpiresAt)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session has expired")
	}

	code := s.newCode()
	updated, err := s.machine.IssueAuthorizationCode(ctx, sessionID, code, now.Add(s.cfg.AuthCodeTTL))
	if err != nil {
		return nil, s.transitionError(ctx, log, err)
	}
	log.InfoContext(ctx, "authorization code issued")

	s.emit(ctx, log, audit.NewEvent(audit.EventAuthCodeIssued, updated, s.cfg.Issuer))
	end := audit.NewEvent(audit.EventCRIEnd, updated, s.cfg.Issuer)
	end.Extensions = audit.JourneyExtensions{
		PreviousJourneyID: updated.ClientSessionID,
		Evidence:          []audit.TxnRef{{Txn: updated.VendorSessionID.String()}},
	}
	s.emit(ctx, log, end)

	return &AuthorizationResult{
		AuthorizationCode: AuthorizationCode{Value: code},
		RedirectURI:       updated.RedirectURI,
		State:             updated.OAuthState,
	}, nil
}

// IssueAccessToken exchanges an unexpired authorization code for a signed
// access token. The code is cleared in the same write, so it works once.
func (s *Service) IssueAccessToken(ctx context.Context, req *TokenRequest) (*TokenResult, error) {
	if req.GrantType != GrantTypeAuthorizationCode {
		return nil, dErrors.New(dErrors.CodeUnsupportedGrantType, "grant_type must be authorization_code")
	}

	session, err := s.sessions.FindByAuthorizationCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "no session found by authorization code")
			return nil, dErrors.New(dErrors.CodeInvalidGrant, "invalid authorization code")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	log := s.logger.With("session_id", session.ID.String())

	now := s.now()
	if !now.Before(session.AuthorizationCodeExpiry) {
		log.WarnContext(ctx, "authorization code expired", "expired_at", session.AuthorizationCodeExpiry)
		return nil, dErrors.New(dErrors.CodeInvalidGrant, "authorization code expired")
	}
	if !redirectURIMatches(req.RedirectURI, session.RedirectURI) {
		log.WarnContext(ctx, "redirect uri mismatch", "redirect_uri", req.RedirectURI)
		return nil, dErrors.New(dErrors.CodeInvalidGrant, "redirect_uri does not match")
	}

	expiry := now.Add(s.cfg.AccessTokenTTL)
	token, err := s.signer.Sign(ctx, AccessTokenClaims{jwt.RegisteredClaims{
		Subject:   session.ID.String(),
		Audience:  jwt.ClaimStrings{s.cfg.Issuer},
		Issuer:    s.cfg.Issuer,
		ExpiresAt: jwt.NewNumericDate(expiry),
	}}, s.cfg.IssuerDNS)
	if err != nil {
		log.ErrorContext(ctx, "failed to sign access token", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign the access token")
	}

	if _, err := s.machine.IssueAccessToken(ctx, session.ID, token, expiry); err != nil {
		return nil, s.transitionError(ctx, log, err)
	}
	log.InfoContext(ctx, "access token issued")

	return &TokenResult{
		AccessToken: token,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// redirectURIMatches accepts the registered uri as is or still query-escaped
// once, as some clients encode it before the form encoder does.
func redirectURIMatches(got, registered string) bool {
	if got == "" {
		return false
	}
	if got == registered {
		return true
	}
	unescaped, err := url.QueryUnescape(got)
	return err == nil && unescaped == registered
}

func (s *Service) transitionError(ctx context.Context, log *slog.Logger, err error) error {
	var stateErr *statemachine.InvalidSessionStateError
	switch {
	case errors.As(err, &stateErr):
		log.WarnContext(ctx, "session in wrong auth state", "auth_state", stateErr.Actual.String())
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, "session is in the wrong state: "+stateErr.Actual.String())
	case errors.Is(err, statemachine.ErrRegression), errors.Is(err, sentinel.ErrConditionFailed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "session was updated concurrently")
	default:
		log.ErrorContext(ctx, "failed to update session", "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update session")
	}
}

func (s *Service) emit(ctx context.Context, log *slog.Logger, event audit.Event) {
	if err := s.auditor.Emit(ctx, event); err != nil {
		log.ErrorContext(ctx, "failed to publish audit event",
			"event_name", string(event.Name),
			"error", err,
		)
	}
}
