// Package userinfo answers the relying party's userinfo call. The bearer
// token must be one this service signed for a session that has just had its
// access token issued; the credential itself arrives later on the outcome
// stream.
package userinfo

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
	dErrors "vcissuer/pkg/domain-errors"
	"vcissuer/pkg/platform/sentinel"
)

const bearerPrefix = "bearer "

type Service struct {
	sessions SessionStore
	verifier TokenVerifier
	logger   *slog.Logger
	now      func() time.Time
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

func New(sessions SessionStore, verifier TokenVerifier, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		verifier: verifier,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CredentialStatus authenticates the bearer token and reports that the
// credential is pending. Only ACCESS_TOKEN_ISSUED sessions qualify.
func (s *Service) CredentialStatus(ctx context.Context, req *Request) (*Result, error) {
	token, ok := bearerToken(req.Authorization)
	if !ok {
		s.logger.WarnContext(ctx, "missing or non bearer authorization header")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authorization header must carry a bearer access token")
	}

	valid, err := s.verifier.Verify(ctx, token)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to verify access token", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "failed to verify signature")
	}
	if !valid {
		s.logger.WarnContext(ctx, "access token signature rejected")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "verification of access token failed")
	}

	now := s.now()
	sessionID, err := s.subject(token, now)
	if err != nil {
		s.logger.WarnContext(ctx, "access token claims rejected", "error", err)
		return nil, dErrors.New(dErrors.CodeUnauthorized, err.Error())
	}
	log := s.logger.With("session_id", sessionID.String())

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			log.WarnContext(ctx, "no session for access token")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "no session found with the session id")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if !session.HasState(models.StateAccessTokenIssued) {
		log.WarnContext(ctx, "session in wrong auth state", "auth_state", session.AuthState.String())
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session is in the wrong state: "+session.AuthState.String())
	}
	// A token from an earlier exchange verifies but is no longer the
	// session's token.
	if session.AccessToken != token || !now.Before(session.AccessTokenExpiry) {
		log.WarnContext(ctx, "access token superseded or expired")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "access token is not valid for the session")
	}
	log.InfoContext(ctx, "userinfo answered, credential pending")

	return &Result{
		Subject:          session.Subject,
		CredentialStatus: CredentialStatusPending,
	}, nil
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// subject reads the session id from a token whose signature has already been
// checked, enforcing expiry.
func (s *Service) subject(token string, now time.Time) (id.SessionID, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return id.SessionID{}, errors.New("access token is malformed")
	}
	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
		return id.SessionID{}, errors.New("access token has expired")
	}
	if claims.Subject == "" {
		return id.SessionID{}, errors.New("access token has no subject")
	}
	sessionID, err := id.ParseSessionID(claims.Subject)
	if err != nil {
		return id.SessionID{}, errors.New("access token subject is not a session id")
	}
	return sessionID, nil
}
