// Package sessionrequest starts a journey. The relying party posts an
// encrypted, signed request object; once it decrypts and verifies, the
// session and the identity the user claimed are recorded.
package sessionrequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vcissuer/internal/audit"
	"vcissuer/internal/kmsjwt"
	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
	dErrors "vcissuer/pkg/domain-errors"
	"vcissuer/pkg/platform/sentinel"
	"vcissuer/pkg/validation"
)

const defaultSessionTTL = 72 * time.Hour

var (
	errClientMismatch   = errors.New("client_id does not match the request")
	errRedirectMismatch = errors.New("redirect_uri is not registered for the client")
	errIncompleteName   = errors.New("shared claims name needs a given and a family part")
)

type Config struct {
	Issuer     string
	SessionTTL time.Duration
	Clients    []Client
}

type Service struct {
	sessions SessionStore
	claims   ClaimStore
	crypto   RequestCrypto
	auditor  AuditPublisher
	cfg      Config
	clients  map[string]Client
	logger   *slog.Logger
	now      func() time.Time
	newID    func() id.SessionID
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

func WithSessionIDGenerator(gen func() id.SessionID) Option {
	return func(s *Service) {
		s.newID = gen
	}
}

func New(sessions SessionStore, claims ClaimStore, crypto RequestCrypto, auditor AuditPublisher, cfg Config, opts ...Option) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	clients := make(map[string]Client, len(cfg.Clients))
	for _, c := range cfg.Clients {
		clients[c.ID] = c
	}
	s := &Service{
		sessions: sessions,
		claims:   claims,
		crypto:   crypto,
		auditor:  auditor,
		cfg:      cfg,
		clients:  clients,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    id.NewSessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession opens the request object, checks it against the client's
// registration and stores a SESSION_CREATED session with its claimed
// identity. Every failure to trust the request is reported as unauthorized.
func (s *Service) CreateSession(ctx context.Context, req *Request) (*Result, error) {
	client, ok := s.clients[req.ClientID]
	if !ok {
		s.logger.WarnContext(ctx, "unrecognised client", "client_id", req.ClientID)
		return nil, dErrors.New(dErrors.CodeBadRequest, "unrecognised client")
	}

	sessionID := s.newID()
	log := s.logger.With("session_id", sessionID.String(), "client_id", client.ID)

	signed, err := s.crypto.Decrypt(ctx, req.Request)
	if err != nil {
		log.ErrorContext(ctx, "failed to decrypt request object", "error_kind", errorKind(err), "error", err)
		return nil, unauthorized("failed to decrypt the request", err)
	}
	kid, err := headerKeyID(signed)
	if err != nil {
		log.ErrorContext(ctx, "failed to decode request object", "error", err)
		return nil, unauthorized("failed to decode the request", err)
	}
	raw, err := s.crypto.VerifyWithJWKS(ctx, signed, client.JWKSEndpoint, kid)
	if err != nil {
		log.ErrorContext(ctx, "failed to verify request object", "error_kind", errorKind(err), "kid", kid, "error", err)
		return nil, unauthorized("failed to verify the request", err)
	}
	claims, err := decodeClaims(raw)
	if err != nil {
		log.ErrorContext(ctx, "request object claims rejected", "error", err)
		return nil, unauthorized("invalid request claims", err)
	}
	if err := checkClaims(claims, req.ClientID, client); err != nil {
		log.ErrorContext(ctx, "request object claims rejected", "error", err)
		return nil, unauthorized("invalid request claims", err)
	}
	log = log.With("govuk_signin_journey_id", claims.JourneyID)

	now := s.now()
	session := &models.Session{
		ID:                  sessionID,
		ClientID:            claims.ClientID,
		ClientSessionID:     claims.JourneyID,
		RedirectURI:         claims.RedirectURI,
		OAuthState:          claims.State,
		Subject:             claims.Subject,
		AuthState:           models.StateSessionCreated,
		PersistentSessionID: claims.PersistentSessionID,
		ClientIPAddress:     req.ClientIPAddress,
		ExpiresAt:           now.Add(s.cfg.SessionTTL),
		CreatedAt:           now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, sentinel.ErrConditionFailed) {
			log.ErrorContext(ctx, "session id already in use")
		} else {
			log.ErrorContext(ctx, "failed to create session", "error", err)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}
	if err := s.claims.Save(ctx, claims.SharedClaims.identityClaim(sessionID)); err != nil {
		log.ErrorContext(ctx, "failed to save claimed identity", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save claimed identity")
	}
	log.InfoContext(ctx, "session created")

	if err := s.auditor.Emit(ctx, audit.NewEvent(audit.EventCRIStart, session, s.cfg.Issuer)); err != nil {
		log.ErrorContext(ctx, "session created but audit event failed", "event", audit.EventCRIStart, "error", err)
	}

	return &Result{
		SessionID:   sessionID.String(),
		State:       claims.State,
		RedirectURI: claims.RedirectURI,
	}, nil
}

func unauthorized(msg string, err error) error {
	return &dErrors.Error{Code: dErrors.CodeUnauthorized, Message: msg, Err: err}
}

func errorKind(err error) kmsjwt.Kind {
	var kerr *kmsjwt.Error
	if errors.As(err, &kerr) {
		return kerr.Kind
	}
	return ""
}

// headerKeyID reads kid from the header of the signed request. The signature
// is checked afterwards against the key it names.
func headerKeyID(token string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", err
	}
	kid, _ := parsed.Header["kid"].(string)
	if kid == "" {
		return "", errors.New("request header has no kid")
	}
	return kid, nil
}

func decodeClaims(raw jwt.MapClaims) (*requestClaims, error) {
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode claims: %w", err)
	}
	var claims requestClaims
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	if err := validation.Validate(&claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func checkClaims(claims *requestClaims, bodyClientID string, client Client) error {
	if claims.ClientID != bodyClientID {
		return errClientMismatch
	}
	if claims.RedirectURI != client.RedirectURI {
		return errRedirectMismatch
	}
	if !claims.SharedClaims.hasFullName() {
		return errIncompleteName
	}
	return nil
}
