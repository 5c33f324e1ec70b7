// Package issuance turns a vendor completion callback into a signed identity
// credential delivered to the relying party.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vcissuer/internal/audit"
	"vcissuer/internal/credential"
	"vcissuer/internal/delivery"
	"vcissuer/internal/platform/metrics"
	"vcissuer/internal/platform/tracer"
	"vcissuer/internal/session/models"
	"vcissuer/internal/session/statemachine"
	"vcissuer/internal/vendor"
	id "vcissuer/pkg/domain"
	dErrors "vcissuer/pkg/domain-errors"
	"vcissuer/pkg/platform/sentinel"
)

type Config struct {
	// Issuer is the credential iss and the audit component id.
	Issuer string
	// IssuerDNS is the host of the did:web signing key id.
	IssuerDNS string
}

type Service struct {
	sessions SessionStore
	machine  StateMachine
	claims   ClaimStore
	vendor   VendorClient
	signer   Signer
	sender   Sender
	auditor  AuditPublisher
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New wires the service. Every port is required; a nil port panics so a
// miswired binary fails at startup.
func New(
	sessions SessionStore,
	machine StateMachine,
	claims ClaimStore,
	vendorClient VendorClient,
	signer Signer,
	sender Sender,
	auditor AuditPublisher,
	cfg Config,
	opts ...Option,
) *Service {
	switch {
	case sessions == nil, machine == nil, claims == nil:
		panic("issuance.New: session, state machine and claim stores are required")
	case vendorClient == nil, signer == nil, sender == nil:
		panic("issuance.New: vendor client, signer and sender are required")
	case auditor == nil:
		panic("issuance.New: auditor is required")
	}
	s := &Service{
		sessions: sessions,
		machine:  machine,
		claims:   claims,
		vendor:   vendorClient,
		signer:   signer,
		sender:   sender,
		auditor:  auditor,
		cfg:      cfg,
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessCallback issues the credential for the session behind a completed
// vendor check. Once the session is known the relying party receives exactly
// one outcome: the credential, or access_denied before the error is returned.
// A session that has already reached a terminal state is left alone.
func (s *Service) ProcessCallback(ctx context.Context, req CallbackRequest) (result *Result, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCallback, tracer.String(tracer.AttrVendorSessionID, req.SessionID))
	defer func() {
		if result != nil {
			span.SetAttributes(tracer.String(tracer.AttrOutcome, string(result.Status)))
		}
		span.End(err)
	}()

	vendorSessionID, err := id.ParseVendorSessionID(req.SessionID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByVendorSessionID(ctx, vendorSessionID)
	if err != nil {
		s.metrics.IncCallback("unknown_session")
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	span.SetAttributes(tracer.String(tracer.AttrSessionID, session.ID.String()))
	log := s.logger.With("session_id", session.ID.String(), "vendor_session_id", vendorSessionID.String())

	if session.AuthState.IsTerminal() {
		log.InfoContext(ctx, "callback for finished session ignored", "auth_state", session.AuthState.String())
		s.metrics.IncCallback(string(StatusDuplicate))
		return &Result{Status: StatusDuplicate, SessionID: session.ID}, nil
	}

	evidence, err := s.vendor.GetCompletedSession(ctx, vendorSessionID)
	if err != nil {
		return nil, s.fail(ctx, log, session, "Failed to fetch vendor session", err)
	}
	if evidence.State != vendor.SessionStateCompleted {
		return nil, s.fail(ctx, log, session, "Vendor session not complete",
			fmt.Errorf("%w: state %s", ErrVendorSessionIncomplete, evidence.State))
	}
	log = log.With("user_tracking_id", evidence.UserTrackingID)

	document, err := extractedDocument(evidence)
	if err != nil {
		return nil, s.fail(ctx, log, session, "Vendor document fields not usable", err)
	}
	fields, err := s.vendor.GetMediaContent(ctx, vendorSessionID, document.DocumentFields.Media.ID)
	if err != nil {
		return nil, s.fail(ctx, log, session, "Failed to fetch vendor document fields", err)
	}
	if fields == nil {
		return nil, s.fail(ctx, log, session, "Vendor document fields info not found",
			fmt.Errorf("%w: media %s is empty", ErrMissingFields, document.DocumentFields.Media.ID))
	}
	span.SetAttributes(tracer.String(tracer.AttrDocumentType, fields.DocumentType))

	if !session.HasState(statemachine.IssuableStates...) {
		stateErr := &statemachine.InvalidSessionStateError{
			SessionID: session.ID,
			Expected:  statemachine.IssuableStates,
			Actual:    session.AuthState,
		}
		log.ErrorContext(ctx, "session in wrong auth state", "error", stateErr)
		// A callback that arrives early or twice must not end the journey.
		s.reportFailure(ctx, log, session, stateErr.Error(), false)
		s.metrics.IncCallback(string(StatusUnauthorized))
		return &Result{Status: StatusUnauthorized, SessionID: session.ID, Message: stateErr.Error()}, nil
	}

	vendorEvent := audit.NewEvent(audit.EventVendorResponseReceived, session, s.cfg.Issuer)
	vendorEvent.Extensions = audit.JourneyExtensions{
		PreviousJourneyID: session.ClientSessionID,
		Evidence:          []audit.TxnRef{{Txn: vendorSessionID.String()}},
	}
	s.emit(ctx, log, vendorEvent)

	names, err := s.resolveNames(ctx, log, session, fields)
	if err != nil {
		return nil, s.fail(ctx, log, session, "Unable to resolve name", err)
	}

	doc, err := credential.DocumentFromFields(*fields)
	if err != nil {
		return nil, s.fail(ctx, log, session, "Unsupported document type", err)
	}
	scored, ciReasons, err := credential.ScoreEvidence(evidence, *document, vendorSessionID.String())
	if err != nil {
		return nil, s.fail(ctx, log, session, "Unable to score vendor evidence", err)
	}
	vc := credential.Build(doc, names, fields.DateOfBirth, credential.AddressFrom(fields.StructuredPostalAddress), scored)

	signed, err := s.sign(ctx, credential.NewClaims(vc, session.Subject, s.cfg.Issuer, s.now()))
	if err != nil {
		return nil, s.fail(ctx, log, session, "Failed to sign the verifiable credential", err)
	}

	if err := s.deliver(ctx, delivery.Credential(session.ID, session.Subject, session.OAuthState, signed)); err != nil {
		// The session stays open so a redelivered callback can try again.
		log.ErrorContext(ctx, "failed to deliver credential", "error", err)
		s.metrics.IncCallback("failed")
		return nil, dErrors.Wrap(fmt.Errorf("%w: %w", ErrDelivery, err), dErrors.CodeUnavailable, "failed to deliver credential")
	}

	issuedEvent := audit.NewEvent(audit.EventVCIssued, session, s.cfg.Issuer)
	issuedEvent.Extensions = audit.VCIssuedExtensions{
		PreviousJourneyID: session.ClientSessionID,
		Evidence:          []audit.IssuedEvidence{audit.NewIssuedEvidence(scored, ciReasons)},
	}
	issuedEvent.Restricted = credential.Restricted(doc, names, fields.DateOfBirth)
	s.emit(ctx, log, issuedEvent)

	if _, err := s.machine.MarkCredentialIssued(ctx, session.ID); err != nil {
		log.ErrorContext(ctx, "credential delivered but session not updated", "error", err)
		s.metrics.IncCallback("failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update session state")
	}

	log.InfoContext(ctx, "credential issued",
		"document_type", doc.Kind(),
		"strength_score", scored.StrengthScore,
		"validity_score", scored.ValidityScore,
		"verification_score", scored.VerificationScore,
	)
	s.metrics.IncCallback(string(StatusIssued))
	return &Result{Status: StatusIssued, SessionID: session.ID}, nil
}

// extractedDocument returns the single document whose text extraction
// finished and produced fields.
func extractedDocument(evidence *vendor.SessionResult) (*vendor.IDDocument, error) {
	var found []*vendor.IDDocument
	for i := range evidence.Resources.IDDocuments {
		doc := &evidence.Resources.IDDocuments[i]
		if doc.DocumentFields != nil && doc.HasDoneTask(vendor.TaskTextDataExtraction) {
			found = append(found, doc)
		}
	}
	switch {
	case len(found) == 0:
		return nil, ErrMissingFields
	case len(found) > 1:
		return nil, fmt.Errorf("%w: %d documents", ErrAmbiguousFields, len(found))
	case found[0].DocumentFields.Media.ID == "":
		return nil, fmt.Errorf("%w: no media id", ErrMissingFields)
	}
	return found[0], nil
}

func (s *Service) sign(ctx context.Context, claims credential.Claims) (token string, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSign)
	defer func() { span.End(err) }()

	token, err = s.signer.Sign(ctx, claims, s.cfg.IssuerDNS)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}
	if token == "" {
		return "", ErrSigning
	}
	return token, nil
}

func (s *Service) deliver(ctx context.Context, outcome delivery.Outcome) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanDeliver, tracer.String(tracer.AttrOutcome, outcome.Kind()))
	defer func() { span.End(err) }()
	return s.sender.Send(ctx, outcome)
}

// fail reports cause to the relying party, closes the session and returns
// cause as a domain error.
func (s *Service) fail(ctx context.Context, log *slog.Logger, session *models.Session, description string, cause error) error {
	log.ErrorContext(ctx, description, "error", cause)
	s.metrics.IncCallback("failed")
	s.reportFailure(ctx, log, session, description, session.HasState(statemachine.IssuableStates...))
	return dErrors.Wrap(cause, failureCode(cause), description)
}

// reportFailure sends access_denied and, when markFailed is set, marks the
// session failed. Neither step is allowed to mask the original failure.
func (s *Service) reportFailure(ctx context.Context, log *slog.Logger, session *models.Session, description string, markFailed bool) {
	if err := s.deliver(ctx, delivery.Failure(session.ID, session.Subject, session.OAuthState, description)); err != nil {
		log.ErrorContext(ctx, "failed to deliver error outcome", "error", err)
	}
	if !markFailed {
		return
	}
	if _, err := s.machine.MarkIssuanceFailed(ctx, session.ID); err != nil {
		log.WarnContext(ctx, "failed to mark session as failed", "error", err)
	}
}

func failureCode(err error) dErrors.Code {
	var unsupported *credential.UnsupportedDocumentTypeError
	switch {
	case errors.Is(err, vendor.ErrRetriesExhausted), vendor.IsRetryable(err):
		return dErrors.CodeUnavailable
	case vendor.CategoryOf(err) == vendor.ErrorTransport, vendor.CategoryOf(err) == vendor.ErrorTimeout:
		return dErrors.CodeUnavailable
	case errors.Is(err, ErrNameMismatch):
		return dErrors.CodeInvariantViolation
	case errors.As(err, &unsupported):
		return dErrors.CodeBadRequest
	default:
		return dErrors.CodeInternal
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
