// Package statemachine validates and persists session state transitions.
// Every processor that advances a session goes through Machine so that state
// only moves forward and each write is conditional on the state it read.
package statemachine

//go:generate mockgen -source=statemachine.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vcissuer/internal/platform/metrics"
	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
	"vcissuer/pkg/platform/sentinel"
)

// Store is the persistence the machine needs.
type Store interface {
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	// ConditionalUpdate writes fields only if the stored state is one of
	// expected, returning sentinel.ErrConditionFailed otherwise.
	ConditionalUpdate(ctx context.Context, sessionID id.SessionID, expected []models.AuthState, fields models.Fields) error
}

// InvalidSessionStateError reports a session found in a state the caller
// did not expect. It is the normal result of a duplicate or racing request.
type InvalidSessionStateError struct {
	SessionID id.SessionID
	Expected  []models.AuthState
	Actual    models.AuthState
}

func (e *InvalidSessionStateError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, st := range e.Expected {
		expected[i] = st.String()
	}
	return fmt.Sprintf("session %s in wrong auth state: expected %s, actual %s",
		e.SessionID, strings.Join(expected, " or "), e.Actual)
}

func (e *InvalidSessionStateError) Unwrap() error {
	return sentinel.ErrInvalidState
}

// ErrRegression is returned for a transition whose target does not rank
// above the current state.
var ErrRegression = fmt.Errorf("transition does not advance session: %w", sentinel.ErrInvalidState)

// ErrVendorSessionSet guards the vendor session id, which never changes once written.
var ErrVendorSessionSet = fmt.Errorf("vendor session already recorded: %w", sentinel.ErrInvalidState)

// Transition describes one move. From lists every state the move is valid
// from; Fields are written together with the new state.
type Transition struct {
	From   []models.AuthState
	To     models.AuthState
	Fields models.Fields
	// Check runs against the loaded session before anything is written.
	Check func(*models.Session) error
}

type Machine struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Machine)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Machine) {
		m.metrics = mt
	}
}

func New(store Store, opts ...Option) *Machine {
	m := &Machine{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns the current session.
func (m *Machine) Load(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return m.store.FindByID(ctx, sessionID)
}

// Transition loads the session, checks it against t and performs a single
// conditional write. It returns the session as written.
func (m *Machine) Transition(ctx context.Context, sessionID id.SessionID, t Transition) (*models.Session, error) {
	session, err := m.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !session.HasState(t.From...) {
		return nil, &InvalidSessionStateError{SessionID: sessionID, Expected: t.From, Actual: session.AuthState}
	}
	if !session.AuthState.Precedes(t.To) {
		return nil, fmt.Errorf("%s to %s: %w", session.AuthState, t.To, ErrRegression)
	}
	if t.Check != nil {
		if err := t.Check(session); err != nil {
			return nil, err
		}
	}

	fields := t.Fields
	fields.AuthState = t.To
	current := session.AuthState
	err = m.store.ConditionalUpdate(ctx, sessionID, []models.AuthState{current}, fields)
	if errors.Is(err, sentinel.ErrConditionFailed) {
		// Another writer moved the session between our read and write.
		actual := current
		if fresh, ferr := m.store.FindByID(ctx, sessionID); ferr == nil {
			actual = fresh.AuthState
		}
		m.logger.WarnContext(ctx, "session changed during transition",
			"session_id", sessionID.String(),
			"read_state", current.String(),
			"actual_state", actual.String(),
			"to", t.To.String(),
		)
		return nil, &InvalidSessionStateError{SessionID: sessionID, Expected: t.From, Actual: actual}
	}
	if err != nil {
		return nil, fmt.Errorf("update session state: %w", err)
	}

	fields.Apply(session)
	m.metrics.IncTransition(t.To.String())
	m.logger.InfoContext(ctx, "session state updated",
		"session_id", sessionID.String(),
		"from", current.String(),
		"to", t.To.String(),
	)
	return session, nil
}
