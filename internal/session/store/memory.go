package store

import (
	"context"
	"sync"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
)

// InMemoryStore keeps sessions in process. Used by tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
	byVendor map[id.VendorSessionID]id.SessionID
	byCode   map[string]id.SessionID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[id.SessionID]*models.Session),
		byVendor: make(map[id.VendorSessionID]id.SessionID),
		byCode:   make(map[string]id.SessionID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, session *models.Session) error {
	if err := validateNew(session); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return errSessionExists
	}
	cp := *session
	s.sessions[session.ID] = &cp
	s.index(&cp)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(sessionID)
}

func (s *InMemoryStore) FindByVendorSessionID(_ context.Context, vendorSessionID id.VendorSessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.byVendor[vendorSessionID]
	if !ok {
		return nil, errSessionNotFound
	}
	return s.get(sessionID)
}

func (s *InMemoryStore) FindByAuthorizationCode(_ context.Context, code string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.byCode[code]
	if !ok {
		return nil, errSessionNotFound
	}
	return s.get(sessionID)
}

func (s *InMemoryStore) ConditionalUpdate(_ context.Context, sessionID id.SessionID, expected []models.AuthState, fields models.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return errSessionNotFound
	}
	if !stateAllowed(session.AuthState, expected) {
		return errStateMismatch
	}
	if vendorRebind(session.VendorSessionID, fields) {
		return errVendorIDConflict
	}
	if session.AuthorizationCode != "" {
		delete(s.byCode, session.AuthorizationCode)
	}
	fields.Apply(session)
	s.index(session)
	return nil
}

// get returns a copy so callers never alias stored state. Callers hold mu.
func (s *InMemoryStore) get(sessionID id.SessionID) (*models.Session, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, errSessionNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *InMemoryStore) index(session *models.Session) {
	if !session.VendorSessionID.IsNil() {
		s.byVendor[session.VendorSessionID] = session.ID
	}
	if session.AuthorizationCode != "" {
		s.byCode[session.AuthorizationCode] = session.ID
	}
}
