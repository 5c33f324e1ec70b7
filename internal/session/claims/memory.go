package claims

import (
	"context"
	"sync"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
)

// InMemoryStore keeps claims in a map. It backs local runs and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	claims map[id.SessionID]*models.IdentityClaim
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{claims: make(map[id.SessionID]*models.IdentityClaim)}
}

func (s *InMemoryStore) Save(_ context.Context, claim *models.IdentityClaim) error {
	if err := validateClaim(claim); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[claim.SessionID]; ok {
		return errClaimExists
	}
	s.claims[claim.SessionID] = cloneClaim(claim)
	return nil
}

func (s *InMemoryStore) FindBySessionID(_ context.Context, sessionID id.SessionID) (*models.IdentityClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claim, ok := s.claims[sessionID]
	if !ok {
		return nil, errClaimNotFound
	}
	return cloneClaim(claim), nil
}
