package memory

import (
	"context"
	"sync"

	"github.com/planora/planora/domain/principal"
	"github.com/planora/planora/ports"
)

// PrincipalStore implements ports.PrincipalStore in memory.
type PrincipalStore struct {
	mu         sync.RWMutex
	principals map[string]principal.Principal
	order      []string
}

// NewPrincipalStore creates an empty in-memory principal store.
func NewPrincipalStore() *PrincipalStore {
	return &PrincipalStore{principals: make(map[string]principal.Principal)}
}

// Create stores a new principal.
func (s *PrincipalStore) Create(ctx context.Context, p principal.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.principals[p.ID]; exists {
		return ports.ErrDuplicate
	}
	s.principals[p.ID] = p
	s.order = append(s.order, p.ID)
	return nil
}

// Get retrieves a principal by ID.
func (s *PrincipalStore) Get(ctx context.Context, id string) (principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[id]
	if !ok {
		return principal.Principal{}, ports.ErrNotFound
	}
	return p, nil
}

// List returns all principals in creation order.
func (s *PrincipalStore) List(ctx context.Context) ([]principal.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]principal.Principal, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.principals[id])
	}
	return out, nil
}

// Delete removes a principal.
func (s *PrincipalStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.principals[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.principals, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Ensure interface compliance.
var _ ports.PrincipalStore = (*PrincipalStore)(nil)
