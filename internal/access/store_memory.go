package access

import (
	"context"
	"sync"

	"qualinova/pkg/domain"
	"qualinova/pkg/platform/sentinel"
)

// InMemory keeps access-control state in process.
type InMemory struct {
	mu      sync.RWMutex
	admin   domain.Identity
	issuers map[domain.Identity]struct{}
	order   []domain.Identity
}

func NewInMemory() *InMemory {
	return &InMemory{issuers: make(map[domain.Identity]struct{})}
}

func (s *InMemory) InitAdmin(_ context.Context, admin domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.admin.IsZero() {
		return sentinel.ErrConflict
	}
	s.admin = admin
	return nil
}

func (s *InMemory) GetAdmin(_ context.Context) (domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.admin.IsZero() {
		return "", sentinel.ErrNotFound
	}
	return s.admin, nil
}

func (s *InMemory) SetAdmin(_ context.Context, admin domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admin.IsZero() {
		return sentinel.ErrNotFound
	}
	s.admin = admin
	return nil
}

func (s *InMemory) AddIssuer(_ context.Context, issuer domain.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.issuers[issuer]; exists {
		return false, nil
	}
	s.issuers[issuer] = struct{}{}
	s.order = append(s.order, issuer)
	return true, nil
}

func (s *InMemory) RemoveIssuer(_ context.Context, issuer domain.Identity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.issuers[issuer]; !exists {
		return false, nil
	}
	delete(s.issuers, issuer)
	rebuilt := make([]domain.Identity, 0, len(s.order)-1)
	for _, existing := range s.order {
		if existing != issuer {
			rebuilt = append(rebuilt, existing)
		}
	}
	s.order = rebuilt
	return true, nil
}

func (s *InMemory) HasIssuer(_ context.Context, issuer domain.Identity) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.issuers[issuer]
	return ok, nil
}

func (s *InMemory) ListIssuers(_ context.Context) ([]domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Identity{}, s.order...), nil
}
