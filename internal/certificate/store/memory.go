package store

import (
	"context"
	"sync"

	"qualinova/internal/certificate/models"
	"qualinova/pkg/domain"
	"qualinova/pkg/platform/sentinel"
)

// InMemory keeps certificates and indices in process. Used in tests and for
// single-node development; the postgres store is the production variant.
type InMemory struct {
	mu           sync.RWMutex
	certificates map[domain.CertificateID]models.Certificate
	ownerIndex   map[domain.Identity][]domain.CertificateID
	issuerIndex  map[domain.Identity][]domain.CertificateID
	count        uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		certificates: make(map[domain.CertificateID]models.Certificate),
		ownerIndex:   make(map[domain.Identity][]domain.CertificateID),
		issuerIndex:  make(map[domain.Identity][]domain.CertificateID),
	}
}

func (s *InMemory) Put(_ context.Context, cert models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.certificates[cert.ID]; exists {
		return sentinel.ErrConflict
	}
	s.certificates[cert.ID] = cloneCertificate(cert)
	return nil
}

func (s *InMemory) Get(_ context.Context, id domain.CertificateID) (models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certificates[id]
	if !ok {
		return models.Certificate{}, sentinel.ErrNotFound
	}
	return cloneCertificate(cert), nil
}

func (s *InMemory) Update(_ context.Context, cert models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.certificates[cert.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.certificates[cert.ID] = cloneCertificate(cert)
	return nil
}

func (s *InMemory) AppendToOwnerIndex(_ context.Context, owner domain.Identity, id domain.CertificateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerIndex[owner] = append(s.ownerIndex[owner], id)
	return nil
}

func (s *InMemory) AppendToIssuerIndex(_ context.Context, issuer domain.Identity, id domain.CertificateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issuerIndex[issuer] = append(s.issuerIndex[issuer], id)
	return nil
}

func (s *InMemory) RemoveFromOwnerIndex(_ context.Context, owner domain.Identity, id domain.CertificateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.ownerIndex[owner]
	rebuilt := make([]domain.CertificateID, 0, len(current))
	for _, existing := range current {
		if existing != id {
			rebuilt = append(rebuilt, existing)
		}
	}
	s.ownerIndex[owner] = rebuilt
	return nil
}

func (s *InMemory) ListByOwner(ctx context.Context, owner domain.Identity, start, limit int) ([]models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page(s.ownerIndex[owner], start, limit)
}

func (s *InMemory) ListByIssuer(ctx context.Context, issuer domain.Identity, start, limit int) ([]models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page(s.issuerIndex[issuer], start, limit)
}

func (s *InMemory) page(ids []domain.CertificateID, start, limit int) ([]models.Certificate, error) {
	if start < 0 || limit < 0 {
		return []models.Certificate{}, nil
	}
	if start >= len(ids) {
		return []models.Certificate{}, nil
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	page := make([]models.Certificate, 0, end-start)
	for _, id := range ids[start:end] {
		cert, ok := s.certificates[id]
		if !ok {
			return nil, sentinel.ErrNotFound
		}
		page = append(page, cloneCertificate(cert))
	}
	return page, nil
}

func (s *InMemory) CountByOwner(_ context.Context, owner domain.Identity) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ownerIndex[owner]), nil
}

func (s *InMemory) CountByIssuer(_ context.Context, issuer domain.Identity) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.issuerIndex[issuer]), nil
}

func (s *InMemory) IncrementCount(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return nil
}

func (s *InMemory) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count, nil
}

func cloneCertificate(cert models.Certificate) models.Certificate {
	out := cert
	out.Signature = append([]byte(nil), cert.Signature...)
	if cert.ExpiresAt != nil {
		expiry := *cert.ExpiresAt
		out.ExpiresAt = &expiry
	}
	if cert.Metadata.AdditionalData != nil {
		data := make(map[string]domain.Digest, len(cert.Metadata.AdditionalData))
		for k, v := range cert.Metadata.AdditionalData {
			data[k] = v
		}
		out.Metadata.AdditionalData = data
	}
	return out
}
