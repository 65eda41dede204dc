package service

import (
	"context"
	"errors"

	"qualinova/internal/certificate/models"
	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
	"qualinova/pkg/platform/sentinel"
)

// Get returns a certificate by id.
func (s *Service) Get(ctx context.Context, id domain.CertificateID) (models.Certificate, error) {
	if id.IsZero() {
		return models.Certificate{}, dErrors.New(dErrors.CodeInvalidInput, "certificate id is required")
	}
	cert, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Certificate{}, dErrors.New(dErrors.CodeNotFound, "certificate "+id.String()+" not found")
		}
		return models.Certificate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}
	return cert, nil
}

// ListByOwner pages through an owner's certificates in issuance order. A
// start beyond the end of the index yields an empty page.
func (s *Service) ListByOwner(ctx context.Context, owner domain.Identity, start, limit int) ([]models.Certificate, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner identity is required")
	}
	start, limit, err := normalizePage(start, limit)
	if err != nil {
		return nil, err
	}
	certs, err := s.store.ListByOwner(ctx, owner, start, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates by owner")
	}
	return certs, nil
}

// ListByIssuer pages through an issuer's certificates in issuance order.
func (s *Service) ListByIssuer(ctx context.Context, issuer domain.Identity, start, limit int) ([]models.Certificate, error) {
	if issuer.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issuer identity is required")
	}
	start, limit, err := normalizePage(start, limit)
	if err != nil {
		return nil, err
	}
	certs, err := s.store.ListByIssuer(ctx, issuer, start, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates by issuer")
	}
	return certs, nil
}

// CountByOwner returns how many certificates an owner holds.
func (s *Service) CountByOwner(ctx context.Context, owner domain.Identity) (int, error) {
	if owner.IsZero() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "owner identity is required")
	}
	n, err := s.store.CountByOwner(ctx, owner)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count certificates by owner")
	}
	return n, nil
}

// CountByIssuer returns how many certificates an issuer has signed.
func (s *Service) CountByIssuer(ctx context.Context, issuer domain.Identity) (int, error) {
	if issuer.IsZero() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "issuer identity is required")
	}
	n, err := s.store.CountByIssuer(ctx, issuer)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count certificates by issuer")
	}
	return n, nil
}

// TotalIssued returns the monotonic global issuance counter. Transfers and
// revocations never decrease it.
func (s *Service) TotalIssued(ctx context.Context) (uint64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read issuance counter")
	}
	return n, nil
}

func normalizePage(start, limit int) (int, int, error) {
	if start < 0 {
		return 0, 0, dErrors.New(dErrors.CodeInvalidInput, "start must not be negative")
	}
	if limit <= 0 {
		return 0, 0, dErrors.New(dErrors.CodeInvalidInput, "limit must be positive")
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return start, limit, nil
}
