package store

import (
	"context"

	"qualinova/internal/certificate/models"
	"qualinova/pkg/domain"
)

// Store persists certificate records, the per-owner and per-issuer indices,
// and the global issuance counter. Implementations return
// pkg/platform/sentinel errors; services translate them into coded errors.
//
// Index semantics: appends keep insertion order, removal is a filtered
// rebuild (positions are not reused), and pagination with start >= length
// yields an empty page rather than an error.
type Store interface {
	// Put writes a new certificate. Returns sentinel.ErrConflict when the
	// id already exists; it never overwrites.
	Put(ctx context.Context, cert models.Certificate) error
	// Get returns sentinel.ErrNotFound for unknown ids.
	Get(ctx context.Context, id domain.CertificateID) (models.Certificate, error)
	// Update rewrites an existing record (ownership change, revocation).
	// Returns sentinel.ErrNotFound when the id is absent.
	Update(ctx context.Context, cert models.Certificate) error

	AppendToOwnerIndex(ctx context.Context, owner domain.Identity, id domain.CertificateID) error
	AppendToIssuerIndex(ctx context.Context, issuer domain.Identity, id domain.CertificateID) error
	RemoveFromOwnerIndex(ctx context.Context, owner domain.Identity, id domain.CertificateID) error

	ListByOwner(ctx context.Context, owner domain.Identity, start, limit int) ([]models.Certificate, error)
	ListByIssuer(ctx context.Context, issuer domain.Identity, start, limit int) ([]models.Certificate, error)
	CountByOwner(ctx context.Context, owner domain.Identity) (int, error)
	CountByIssuer(ctx context.Context, issuer domain.Identity) (int, error)

	// IncrementCount bumps the monotonic global issuance counter.
	IncrementCount(ctx context.Context) error
	Count(ctx context.Context) (uint64, error)
}
