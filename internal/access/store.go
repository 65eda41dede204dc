package access

import (
	"context"

	"qualinova/pkg/domain"
)

// Store persists the admin singleton and the issuer set. Implementations
// return pkg/platform/sentinel errors.
type Store interface {
	// InitAdmin sets the admin exactly once. Returns sentinel.ErrConflict
	// when an admin is already recorded.
	InitAdmin(ctx context.Context, admin domain.Identity) error
	// GetAdmin returns sentinel.ErrNotFound before initialization.
	GetAdmin(ctx context.Context) (domain.Identity, error)
	SetAdmin(ctx context.Context, admin domain.Identity) error

	// AddIssuer reports false when the issuer was already present.
	AddIssuer(ctx context.Context, issuer domain.Identity) (bool, error)
	// RemoveIssuer reports false when the issuer was absent.
	RemoveIssuer(ctx context.Context, issuer domain.Identity) (bool, error)
	HasIssuer(ctx context.Context, issuer domain.Identity) (bool, error)
	ListIssuers(ctx context.Context) ([]domain.Identity, error)
}
