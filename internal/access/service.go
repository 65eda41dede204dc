package access

import (
	"context"
	"errors"

	"qualinova/internal/audit"
	"qualinova/internal/platform/authz"
	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
	"qualinova/pkg/platform/sentinel"
)

// Guard owns the admin/issuer role set and gates every mutating registry
// operation. The admin is implicitly always an issuer.
type Guard struct {
	store Store
	audit *audit.Publisher
}

func NewGuard(store Store, auditor *audit.Publisher) *Guard {
	return &Guard{store: store, audit: auditor}
}

// Initialize records the first admin. Calling it twice fails.
func (g *Guard) Initialize(ctx context.Context, admin domain.Identity) error {
	if admin.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "admin identity is required")
	}
	if err := g.store.InitAdmin(ctx, admin); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeAlreadyInitialized, "registry is already initialized")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to initialize registry")
	}
	g.audit.Emit(ctx, audit.Event{
		Operation: audit.OpInitialized,
		SubjectID: admin.String(),
		ActorID:   admin.String(),
	})
	return nil
}

// IsInitialized reports whether an admin has been recorded.
func (g *Guard) IsInitialized(ctx context.Context) (bool, error) {
	_, err := g.store.GetAdmin(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read admin")
	}
	return true, nil
}

// Admin returns the current admin identity.
func (g *Guard) Admin(ctx context.Context) (domain.Identity, error) {
	admin, err := g.store.GetAdmin(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.New(dErrors.CodeNotFound, "registry is not initialized")
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read admin")
	}
	return admin, nil
}

// TransferAdmin hands the admin role to newAdmin. The outgoing admin must
// hold a grant; the operation succeeds unconditionally otherwise.
func (g *Guard) TransferAdmin(ctx context.Context, grants authz.Grants, newAdmin domain.Identity) error {
	if newAdmin.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "new admin identity is required")
	}
	admin, err := g.Admin(ctx)
	if err != nil {
		return err
	}
	if !grants.Holds(admin) {
		return dErrors.New(dErrors.CodeUnauthorized, "admin transfer requires the current admin's authorization")
	}
	if err := g.store.SetAdmin(ctx, newAdmin); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer admin")
	}
	g.audit.Emit(ctx, audit.Event{
		Operation: audit.OpAdminTransferred,
		SubjectID: newAdmin.String(),
		ActorID:   admin.String(),
		Details:   map[string]string{"previous_admin": admin.String()},
	})
	return nil
}

// AddIssuer grants issuer rights. Admin-only. Adding a present issuer is a
// no-op reported as false rather than an error.
func (g *Guard) AddIssuer(ctx context.Context, actor, issuer domain.Identity) (bool, error) {
	if issuer.IsZero() {
		return false, dErrors.New(dErrors.CodeInvalidInput, "issuer identity is required")
	}
	if err := g.requireAdmin(ctx, actor); err != nil {
		return false, err
	}
	added, err := g.store.AddIssuer(ctx, issuer)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to add issuer")
	}
	if added {
		g.audit.Emit(ctx, audit.Event{
			Operation: audit.OpIssuerAdded,
			SubjectID: issuer.String(),
			ActorID:   actor.String(),
		})
	}
	return added, nil
}

// RemoveIssuer revokes issuer rights. Admin-only; removing an absent issuer
// reports false.
func (g *Guard) RemoveIssuer(ctx context.Context, actor, issuer domain.Identity) (bool, error) {
	if issuer.IsZero() {
		return false, dErrors.New(dErrors.CodeInvalidInput, "issuer identity is required")
	}
	if err := g.requireAdmin(ctx, actor); err != nil {
		return false, err
	}
	removed, err := g.store.RemoveIssuer(ctx, issuer)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove issuer")
	}
	if removed {
		g.audit.Emit(ctx, audit.Event{
			Operation: audit.OpIssuerRemoved,
			SubjectID: issuer.String(),
			ActorID:   actor.String(),
		})
	}
	return removed, nil
}

// IsIssuer reports whether identity may sign certificates. The admin always
// may.
func (g *Guard) IsIssuer(ctx context.Context, identity domain.Identity) (bool, error) {
	admin, err := g.store.GetAdmin(ctx)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read admin")
	}
	if err == nil && admin == identity {
		return true, nil
	}
	has, err := g.store.HasIssuer(ctx, identity)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check issuer")
	}
	return has, nil
}

// Issuers lists the explicit issuer set (the admin is implicit and not
// included).
func (g *Guard) Issuers(ctx context.Context) ([]domain.Identity, error) {
	issuers, err := g.store.ListIssuers(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issuers")
	}
	return issuers, nil
}

// RequireIssuer authenticates actor as an authorized issuer and returns the
// identity the issuance engine should record as the certificate's issuer.
func (g *Guard) RequireIssuer(ctx context.Context, actor domain.Identity) (domain.Identity, error) {
	if actor.IsZero() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	ok, err := g.IsIssuer(ctx, actor)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller is not an authorized issuer")
	}
	return actor, nil
}

func (g *Guard) requireAdmin(ctx context.Context, actor domain.Identity) error {
	admin, err := g.Admin(ctx)
	if err != nil {
		return err
	}
	if actor != admin {
		return dErrors.New(dErrors.CodeUnauthorized, "operation requires the admin")
	}
	return nil
}
