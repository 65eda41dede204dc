package service

import (
	"context"
	"errors"

	"qualinova/internal/audit"
	"qualinova/internal/platform/authz"
	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
	"qualinova/pkg/platform/sentinel"
)

// Transfer moves ownership of a certificate. Both sides must have authorized
// the operation: the current owner releases it and the new owner accepts it.
// A revoked certificate is not transferable; the call reports false without
// erroring so callers can distinguish refusal from failure.
func (s *Service) Transfer(ctx context.Context, grants authz.Grants, id domain.CertificateID, newOwner domain.Identity) (bool, error) {
	if newOwner.IsZero() {
		return false, dErrors.New(dErrors.CodeInvalidInput, "new owner identity is required")
	}

	cert, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if cert.Revoked {
		return false, nil
	}
	if !grants.Holds(cert.Owner) {
		return false, dErrors.New(dErrors.CodeUnauthorized, "transfer requires the current owner's authorization")
	}
	if !grants.Holds(newOwner) {
		return false, dErrors.New(dErrors.CodeUnauthorized, "transfer requires the new owner's acceptance")
	}
	if newOwner == cert.Owner {
		return false, dErrors.New(dErrors.CodeInvalidInput, "certificate is already owned by this identity")
	}

	previousOwner := cert.Owner
	cert.Owner = newOwner

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.RemoveFromOwnerIndex(ctx, previousOwner, cert.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unindex previous owner")
		}
		if err := s.store.AppendToOwnerIndex(ctx, newOwner, cert.ID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to index new owner")
		}
		if err := s.store.Update(ctx, cert); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "certificate "+cert.ID.String()+" not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update certificate owner")
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.audit.Emit(ctx, audit.Event{
		Operation: audit.OpCertTransferred,
		SubjectID: cert.ID.String(),
		ActorID:   previousOwner.String(),
		Details: map[string]string{
			"previous_owner": previousOwner.String(),
			"new_owner":      newOwner.String(),
		},
	})
	s.metrics.CertificatesTransferred.Inc()
	s.logger.InfoContext(ctx, "certificate transferred",
		"certificate_id", cert.ID.String(),
		"previous_owner", previousOwner.String(),
		"new_owner", newOwner.String(),
	)
	return true, nil
}
