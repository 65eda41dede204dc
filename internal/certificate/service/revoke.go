package service

import (
	"context"
	"errors"

	"qualinova/internal/audit"
	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
	"qualinova/pkg/platform/sentinel"
)

// Revoke permanently invalidates a certificate. Only the issuing authority
// may revoke, and it must still be an authorized issuer. Revoking an already
// revoked certificate reports false; revocation never un-does.
func (s *Service) Revoke(ctx context.Context, actor domain.Identity, id domain.CertificateID) (bool, error) {
	issuer, err := s.guard.RequireIssuer(ctx, actor)
	if err != nil {
		return false, err
	}

	cert, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if cert.Issuer != issuer {
		return false, dErrors.New(dErrors.CodeUnauthorized, "only the issuing authority may revoke this certificate")
	}
	if cert.Revoked {
		return false, nil
	}

	cert.Revoked = true
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, cert); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "certificate "+cert.ID.String()+" not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke certificate")
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.audit.Emit(ctx, audit.Event{
		Operation: audit.OpCertRevoked,
		SubjectID: cert.ID.String(),
		ActorID:   issuer.String(),
	})
	s.metrics.CertificatesRevoked.Inc()
	s.logger.InfoContext(ctx, "certificate revoked",
		"certificate_id", cert.ID.String(),
		"issuer", issuer.String(),
	)
	return true, nil
}
