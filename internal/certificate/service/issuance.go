package service

import (
	"context"
	"errors"
	"strconv"

	"qualinova/internal/audit"
	"qualinova/internal/certificate"
	"qualinova/internal/certificate/models"
	"qualinova/internal/platform/authz"
	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
	"qualinova/pkg/platform/sentinel"
)

// IssueRequest carries one certificate to issue. The signature is produced
// off-host by the issuer over the canonical signed message; the registry
// stores it verbatim and verifiers recompute the message later.
type IssueRequest struct {
	Owner     domain.Identity
	Metadata  models.Metadata
	ExpiresAt *uint64
	Signature []byte
}

func (r IssueRequest) validate(issuedAt uint64) error {
	if r.Owner.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "owner identity is required")
	}
	if err := r.Metadata.Validate(); err != nil {
		return err
	}
	if len(r.Signature) != models.SignatureSize {
		return dErrors.New(dErrors.CodeInvalidInput, "signature must be 64 bytes")
	}
	if r.ExpiresAt != nil && *r.ExpiresAt <= issuedAt {
		return dErrors.New(dErrors.CodeInvalidInput, "expiration must be after issuance")
	}
	return nil
}

// Issue mints a single certificate. The actor must be an authorized issuer
// and the owner must have granted acceptance of the certificate.
func (s *Service) Issue(ctx context.Context, actor domain.Identity, grants authz.Grants, req IssueRequest) (domain.CertificateID, error) {
	issuer, err := s.guard.RequireIssuer(ctx, actor)
	if err != nil {
		return domain.CertificateID{}, err
	}
	timestamp := s.clock.Now()
	if err := req.validate(timestamp); err != nil {
		return domain.CertificateID{}, err
	}
	if !grants.Holds(req.Owner) {
		return domain.CertificateID{}, dErrors.New(dErrors.CodeUnauthorized, "issuance requires the owner's acceptance")
	}

	sequence := s.clock.Next()
	cert := buildCertificate(issuer, req, timestamp, sequence, 0)

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.persist(ctx, cert)
	})
	if err != nil {
		return domain.CertificateID{}, err
	}

	s.audit.Emit(ctx, audit.Event{
		Operation: audit.OpCertIssued,
		SubjectID: cert.ID.String(),
		ActorID:   issuer.String(),
		Details:   map[string]string{"owner": cert.Owner.String()},
	})
	s.metrics.CertificatesIssued.Inc()
	s.logger.InfoContext(ctx, "certificate issued",
		"certificate_id", cert.ID.String(),
		"issuer", issuer.String(),
		"owner", cert.Owner.String(),
	)
	return cert.ID, nil
}

// BatchIssue mints several certificates atomically: either every item lands
// or none does. All items share one timestamp and sequence value; the item
// index feeds the id nonce so identical payloads still get distinct ids.
func (s *Service) BatchIssue(ctx context.Context, actor domain.Identity, grants authz.Grants, reqs []IssueRequest) ([]domain.CertificateID, error) {
	issuer, err := s.guard.RequireIssuer(ctx, actor)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "batch must contain at least one certificate")
	}

	timestamp := s.clock.Now()
	for i, req := range reqs {
		if err := req.validate(timestamp); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "batch item "+strconv.Itoa(i)+" is invalid")
		}
		if !grants.Holds(req.Owner) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "issuance requires each owner's acceptance")
		}
	}

	sequence := s.clock.Next()
	certs := make([]models.Certificate, len(reqs))
	ids := make([]domain.CertificateID, len(reqs))
	for i, req := range reqs {
		certs[i] = buildCertificate(issuer, req, timestamp, sequence, uint32(i))
		ids[i] = certs[i].ID
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		for _, cert := range certs {
			if err := s.persist(ctx, cert); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, audit.Event{
		Operation: audit.OpCertBatchIssued,
		SubjectID: ids[0].String(),
		ActorID:   issuer.String(),
		Details:   map[string]string{"batch_size": strconv.Itoa(len(ids))},
	})
	s.metrics.CertificatesIssued.Add(float64(len(ids)))
	s.logger.InfoContext(ctx, "certificate batch issued",
		"issuer", issuer.String(),
		"count", len(ids),
	)
	return ids, nil
}

func buildCertificate(issuer domain.Identity, req IssueRequest, timestamp, sequence uint64, nonce uint32) models.Certificate {
	id := certificate.GenerateID(req.Owner, issuer, req.Metadata, timestamp, sequence, nonce)
	return models.Certificate{
		ID:        id,
		Owner:     req.Owner,
		Issuer:    issuer,
		Metadata:  req.Metadata,
		IssuedAt:  timestamp,
		ExpiresAt: req.ExpiresAt,
		Signature: req.Signature,
	}
}

// persist writes the record, both index entries, and bumps the global
// counter; it runs inside the caller's atomic unit.
func (s *Service) persist(ctx context.Context, cert models.Certificate) error {
	if err := s.store.Put(ctx, cert); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeAlreadyExists, "certificate "+cert.ID.String()+" already exists")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate")
	}
	if err := s.store.AppendToOwnerIndex(ctx, cert.Owner, cert.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to index certificate by owner")
	}
	if err := s.store.AppendToIssuerIndex(ctx, cert.Issuer, cert.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to index certificate by issuer")
	}
	if err := s.store.IncrementCount(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to increment issuance counter")
	}
	return nil
}
