// Package verification derives a verdict for a certificate from three
// independent checks: the Ed25519 signature, the expiration timestamp, and
// the issuing authority's standing in the external registry. Registry
// outages degrade the affected checks to false instead of failing the call,
// so revocation and expiry are always reported.
package verification

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"qualinova/internal/authority"
	certificate "qualinova/internal/certificate"
	"qualinova/internal/certificate/models"
	"qualinova/internal/certificate/store"
	"qualinova/internal/platform/metrics"
	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
	"qualinova/pkg/platform/sentinel"
)

// Engine reads certificates and queries the authority registry; it never
// mutates either.
type Engine struct {
	store    store.Store
	registry authority.Registry
	clock    certificate.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewEngine(
	certStore store.Store,
	registry authority.Registry,
	clock certificate.Clock,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:    certStore,
		registry: registry,
		clock:    clock,
		metrics:  m,
		logger:   logger,
	}
}

// authorityFacts is everything the checks need from the registry, however it
// was resolved. resolved is false when every strategy failed.
type authorityFacts struct {
	key       ed25519.PublicKey
	active    bool
	suspended bool
	allowed   bool
	resolved  bool
}

// Verify produces a report for the certificate. It fails only when the
// certificate cannot be loaded; authority registry failures soft-fail into
// negative check results.
func (e *Engine) Verify(ctx context.Context, id domain.CertificateID) (Report, error) {
	ctx, span := otel.Tracer("qualinova/verification").Start(ctx, "verification.Verify")
	defer span.End()
	span.SetAttributes(attribute.String("certificate.id", id.String()))

	cert, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Report{}, dErrors.New(dErrors.CodeNotFound, "certificate "+id.String()+" not found")
		}
		return Report{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}

	now := e.clock.Now()
	facts := e.resolveAuthority(ctx, cert.Issuer, cert.Metadata.AchievementType)

	report := Report{
		CertificateID:  cert.ID,
		SignatureValid: checkSignature(cert, facts),
		ExpiryValid:    cert.ExpiresAt == nil || now <= *cert.ExpiresAt,
		AuthorityValid: facts.resolved && facts.active && facts.allowed,
		VerifiedAt:     now,
	}
	report.Status = deriveStatus(cert, facts, report)

	e.metrics.ObserveVerification(string(report.Status))
	e.logger.InfoContext(ctx, "certificate verified",
		"certificate_id", cert.ID.String(),
		"status", report.Status,
	)
	return report, nil
}

// resolveAuthority evaluates the lookup strategies in priority order and
// takes the first success. The primary strategy fetches the full authority
// record in one round trip; the fallback assembles the same facts from the
// narrower registry endpoints. Exhausting every strategy yields unresolved
// facts, which the checks read as negative.
func (e *Engine) resolveAuthority(ctx context.Context, issuer domain.Identity, achievementType string) authorityFacts {
	strategies := []struct {
		name    string
		resolve func(context.Context) (authorityFacts, error)
	}{
		{"authority_info", func(ctx context.Context) (authorityFacts, error) {
			return e.resolveFromInfo(ctx, issuer, achievementType)
		}},
		{"basic_lookups", func(ctx context.Context) (authorityFacts, error) {
			return e.resolveFromBasics(ctx, issuer, achievementType)
		}},
	}

	for i, strategy := range strategies {
		facts, err := strategy.resolve(ctx)
		if err == nil {
			return facts
		}
		e.logger.WarnContext(ctx, "authority lookup strategy failed",
			"strategy", strategy.name,
			"issuer", issuer.String(),
			"error", err,
		)
		if i == 0 {
			e.metrics.AuthorityFallbacks.Inc()
		}
	}
	return authorityFacts{}
}

func (e *Engine) resolveFromInfo(ctx context.Context, issuer domain.Identity, achievementType string) (authorityFacts, error) {
	info, err := e.registry.GetAuthorityInfo(ctx, issuer)
	if err != nil {
		return authorityFacts{}, err
	}
	return authorityFacts{
		key:       info.PublicKey,
		active:    info.Status == authority.StatusActive,
		suspended: info.Status == authority.StatusSuspended,
		allowed:   info.Allows(achievementType),
		resolved:  true,
	}, nil
}

// resolveFromBasics gathers the facts from the narrow registry endpoints in
// parallel; any sub-lookup failing fails the whole strategy.
func (e *Engine) resolveFromBasics(ctx context.Context, issuer domain.Identity, achievementType string) (authorityFacts, error) {
	var facts authorityFacts
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		active, err := e.registry.IsActive(ctx, issuer)
		facts.active = active
		return err
	})
	g.Go(func() error {
		allowed, err := e.registry.IsAllowedType(ctx, issuer, achievementType)
		facts.allowed = allowed
		return err
	})
	g.Go(func() error {
		key, err := e.registry.PublicKey(ctx, issuer)
		facts.key = key
		return err
	})
	if err := g.Wait(); err != nil {
		return authorityFacts{}, err
	}
	facts.resolved = true
	return facts, nil
}

func checkSignature(cert models.Certificate, facts authorityFacts) bool {
	if !facts.resolved || len(facts.key) != ed25519.PublicKeySize {
		return false
	}
	if len(cert.Signature) != models.SignatureSize {
		return false
	}
	return ed25519.Verify(facts.key, certificate.SignedMessage(cert), cert.Signature)
}

func deriveStatus(cert models.Certificate, facts authorityFacts, report Report) Status {
	switch {
	case cert.Revoked:
		return StatusRevoked
	case facts.resolved && facts.suspended:
		return StatusSuspended
	case !report.ExpiryValid:
		return StatusExpired
	case report.SignatureValid && report.AuthorityValid:
		return StatusValid
	default:
		return StatusInvalid
	}
}
