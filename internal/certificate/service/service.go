// Package service implements the certificate lifecycle: issuance, ownership
// transfer, revocation, and the paginated read paths over the owner and
// issuer indices. All mutations run inside an atomic unit and are gated by
// the access guard.
package service

import (
	"log/slog"

	"qualinova/internal/access"
	"qualinova/internal/audit"
	certificate "qualinova/internal/certificate"
	"qualinova/internal/certificate/store"
	"qualinova/internal/platform/metrics"
	"qualinova/pkg/platform/tx"
)

// maxPageSize caps a single index page; callers paginate past it.
const maxPageSize = 100

type Service struct {
	guard   *access.Guard
	store   store.Store
	runner  tx.Runner
	clock   certificate.Clock
	audit   *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(
	guard *access.Guard,
	certStore store.Store,
	runner tx.Runner,
	clock certificate.Clock,
	auditor *audit.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		guard:   guard,
		store:   certStore,
		runner:  runner,
		clock:   clock,
		audit:   auditor,
		metrics: m,
		logger:  logger,
	}
}
