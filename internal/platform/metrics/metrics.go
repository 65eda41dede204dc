package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	CertificatesIssued      prometheus.Counter
	CertificatesTransferred prometheus.Counter
	CertificatesRevoked     prometheus.Counter
	VerificationsByStatus   *prometheus.CounterVec
	AuthorityLookupLatency  prometheus.Histogram
	AuthorityFallbacks      prometheus.Counter
	RequestLatency          *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on reg. Tests pass a fresh registry so
// packages do not collide on metric names.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CertificatesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "qualinova_certificates_issued_total",
			Help: "Total number of certificates issued, including batch items",
		}),
		CertificatesTransferred: factory.NewCounter(prometheus.CounterOpts{
			Name: "qualinova_certificates_transferred_total",
			Help: "Total number of successful ownership transfers",
		}),
		CertificatesRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "qualinova_certificates_revoked_total",
			Help: "Total number of certificates revoked",
		}),
		VerificationsByStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qualinova_verifications_total",
			Help: "Verification reports produced, labelled by derived status",
		}, []string{"status"}),
		AuthorityLookupLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "qualinova_authority_lookup_seconds",
			Help:    "Latency of authority registry lookups",
			Buckets: prometheus.DefBuckets,
		}),
		AuthorityFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "qualinova_authority_fallback_total",
			Help: "Times the primary authority-info lookup failed and the fallback chain ran",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qualinova_http_request_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveAuthorityLookup records one authority registry round trip.
func (m *Metrics) ObserveAuthorityLookup(d time.Duration) {
	m.AuthorityLookupLatency.Observe(d.Seconds())
}

// ObserveVerification records a produced report by its derived status.
func (m *Metrics) ObserveVerification(status string) {
	m.VerificationsByStatus.WithLabelValues(status).Inc()
}
