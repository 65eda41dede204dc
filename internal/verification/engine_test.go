package verification

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"qualinova/internal/authority"
	certificate "qualinova/internal/certificate"
	"qualinova/internal/certificate/models"
	"qualinova/internal/certificate/store"
	"qualinova/internal/platform/metrics"
	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
)

type stubClock struct {
	now uint64
	seq uint64
}

func (c *stubClock) Now() uint64  { return c.now }
func (c *stubClock) Next() uint64 { c.seq++; return c.seq }

type EngineSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemory
	registry *authority.InMemory
	clock    *stubClock
	engine   *Engine
	pub      ed25519.PublicKey
	priv     ed25519.PrivateKey
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.registry = authority.NewInMemory()
	s.clock = &stubClock{now: 1700000000}
	s.engine = NewEngine(s.store, s.registry, s.clock, metrics.NewWith(prometheus.NewRegistry()), slog.Default())

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	s.pub, s.priv = pub, priv

	s.registry.Register(authority.Info{
		Identity:     "issuer-1",
		PublicKey:    s.pub,
		AllowedTypes: []string{"course", "degree"},
		Status:       authority.StatusActive,
	})
}

// seed stores a signed certificate and returns it.
func (s *EngineSuite) seed(mutate func(*models.Certificate)) models.Certificate {
	meta := models.Metadata{Title: "X", AchievementType: "course"}
	cert := models.Certificate{
		ID:       certificate.GenerateID("owner-o", "issuer-1", meta, s.clock.now, s.clock.Next(), 0),
		Owner:    "owner-o",
		Issuer:   "issuer-1",
		Metadata: meta,
		IssuedAt: s.clock.now,
	}
	if mutate != nil {
		mutate(&cert)
	}
	cert.Signature = ed25519.Sign(s.priv, certificate.SignedMessage(cert))
	s.Require().NoError(s.store.Put(s.ctx, cert))
	return cert
}

func (s *EngineSuite) TestValidCertificate() {
	cert := s.seed(nil)

	report, err := s.engine.Verify(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.True(report.SignatureValid)
	s.True(report.ExpiryValid)
	s.True(report.AuthorityValid)
	s.Equal(StatusValid, report.Status)
	s.Equal(uint64(1700000000), report.VerifiedAt)
}

func (s *EngineSuite) TestUnknownCertificate() {
	_, err := s.engine.Verify(s.ctx, domain.CertificateID{1})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EngineSuite) TestRevokedWinsOverEverything() {
	cert := s.seed(func(c *models.Certificate) { c.Revoked = true })

	report, err := s.engine.Verify(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(StatusRevoked, report.Status)
	s.True(report.SignatureValid, "checks still reported alongside the verdict")
}

func (s *EngineSuite) TestSuspendedIssuer() {
	s.registry.Register(authority.Info{
		Identity:     "issuer-1",
		PublicKey:    s.pub,
		AllowedTypes: []string{"course"},
		Status:       authority.StatusSuspended,
	})
	cert := s.seed(nil)

	report, err := s.engine.Verify(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(StatusSuspended, report.Status)
	s.False(report.AuthorityValid)
}

func (s *EngineSuite) TestExpiryBoundary() {
	// Expiration exactly at the current logical time is still valid.
	expiry := s.clock.now
	cert := s.seed(func(c *models.Certificate) { c.ExpiresAt = &expiry })

	report, err := s.engine.Verify(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.True(report.ExpiryValid)
	s.Equal(StatusValid, report.Status)

	// One tick later it has expired.
	s.clock.now++
	report, err = s.engine.Verify(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.False(report.ExpiryValid)
	s.Equal(StatusExpired, report.Status)
	s.True(report.SignatureValid)
}

func (s *EngineSuite) TestTamperedSignature() {
	cert := s.seed(nil)
	cert.Signature[0] ^= 0xFF
	s.Require().NoError(s.store.Update(s.ctx, cert))

	report, err := s.engine.Verify(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.False(report.SignatureValid)
	s.Equal(StatusInvalid, report.Status)
}

func (s *EngineSuite) TestDisallowedAchievementType() {
	cert := s.seed(func(c *models.Certificate) { c.Metadata.AchievementType = "bootcamp" })

	report, err := s.engine.Verify(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.False(report.AuthorityValid)
	s.Equal(StatusInvalid, report.Status)
}

func (s *EngineSuite) TestInactiveIssuer() {
	s.registry.Register(authority.Info{
		Identity:     "issuer-1",
		PublicKey:    s.pub,
		AllowedTypes: []string{"course"},
		Status:       authority.StatusInactive,
	})
	cert := s.seed(nil)

	report, err := s.engine.Verify(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.False(report.AuthorityValid)
	s.Equal(StatusInvalid, report.Status)
}

// The fallback chain reassembles the same facts from the narrow endpoints
// when the primary info lookup is down.
func (s *EngineSuite) TestFallbackChain() {
	s.registry.FailInfo = true
	cert := s.seed(nil)

	report, err := s.engine.Verify(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.True(report.SignatureValid)
	s.True(report.AuthorityValid)
	s.Equal(StatusValid, report.Status)
}

// A full registry outage degrades the signature and authority checks to
// false but still reports revocation and expiry.
func (s *EngineSuite) TestRegistryOutageSoftFails() {
	s.registry.FailAll = true
	cert := s.seed(nil)

	report, err := s.engine.Verify(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.False(report.SignatureValid)
	s.False(report.AuthorityValid)
	s.True(report.ExpiryValid)
	s.Equal(StatusInvalid, report.Status)
}

func (s *EngineSuite) TestRegistryOutageStillReportsRevoked() {
	s.registry.FailAll = true
	cert := s.seed(func(c *models.Certificate) { c.Revoked = true })

	report, err := s.engine.Verify(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(StatusRevoked, report.Status)
}
