package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	certificate "qualinova/internal/certificate"
	"qualinova/internal/certificate/models"
	"qualinova/pkg/domain"
	"qualinova/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemory
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
}

func (s *InMemorySuite) newCert(owner, issuer domain.Identity, nonce uint32) models.Certificate {
	meta := models.Metadata{Title: "Cert", AchievementType: "course"}
	return models.Certificate{
		ID:        certificate.GenerateID(owner, issuer, meta, 1700000000, 1, nonce),
		Owner:     owner,
		Issuer:    issuer,
		Metadata:  meta,
		IssuedAt:  1700000000,
		Signature: make([]byte, models.SignatureSize),
	}
}

func (s *InMemorySuite) TestPutGetRoundTrip() {
	cert := s.newCert("owner-1", "issuer-1", 0)
	s.Require().NoError(s.store.Put(s.ctx, cert))

	got, err := s.store.Get(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(cert, got)
}

func (s *InMemorySuite) TestPutRejectsDuplicateID() {
	cert := s.newCert("owner-1", "issuer-1", 0)
	s.Require().NoError(s.store.Put(s.ctx, cert))
	s.ErrorIs(s.store.Put(s.ctx, cert), sentinel.ErrConflict)
}

func (s *InMemorySuite) TestGetUnknownID() {
	_, err := s.store.Get(s.ctx, s.newCert("owner-1", "issuer-1", 9).ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestUpdateUnknownID() {
	s.ErrorIs(s.store.Update(s.ctx, s.newCert("owner-1", "issuer-1", 0)), sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestGetReturnsACopy() {
	cert := s.newCert("owner-1", "issuer-1", 0)
	s.Require().NoError(s.store.Put(s.ctx, cert))

	got, err := s.store.Get(s.ctx, cert.ID)
	s.Require().NoError(err)
	got.Signature[0] = 0xFF

	again, err := s.store.Get(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(byte(0), again.Signature[0])
}

func (s *InMemorySuite) TestOwnerIndexOrderAndPagination() {
	var certs []models.Certificate
	for i := uint32(0); i < 5; i++ {
		cert := s.newCert("owner-1", "issuer-1", i)
		s.Require().NoError(s.store.Put(s.ctx, cert))
		s.Require().NoError(s.store.AppendToOwnerIndex(s.ctx, cert.Owner, cert.ID))
		certs = append(certs, cert)
	}

	page, err := s.store.ListByOwner(s.ctx, "owner-1", 1, 2)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(certs[1].ID, page[0].ID)
	s.Equal(certs[2].ID, page[1].ID)

	// Same arguments, same sequence.
	again, err := s.store.ListByOwner(s.ctx, "owner-1", 1, 2)
	s.Require().NoError(err)
	s.Equal(page, again)

	// Limit past the end is clamped.
	tail, err := s.store.ListByOwner(s.ctx, "owner-1", 3, 10)
	s.Require().NoError(err)
	s.Len(tail, 2)
}

func (s *InMemorySuite) TestListOutOfRangeStartIsEmpty() {
	cert := s.newCert("owner-1", "issuer-1", 0)
	s.Require().NoError(s.store.Put(s.ctx, cert))
	s.Require().NoError(s.store.AppendToOwnerIndex(s.ctx, cert.Owner, cert.ID))

	page, err := s.store.ListByOwner(s.ctx, "owner-1", 1, 10)
	s.Require().NoError(err)
	s.Empty(page)

	page, err = s.store.ListByOwner(s.ctx, "unknown-owner", 0, 10)
	s.Require().NoError(err)
	s.Empty(page)
}

func (s *InMemorySuite) TestRemoveFromOwnerIndexPreservesOrder() {
	var ids []domain.CertificateID
	for i := uint32(0); i < 3; i++ {
		cert := s.newCert("owner-1", "issuer-1", i)
		s.Require().NoError(s.store.Put(s.ctx, cert))
		s.Require().NoError(s.store.AppendToOwnerIndex(s.ctx, cert.Owner, cert.ID))
		ids = append(ids, cert.ID)
	}

	s.Require().NoError(s.store.RemoveFromOwnerIndex(s.ctx, "owner-1", ids[1]))

	page, err := s.store.ListByOwner(s.ctx, "owner-1", 0, 10)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(ids[0], page[0].ID)
	s.Equal(ids[2], page[1].ID)

	n, err := s.store.CountByOwner(s.ctx, "owner-1")
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *InMemorySuite) TestIssuerIndexIndependentOfOwnerIndex() {
	cert := s.newCert("owner-1", "issuer-1", 0)
	s.Require().NoError(s.store.Put(s.ctx, cert))
	s.Require().NoError(s.store.AppendToOwnerIndex(s.ctx, cert.Owner, cert.ID))
	s.Require().NoError(s.store.AppendToIssuerIndex(s.ctx, cert.Issuer, cert.ID))
	s.Require().NoError(s.store.RemoveFromOwnerIndex(s.ctx, cert.Owner, cert.ID))

	byIssuer, err := s.store.ListByIssuer(s.ctx, "issuer-1", 0, 10)
	s.Require().NoError(err)
	s.Len(byIssuer, 1)

	n, err := s.store.CountByIssuer(s.ctx, "issuer-1")
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *InMemorySuite) TestGlobalCounter() {
	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	s.Require().NoError(s.store.IncrementCount(s.ctx))
	s.Require().NoError(s.store.IncrementCount(s.ctx))

	n, err = s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(2), n)
}
