package access

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"qualinova/internal/audit"
	"qualinova/internal/platform/authz"
	dErrors "qualinova/pkg/domain-errors"
	"qualinova/pkg/testutil"
)

type GuardSuite struct {
	suite.Suite
	ctx    context.Context
	events *audit.InMemory
	guard  *Guard
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}

func (s *GuardSuite) SetupTest() {
	s.ctx = context.Background()
	s.events = audit.NewInMemory()
	s.guard = NewGuard(NewInMemory(), audit.NewPublisher(s.events, slog.Default()))
}

func (s *GuardSuite) TestInitializeOnce() {
	initialized, err := s.guard.IsInitialized(s.ctx)
	s.Require().NoError(err)
	s.False(initialized)

	s.Require().NoError(s.guard.Initialize(s.ctx, "admin-a"))

	initialized, err = s.guard.IsInitialized(s.ctx)
	s.Require().NoError(err)
	s.True(initialized)

	admin, err := s.guard.Admin(s.ctx)
	s.Require().NoError(err)
	s.Equal("admin-a", admin.String())
}

func (s *GuardSuite) TestInitializeTwiceFails() {
	s.Require().NoError(s.guard.Initialize(s.ctx, "admin-a"))
	err := s.guard.Initialize(s.ctx, "admin-b")
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyInitialized))
}

func (s *GuardSuite) TestAdminBeforeInitialize() {
	_, err := s.guard.Admin(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *GuardSuite) TestTransferAdminRequiresOutgoingAdmin() {
	s.Require().NoError(s.guard.Initialize(s.ctx, "admin-a"))

	err := s.guard.TransferAdmin(s.ctx, authz.NewGrants("someone-else"), "admin-b")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.Require().NoError(s.guard.TransferAdmin(s.ctx, authz.NewGrants("admin-a"), "admin-b"))

	admin, err := s.guard.Admin(s.ctx)
	s.Require().NoError(err)
	s.Equal("admin-b", admin.String())
}

func (s *GuardSuite) TestAddIssuerAdminOnly() {
	s.Require().NoError(s.guard.Initialize(s.ctx, "admin-a"))

	_, err := s.guard.AddIssuer(s.ctx, "not-admin", "issuer-1")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	added, err := s.guard.AddIssuer(s.ctx, "admin-a", "issuer-1")
	s.Require().NoError(err)
	s.True(added)

	// Adding again is a reported no-op, not an error.
	added, err = s.guard.AddIssuer(s.ctx, "admin-a", "issuer-1")
	s.Require().NoError(err)
	s.False(added)
}

func (s *GuardSuite) TestRemoveIssuer() {
	s.Require().NoError(s.guard.Initialize(s.ctx, "admin-a"))
	_, err := s.guard.AddIssuer(s.ctx, "admin-a", "issuer-1")
	s.Require().NoError(err)

	removed, err := s.guard.RemoveIssuer(s.ctx, "admin-a", "issuer-1")
	s.Require().NoError(err)
	s.True(removed)

	removed, err = s.guard.RemoveIssuer(s.ctx, "admin-a", "issuer-1")
	s.Require().NoError(err)
	s.False(removed)
}

func (s *GuardSuite) TestAdminIsImplicitIssuer() {
	s.Require().NoError(s.guard.Initialize(s.ctx, "admin-a"))

	ok, err := s.guard.IsIssuer(s.ctx, "admin-a")
	s.Require().NoError(err)
	s.True(ok)

	issuers, err := s.guard.Issuers(s.ctx)
	s.Require().NoError(err)
	s.Empty(issuers, "the admin is implicit and not part of the explicit set")
}

func (s *GuardSuite) TestRequireIssuer() {
	s.Require().NoError(s.guard.Initialize(s.ctx, "admin-a"))
	_, err := s.guard.AddIssuer(s.ctx, "admin-a", "issuer-1")
	s.Require().NoError(err)

	issuer, err := s.guard.RequireIssuer(s.ctx, "issuer-1")
	s.Require().NoError(err)
	s.Equal("issuer-1", issuer.String())

	_, err = s.guard.RequireIssuer(s.ctx, "random")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.guard.RequireIssuer(s.ctx, "")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestAdminHandoverStory(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(NewInMemory(), audit.NewPublisher(audit.NewInMemory(), slog.Default()))

	testutil.Given(t, "an initialized registry with one issuer", func(t *testing.T) {
		require.NoError(t, guard.Initialize(ctx, "admin-a"))
		_, err := guard.AddIssuer(ctx, "admin-a", "issuer-1")
		require.NoError(t, err)
	})
	testutil.When(t, "the admin role is handed to a successor", func(t *testing.T) {
		require.NoError(t, guard.TransferAdmin(ctx, authz.NewGrants("admin-a"), "admin-b"))
	})
	testutil.Then(t, "only the successor holds admin powers", func(t *testing.T) {
		_, err := guard.AddIssuer(ctx, "admin-a", "issuer-2")
		require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

		added, err := guard.AddIssuer(ctx, "admin-b", "issuer-2")
		require.NoError(t, err)
		require.True(t, added)

		ok, err := guard.IsIssuer(ctx, "issuer-1")
		require.NoError(t, err)
		require.True(t, ok, "existing issuer rights survive the handover")
	})
}

func (s *GuardSuite) TestAuditTrail() {
	s.Require().NoError(s.guard.Initialize(s.ctx, "admin-a"))
	_, err := s.guard.AddIssuer(s.ctx, "admin-a", "issuer-1")
	s.Require().NoError(err)
	s.Require().NoError(s.guard.TransferAdmin(s.ctx, authz.NewGrants("admin-a"), "admin-b"))

	events := s.events.All()
	s.Require().Len(events, 3)
	s.Equal(audit.OpInitialized, events[0].Operation)
	s.Equal(audit.OpIssuerAdded, events[1].Operation)
	s.Equal(audit.OpAdminTransferred, events[2].Operation)
	s.Equal("admin-a", events[2].Details["previous_admin"])
}
