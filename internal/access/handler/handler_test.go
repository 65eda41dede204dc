package handler_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"qualinova/internal/access"
	"qualinova/internal/access/handler"
	"qualinova/internal/audit"
	"qualinova/internal/jwtgrant"
	"qualinova/internal/platform/middleware"
	"qualinova/pkg/domain"
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	tokens *jwtgrant.Service
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.Default()
	guard := access.NewGuard(access.NewInMemory(), audit.NewPublisher(audit.NewInMemory(), logger))
	s.tokens = jwtgrant.NewService("test-key", "qualinova-test")

	r := chi.NewRouter()
	r.Use(middleware.RequireAuth(s.tokens, logger))
	handler.New(guard, s.tokens, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path string, actor domain.Identity, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	token, err := s.tokens.GenerateAccessToken(actor, time.Minute)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestInitializeOnce() {
	rec := s.do(http.MethodPost, "/registry/init", "admin-a", nil)
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.JSONEq(`{"admin":"admin-a"}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/registry/init", "admin-b", nil)
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/registry/admin", "anyone", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"admin":"admin-a"}`, rec.Body.String())
}

func (s *HandlerSuite) TestIssuerLifecycle() {
	s.do(http.MethodPost, "/registry/init", "admin-a", nil)

	rec := s.do(http.MethodPost, "/registry/issuers", "admin-a", map[string]string{"issuer": "issuer-1"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/registry/issuers", "admin-a", map[string]string{"issuer": "issuer-1"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"added":false}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/registry/issuers/issuer-1", "anyone", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"issuer":true}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/registry/issuers", "anyone", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"issuers":["issuer-1"]}`, rec.Body.String())

	rec = s.do(http.MethodDelete, "/registry/issuers/issuer-1", "admin-a", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"removed":true}`, rec.Body.String())
}

func (s *HandlerSuite) TestAddIssuerRequiresAdmin() {
	s.do(http.MethodPost, "/registry/init", "admin-a", nil)

	rec := s.do(http.MethodPost, "/registry/issuers", "stranger", map[string]string{"issuer": "issuer-1"})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestTransferAdminWithGrant() {
	s.do(http.MethodPost, "/registry/init", "admin-a", nil)

	grant, err := s.tokens.GenerateGrantToken("admin-a", jwtgrant.ActionHandoverAdmin, time.Minute)
	s.Require().NoError(err)

	// A third party with the outgoing admin's grant can submit the handover.
	rec := s.do(http.MethodPost, "/registry/admin/transfer", "operator", map[string]string{
		"new_admin":      "admin-b",
		"handover_grant": grant,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.JSONEq(`{"admin":"admin-b"}`, rec.Body.String())
}

func (s *HandlerSuite) TestTransferAdminWithoutAuthorization() {
	s.do(http.MethodPost, "/registry/init", "admin-a", nil)

	rec := s.do(http.MethodPost, "/registry/admin/transfer", "operator", map[string]string{
		"new_admin": "admin-b",
	})
	s.Equal(http.StatusUnauthorized, rec.Code)
}
