package middleware_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"qualinova/internal/platform/middleware"
	"qualinova/internal/platform/middleware/mocks"
	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
)

func serveWithAuth(t *testing.T, validator middleware.TokenValidator, authHeader string) (*httptest.ResponseRecorder, domain.Identity) {
	t.Helper()
	var actor domain.Identity
	handler := middleware.RequireAuth(validator, slog.Default())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor = middleware.GetActor(r.Context())
			w.WriteHeader(http.StatusOK)
		}),
	)
	req := httptest.NewRequest(http.MethodGet, "/certificates/count", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, actor
}

func TestRequireAuthValidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	validator := mocks.NewMockTokenValidator(ctrl)
	validator.EXPECT().ValidateToken("good-token").Return(domain.Identity("issuer-1"), nil)

	rec, actor := serveWithAuth(t, validator, "Bearer good-token")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "issuer-1", actor.String())
}

func TestRequireAuthInvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	validator := mocks.NewMockTokenValidator(ctrl)
	validator.EXPECT().ValidateToken("bad-token").
		Return(domain.Identity(""), dErrors.New(dErrors.CodeUnauthorized, "invalid token"))

	rec, _ := serveWithAuth(t, validator, "Bearer bad-token")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized","error_description":"Invalid or expired token"}`, rec.Body.String())
}

func TestRequireAuthMissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	validator := mocks.NewMockTokenValidator(ctrl)

	rec, _ := serveWithAuth(t, validator, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthWrongScheme(t *testing.T) {
	ctrl := gomock.NewController(t)
	validator := mocks.NewMockTokenValidator(ctrl)

	rec, _ := serveWithAuth(t, validator, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
