package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"qualinova/pkg/domain"
)

// TokenValidator validates a bearer token and resolves the calling identity.
type TokenValidator interface {
	ValidateToken(tokenString string) (domain.Identity, error)
}

type contextKeyActor struct{}

// ContextKeyActor is exported for use in handlers and tests.
var ContextKeyActor = contextKeyActor{}

// GetActor retrieves the authenticated caller identity from the context.
func GetActor(ctx context.Context) domain.Identity {
	actor, ok := ctx.Value(ContextKeyActor).(domain.Identity)
	if !ok {
		return ""
	}
	return actor
}

// WithActor returns a context carrying the caller identity. Exposed for tests.
func WithActor(ctx context.Context, actor domain.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// RequireAuth authenticates the bearer token and stores the caller identity
// in the request context. Requests without a valid token get 401.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}
			actor, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(ctx, actor)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}
