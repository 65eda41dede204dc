// Package respond holds the JSON response helpers shared by all handlers,
// including the single place where domain error codes map to HTTP status.
package respond

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "qualinova/pkg/domain-errors"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error translates a domain error into an HTTP response. Unknown errors are
// logged and reported as a generic 500 so internals never leak.
func Error(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "error", err)
		JSON(w, status, errorBody{Error: string(dErrors.CodeInternal), Message: "internal error"})
		return
	}
	message := err.Error()
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	JSON(w, status, errorBody{Error: string(code), Message: message})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeAlreadyExists, dErrors.CodeConflict, dErrors.CodeAlreadyInitialized:
		return http.StatusConflict
	case dErrors.CodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
