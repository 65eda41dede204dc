package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mssola/useragent"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// clientName condenses a User-Agent header into a short browser/os label
// for log lines. Unknown agents come through verbatim, truncated.
func clientName(ua string) string {
	if ua == "" {
		return "unknown"
	}
	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	if name == "" {
		if len(ua) > 48 {
			return ua[:48]
		}
		return ua
	}
	if os := parsed.OSInfo().Name; os != "" {
		return name + "/" + version + " (" + os + ")"
	}
	return name + "/" + version
}

// Logger emits one structured line per request.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.InfoContext(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", GetRequestID(r.Context()),
				"client", clientName(r.UserAgent()),
			)
		})
	}
}
