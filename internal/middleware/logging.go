package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	pkglogger "github.com/BradenHooton/erpauth/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// pathsWithSecrets are route prefixes whose trailing segment is a credential
var pathsWithSecrets = []string{"/resetPassword/"}

// SecureLogger returns a middleware for logging HTTP requests with sensitive data redaction
func SecureLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			path := redactPath(r.URL.Path)
			if pkglogger.SanitizeQueryString(r.URL.RawQuery) {
				path += "?[REDACTED]"
			} else if r.URL.RawQuery != "" {
				path += "?" + r.URL.RawQuery
			}

			level := slog.LevelInfo
			if wrapped.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}

			logger.LogAttrs(r.Context(), level, "http_request",
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", wrapped.Status()),
				slog.Int("bytes", wrapped.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// redactPath replaces a token carried in the path
func redactPath(path string) string {
	for _, prefix := range pathsWithSecrets {
		if i := strings.Index(path, prefix); i >= 0 {
			return path[:i+len(prefix)] + "[REDACTED]"
		}
	}
	return path
}
