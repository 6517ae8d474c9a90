package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/erpauth/internal/auth"
	"github.com/BradenHooton/erpauth/internal/models"
	pkghttp "github.com/BradenHooton/erpauth/pkg/http"
	pkglogger "github.com/BradenHooton/erpauth/pkg/logger"
)

const (
	// CSRFHeader carries the token on requests and the rotated token on responses
	CSRFHeader = "X-CSRF-Token"
	// CSRFFormField is accepted for form posts
	CSRFFormField = "_csrf"
)

// CSRFConfig holds configuration for CSRF protection
type CSRFConfig struct {
	IPConfig    *pkghttp.IPConfig
	ExemptPaths []string // exact paths that skip the check, e.g. login and signup
	Logger      *slog.Logger
	AuditLogger *pkglogger.AuditLogger
}

// CSRFProtection validates the anti-forgery token on state-changing requests
// and rotates it after every successful check. The token is bound to the
// client fingerprint (IP + User-Agent).
func CSRFProtection(csrfManager *auth.CSRFTokenManager, config CSRFConfig) func(http.Handler) http.Handler {
	exempt := make(map[string]bool, len(config.ExemptPaths))
	for _, p := range config.ExemptPaths {
		exempt[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) || exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			identity := pkghttp.ClientFingerprint(r, config.IPConfig)
			presented := r.Header.Get(CSRFHeader)
			if presented == "" {
				presented = r.PostFormValue(CSRFFormField)
			}

			token, _, err := csrfManager.ValidateAndRotate(r.Context(), identity, presented)
			if err != nil {
				var appErr *models.Error
				if !errors.As(err, &appErr) {
					config.Logger.Error("csrf store unavailable", slog.Any("error", err))
					pkghttp.WriteAppError(w, err)
					return
				}

				config.Logger.Warn("CSRF token rejected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("reason", string(appErr.Reason)))
				config.AuditLogger.LogRequestRejected(r.Context(), pkglogger.EventCSRFRejected,
					pkghttp.ExtractClientIP(r, config.IPConfig), r.UserAgent(), string(appErr.Reason))
				pkghttp.WriteAppError(w, err)
				return
			}

			w.Header().Set(CSRFHeader, token)
			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
