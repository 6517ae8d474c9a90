package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/erpauth/internal/models"
	"github.com/BradenHooton/erpauth/internal/services"
	pkghttp "github.com/BradenHooton/erpauth/pkg/http"
	pkglogger "github.com/BradenHooton/erpauth/pkg/logger"
	"github.com/go-chi/httprate"
)

// RateLimiter decides whether one more request from identity is allowed
type RateLimiter interface {
	Check(ctx context.Context, scope, identity string) services.RateLimitDecision
}

// ProgressiveRateLimitConfig holds configuration for the per-endpoint limiter
type ProgressiveRateLimitConfig struct {
	Scope       string // counter namespace, usually the endpoint name
	IPConfig    *pkghttp.IPConfig
	Logger      *slog.Logger
	AuditLogger *pkglogger.AuditLogger
}

// waitFor sleeps for d or until ctx is done
var waitFor = func(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// ProgressiveRateLimit throttles an endpoint per client IP. Requests over
// the limit are held for the backoff delay and then rejected with 429.
func ProgressiveRateLimit(limiter RateLimiter, config ProgressiveRateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r, config.IPConfig)
			decision := limiter.Check(r.Context(), config.Scope, ip)
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			config.Logger.Warn("rate limit exceeded",
				slog.String("scope", config.Scope),
				slog.Int("count", decision.Count),
				slog.Duration("delay", decision.Delay))
			config.AuditLogger.LogRequestRejected(r.Context(), pkglogger.EventRateLimited, ip, r.UserAgent(), config.Scope)

			waitFor(r.Context(), decision.Delay)

			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			pkghttp.WriteAppError(w, models.ErrRateLimited)
		})
	}
}

// GlobalRateLimit is a coarse fixed-window limit per client IP for every
// route. The IP is resolved with ipConfig so forwarding headers count only
// from trusted proxies.
func GlobalRateLimit(requestsPerMinute int, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteAppError(w, models.ErrRateLimited)
		}),
	)
}
