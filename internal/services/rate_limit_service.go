package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/erpauth/internal/kvstore"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimitConfig holds configuration for the per-client abuse limiter
type RateLimitConfig struct {
	MaxAttempts int           // requests allowed per window
	Window      time.Duration // window length
	BaseDelay   time.Duration // delay applied to the first request over the limit
	MaxDelay    time.Duration // cap on the progressive delay
}

// RateLimitDecision is the outcome of one Check
type RateLimitDecision struct {
	Allowed    bool
	Count      int
	Delay      time.Duration // progressive backoff to apply before rejecting
	RetryAfter time.Duration // time until the window resets
}

// RateLimitService throttles an endpoint per client identity with a fixed
// window counter in the shared store. It is independent of account lockout.
type RateLimitService struct {
	store  kvstore.Store
	config RateLimitConfig
	logger *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(store kvstore.Store, config RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Check counts one request from identity against scope. Store failures are
// logged and the request is allowed.
func (s *RateLimitService) Check(ctx context.Context, scope, identity string) RateLimitDecision {
	count, remaining, err := s.store.Incr(ctx, rateLimitKeyPrefix+scope+":"+identity, s.config.Window)
	if err != nil {
		s.logger.Error("rate limit store unavailable, allowing request",
			slog.String("scope", scope),
			slog.Any("error", err))
		return RateLimitDecision{Allowed: true}
	}

	decision := RateLimitDecision{
		Allowed:    count <= int64(s.config.MaxAttempts),
		Count:      int(count),
		RetryAfter: remaining,
	}
	if !decision.Allowed {
		decision.Delay = s.BackoffDelay(decision.Count)
	}
	return decision
}

// BackoffDelay returns min(base * 2^(count-max), maxDelay) for counts over
// the limit and zero otherwise.
func (s *RateLimitService) BackoffDelay(count int) time.Duration {
	over := count - s.config.MaxAttempts
	if over <= 0 {
		return 0
	}

	delay := s.config.BaseDelay
	if delay <= 0 {
		return 0
	}
	for i := 0; i < over; i++ {
		delay *= 2
		if delay >= s.config.MaxDelay || delay <= 0 {
			return s.config.MaxDelay
		}
	}
	return delay
}
