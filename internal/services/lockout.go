package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/erpauth/internal/models"
	pkglogger "github.com/BradenHooton/erpauth/pkg/logger"
)

// LockoutRepository holds the atomic counter primitives of the credential store
type LockoutRepository interface {
	RegisterFailedLogin(ctx context.Context, id string, now time.Time, threshold int, lockFor time.Duration) (*models.Account, error)
	RegisterSuccessfulLogin(ctx context.Context, id string, now time.Time) (*models.Account, error)
}

// LockoutPolicy configures account lockout
type LockoutPolicy struct {
	Threshold int           // consecutive failures that lock the account
	Duration  time.Duration // fixed lock length, never extended
}

// LockoutTracker protects an account against password guessing regardless
// of which client is guessing.
type LockoutTracker struct {
	repo        LockoutRepository
	policy      LockoutPolicy
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewLockoutTracker creates a new LockoutTracker
func NewLockoutTracker(repo LockoutRepository, policy LockoutPolicy, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *LockoutTracker {
	return &LockoutTracker{
		repo:        repo,
		policy:      policy,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// IsLocked reports whether account may not attempt a login at now
func (t *LockoutTracker) IsLocked(account *models.Account, now time.Time) bool {
	return account.IsLocked(now)
}

// RegisterFailure records one failed password check and returns the
// updated account.
func (t *LockoutTracker) RegisterFailure(ctx context.Context, account *models.Account, now time.Time) (*models.Account, error) {
	updated, err := t.repo.RegisterFailedLogin(ctx, account.ID, now, t.policy.Threshold, t.policy.Duration)
	if err != nil {
		return nil, err
	}

	if updated.IsLocked(now) && !account.IsLocked(now) {
		t.logger.Warn("account locked after repeated failures",
			slog.String("account_id", updated.ID),
			slog.Int("failed_attempts", updated.FailedLoginAttempts),
			slog.Time("locked_until", *updated.LockUntil))
		t.auditLogger.LogAccountAction(ctx, pkglogger.EventLockout, updated.ID, map[string]string{
			"locked_until": updated.LockUntil.UTC().Format(time.RFC3339),
		})
	}

	return updated, nil
}

// RegisterSuccess resets the failure counter and stamps last login
func (t *LockoutTracker) RegisterSuccess(ctx context.Context, accountID string, now time.Time) (*models.Account, error) {
	return t.repo.RegisterSuccessfulLogin(ctx, accountID, now)
}
