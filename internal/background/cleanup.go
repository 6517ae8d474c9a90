package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ResetTokenCleaner clears reset tokens whose expiry has passed
type ResetTokenCleaner interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// ExpiringStore drops expired key-value entries
type ExpiringStore interface {
	PurgeExpired(now time.Time) int
}

// CleanupManager periodically clears expired reset tokens from accounts and
// expired CSRF and rate-limit entries from a process-local store.
type CleanupManager struct {
	accounts ResetTokenCleaner
	store    ExpiringStore // nil when the store expires keys itself
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(accounts ResetTokenCleaner, store ExpiringStore, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		accounts: accounts,
		store:    store,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. It blocks until Stop or ctx is done.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single cleanup pass
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	now := cm.now()

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cleared, err := cm.accounts.ClearExpiredResetTokens(cleanupCtx, now)
	if err != nil {
		cm.logger.Error("failed to clear expired reset tokens", slog.Any("error", err))
	} else if cleared > 0 {
		cm.logger.Info("expired reset tokens cleared", slog.Int64("accounts", cleared))
	}

	if cm.store != nil {
		if purged := cm.store.PurgeExpired(now); purged > 0 {
			cm.logger.Debug("expired store entries purged", slog.Int("entries", purged))
		}
	}
}

// Stop signals the cleanup manager to stop. It is safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
