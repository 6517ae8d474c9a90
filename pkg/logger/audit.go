package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types
const (
	EventSignup                 = "signup"
	EventLogin                  = "login"
	EventLockout                = "account_locked"
	EventPasswordChange         = "password_change"
	EventPasswordResetRequested = "password_reset_requested"
	EventPasswordResetCompleted = "password_reset_completed"
	EventCSRFRejected           = "csrf_rejected"
	EventRateLimited            = "rate_limited"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	AccountID     string
	Email         string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// Log writes one audit record. Failures are logged at warn level.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", event.AccountID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogLogin logs a login attempt
func (al *AuditLogger) LogLogin(ctx context.Context, accountID, email string, success bool, reason string) {
	al.Log(ctx, AuditEvent{
		EventType:     EventLogin,
		AccountID:     accountID,
		Email:         email,
		Success:       success,
		FailureReason: reason,
	})
}

// LogPasswordChange logs password change events
func (al *AuditLogger) LogPasswordChange(ctx context.Context, accountID string, success bool, reason string) {
	al.Log(ctx, AuditEvent{
		EventType:     EventPasswordChange,
		AccountID:     accountID,
		Success:       success,
		FailureReason: reason,
	})
}

// LogAccountAction logs general account actions
func (al *AuditLogger) LogAccountAction(ctx context.Context, eventType, accountID string, metadata map[string]string) {
	al.Log(ctx, AuditEvent{
		EventType: eventType,
		AccountID: accountID,
		Success:   true,
		Metadata:  metadata,
	})
}

// LogRequestRejected logs a request-level rejection (CSRF, rate limit).
func (al *AuditLogger) LogRequestRejected(ctx context.Context, eventType, ipAddress, userAgent, reason string) {
	al.Log(ctx, AuditEvent{
		EventType:     eventType,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: reason,
	})
}
