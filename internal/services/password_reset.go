package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/erpauth/internal/models"
	pkgauth "github.com/BradenHooton/erpauth/pkg/auth"
)

const passwordResetSubject = "Your password reset token (valid for %d minutes)"

// PasswordResetRepository is the part of the credential store used by resets
type PasswordResetRepository interface {
	SetPasswordResetToken(ctx context.Context, id, tokenHash string, expires time.Time) (*models.Account, error)
	ClearPasswordResetToken(ctx context.Context, id, tokenHash string) (bool, error)
	RedeemPasswordResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*models.Account, error)
}

// PasswordResetConfig configures reset token issuance
type PasswordResetConfig struct {
	TTL     time.Duration
	URLBase string // reset link is URLBase + "/reset-password/" + token
}

// PasswordResetManager issues and redeems single-use reset tokens. Only the
// SHA-256 of a token is stored.
type PasswordResetManager struct {
	repo   PasswordResetRepository
	mailer Mailer
	config PasswordResetConfig
	logger *slog.Logger
}

// NewPasswordResetManager creates a new PasswordResetManager
func NewPasswordResetManager(repo PasswordResetRepository, mailer Mailer, config PasswordResetConfig, logger *slog.Logger) *PasswordResetManager {
	return &PasswordResetManager{
		repo:   repo,
		mailer: mailer,
		config: config,
		logger: logger,
	}
}

// Issue generates a token for account, stores its hash with an expiry and
// returns the raw value. The raw value is never persisted.
func (m *PasswordResetManager) Issue(ctx context.Context, account *models.Account, now time.Time) (string, *models.Account, error) {
	raw, err := pkgauth.GenerateRandomToken(pkgauth.ResetTokenBytes)
	if err != nil {
		return "", nil, err
	}

	saved, err := m.repo.SetPasswordResetToken(ctx, account.ID, pkgauth.HashToken(raw), now.Add(m.config.TTL))
	if err != nil {
		return "", nil, fmt.Errorf("failed to store reset token: %w", err)
	}
	return raw, saved, nil
}

// Deliver sends the reset link. When delivery fails the token is cleared
// again, but only while it is still the stored one. Every other column is
// left untouched.
func (m *PasswordResetManager) Deliver(ctx context.Context, account *models.Account, raw string) error {
	subject := fmt.Sprintf(passwordResetSubject, int(m.config.TTL.Minutes()))
	body := fmt.Sprintf(
		"Forgot your password? Submit a PATCH request with your new password to:\n\n%s\n\n"+
			"If you didn't forget your password, please ignore this email.\n",
		m.ResetURL(raw),
	)

	sendErr := m.mailer.SendMessage(ctx, account.Email, subject, body)
	if sendErr == nil {
		return nil
	}

	cleared, err := m.repo.ClearPasswordResetToken(ctx, account.ID, pkgauth.HashToken(raw))
	if err != nil {
		m.logger.Error("failed to roll back reset token after delivery failure",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return errors.Join(sendErr, err)
	}
	if !cleared {
		m.logger.Info("reset token already replaced or used, nothing to roll back",
			slog.String("account_id", account.ID))
	}
	return sendErr
}

// Redeem consumes raw and installs newPasswordHash. Any mismatch, expiry or
// reuse yields ErrResetTokenInvalid.
func (m *PasswordResetManager) Redeem(ctx context.Context, raw string, now time.Time, newPasswordHash string) (*models.Account, error) {
	if raw == "" {
		return nil, models.ErrResetTokenInvalid
	}

	account, err := m.repo.RedeemPasswordResetToken(ctx, pkgauth.HashToken(raw), now, newPasswordHash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrResetTokenInvalid
		}
		return nil, err
	}
	return account, nil
}

// ResetURL builds the link delivered to the account owner
func (m *PasswordResetManager) ResetURL(raw string) string {
	return m.config.URLBase + "/reset-password/" + raw
}
