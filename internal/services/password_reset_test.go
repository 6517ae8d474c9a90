package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BradenHooton/erpauth/internal/models"
	pkgauth "github.com/BradenHooton/erpauth/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetManager_ResetURL(t *testing.T) {
	m := NewPasswordResetManager(&MockAccountRepository{}, &MockMailer{}, PasswordResetConfig{
		TTL:     10 * time.Minute,
		URLBase: "https://erp.example.com",
	}, newTestLogger())

	assert.Equal(t, "https://erp.example.com/reset-password/abc123", m.ResetURL("abc123"))
}

func TestPasswordResetManager_IssueStoresOnlyTheResetPair(t *testing.T) {
	var gotID, gotHash string
	var gotExpires time.Time
	repo := &MockAccountRepository{
		SaveFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			t.Fatal("issuing a reset token must not rewrite the whole account")
			return nil, nil
		},
		SetPasswordResetTokenFunc: func(ctx context.Context, id, tokenHash string, expires time.Time) (*models.Account, error) {
			gotID, gotHash, gotExpires = id, tokenHash, expires
			return &models.Account{ID: id, PasswordResetTokenHash: &tokenHash, PasswordResetExpires: &expires}, nil
		},
	}
	m := NewPasswordResetManager(repo, &MockMailer{}, PasswordResetConfig{TTL: 10 * time.Minute}, newTestLogger())
	account := &models.Account{ID: "acc-1", Email: "owner@example.com", Active: true}
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	raw, out, err := m.Issue(context.Background(), account, now)
	require.NoError(t, err)

	assert.Len(t, raw, pkgauth.ResetTokenBytes*2)
	assert.Nil(t, account.PasswordResetTokenHash)
	assert.Equal(t, "acc-1", gotID)
	assert.Equal(t, pkgauth.HashToken(raw), gotHash)
	assert.True(t, gotExpires.Equal(now.Add(10*time.Minute)))
	assert.Equal(t, out.ID, account.ID)
}

func TestPasswordResetManager_IssueStoreFailure(t *testing.T) {
	repo := &MockAccountRepository{
		SetPasswordResetTokenFunc: func(ctx context.Context, id, tokenHash string, expires time.Time) (*models.Account, error) {
			return nil, errors.New("db down")
		},
	}
	m := NewPasswordResetManager(repo, &MockMailer{}, PasswordResetConfig{TTL: time.Minute}, newTestLogger())

	_, _, err := m.Issue(context.Background(), &models.Account{ID: "acc-1"}, time.Now())
	assert.Error(t, err)
}

func TestPasswordResetManager_DeliverRollbackClearsMatchingHashOnly(t *testing.T) {
	sendErr := errors.New("mailbox unavailable")
	var gotID, gotHash string
	repo := &MockAccountRepository{
		SaveFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			t.Fatal("rollback must not rewrite the whole account")
			return nil, nil
		},
		ClearPasswordResetTokenFunc: func(ctx context.Context, id, tokenHash string) (bool, error) {
			gotID, gotHash = id, tokenHash
			return false, nil
		},
	}
	mailer := &MockMailer{SendMessageFunc: func(ctx context.Context, to, subject, body string) error {
		return sendErr
	}}
	m := NewPasswordResetManager(repo, mailer, PasswordResetConfig{TTL: time.Minute}, newTestLogger())

	err := m.Deliver(context.Background(), &models.Account{ID: "acc-1", Email: "owner@example.com"}, "raw")
	assert.ErrorIs(t, err, sendErr)
	assert.Equal(t, "acc-1", gotID)
	assert.Equal(t, pkgauth.HashToken("raw"), gotHash)
}

func TestPasswordResetManager_DeliverRollbackFailureIsJoined(t *testing.T) {
	sendErr := errors.New("mailbox unavailable")
	clearErr := errors.New("db down")
	repo := &MockAccountRepository{
		ClearPasswordResetTokenFunc: func(ctx context.Context, id, tokenHash string) (bool, error) {
			return false, clearErr
		},
	}
	mailer := &MockMailer{SendMessageFunc: func(ctx context.Context, to, subject, body string) error {
		return sendErr
	}}
	m := NewPasswordResetManager(repo, mailer, PasswordResetConfig{TTL: time.Minute}, newTestLogger())

	err := m.Deliver(context.Background(), &models.Account{ID: "acc-1", Email: "owner@example.com"}, "raw")
	assert.ErrorIs(t, err, sendErr)
	assert.ErrorIs(t, err, clearErr)
}

func TestPasswordResetManager_RedeemMapsNotFound(t *testing.T) {
	var gotHash string
	repo := &MockAccountRepository{
		RedeemPasswordResetTokenFunc: func(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*models.Account, error) {
			gotHash = tokenHash
			return nil, models.ErrNotFound
		},
	}
	m := NewPasswordResetManager(repo, &MockMailer{}, PasswordResetConfig{TTL: time.Minute}, newTestLogger())

	_, err := m.Redeem(context.Background(), "raw-token", time.Now(), "hashed:new")
	assert.ErrorIs(t, err, models.ErrResetTokenInvalid)
	assert.Equal(t, pkgauth.HashToken("raw-token"), gotHash)

	_, err = m.Redeem(context.Background(), "", time.Now(), "hashed:new")
	assert.ErrorIs(t, err, models.ErrResetTokenInvalid)
}
