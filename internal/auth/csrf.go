package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/erpauth/internal/kvstore"
	"github.com/BradenHooton/erpauth/internal/models"
)

const (
	csrfKeyPrefix  = "csrf:"
	csrfTokenBytes = 32
)

// csrfTokenEntry is the stored form of a client's current token
type csrfTokenEntry struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CSRFTokenManager issues one anti-forgery token per client identity and
// validates presented tokens against it.
type CSRFTokenManager struct {
	store    kvstore.Store
	tokenTTL time.Duration
	now      func() time.Time
}

// NewCSRFTokenManager creates a CSRF token manager backed by store
func NewCSRFTokenManager(store kvstore.Store, ttl time.Duration) *CSRFTokenManager {
	return &CSRFTokenManager{
		store:    store,
		tokenTTL: ttl,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (m *CSRFTokenManager) WithClock(now func() time.Time) *CSRFTokenManager {
	m.now = now
	return m
}

// GenerateToken issues a fresh token for identity, replacing any previous one.
func (m *CSRFTokenManager) GenerateToken(ctx context.Context, identity string) (string, time.Time, error) {
	entry, data, err := m.newEntry()
	if err != nil {
		return "", time.Time{}, err
	}

	if err := m.store.Set(ctx, csrfKeyPrefix+identity, data, m.tokenTTL); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store csrf token: %w", err)
	}

	return entry.Token, entry.ExpiresAt, nil
}

// ValidateAndRotate checks presented against the stored token for identity
// and, on a match, replaces it with a new token in the same atomic update.
// Of several requests carrying the same token only one succeeds. Expired or
// unreadable entries are deleted.
func (m *CSRFTokenManager) ValidateAndRotate(ctx context.Context, identity, presented string) (string, time.Time, error) {
	if presented == "" {
		return "", time.Time{}, models.ErrCSRFMissing
	}

	next, data, err := m.newEntry()
	if err != nil {
		return "", time.Time{}, err
	}

	var rejected error
	err = m.store.Update(ctx, csrfKeyPrefix+identity, func(current []byte, exists bool) ([]byte, time.Duration, error) {
		rejected = nil
		if !exists {
			return nil, 0, models.ErrCSRFInvalid
		}

		var entry csrfTokenEntry
		if err := json.Unmarshal(current, &entry); err != nil || !m.now().Before(entry.ExpiresAt) {
			rejected = models.ErrCSRFInvalid
			return nil, 0, nil
		}

		if subtle.ConstantTimeCompare([]byte(entry.Token), []byte(presented)) != 1 {
			return nil, 0, models.ErrCSRFInvalid
		}
		return data, m.tokenTTL, nil
	})
	if err != nil {
		if errors.Is(err, models.ErrCSRFInvalid) {
			return "", time.Time{}, err
		}
		return "", time.Time{}, fmt.Errorf("failed to rotate csrf token: %w", err)
	}
	if rejected != nil {
		return "", time.Time{}, rejected
	}

	return next.Token, next.ExpiresAt, nil
}

func (m *CSRFTokenManager) newEntry() (csrfTokenEntry, []byte, error) {
	randomBytes := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return csrfTokenEntry{}, nil, fmt.Errorf("failed to generate csrf token: %w", err)
	}

	entry := csrfTokenEntry{
		Token:     hex.EncodeToString(randomBytes),
		ExpiresAt: m.now().Add(m.tokenTTL),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return csrfTokenEntry{}, nil, fmt.Errorf("failed to encode csrf token: %w", err)
	}
	return entry, data, nil
}

// RevokeToken forgets the token for identity (logout).
func (m *CSRFTokenManager) RevokeToken(ctx context.Context, identity string) error {
	return m.store.Delete(ctx, csrfKeyPrefix+identity)
}
