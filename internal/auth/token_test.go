package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/erpauth/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokenManager(t *testing.T, clock func() time.Time) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(TokenConfig{
		Secret:    testSecret,
		ExpiresIn: 7 * 24 * time.Hour,
		Issuer:    "erpauth",
		Audience:  "erp-clients",
	})
	require.NoError(t, err)
	return tm.WithClock(clock)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewTokenManager_ShortSecretIsConfigurationError(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{
		Secret:    strings.Repeat("x", MinSecretLength-1),
		ExpiresIn: time.Hour,
		Issuer:    "i",
		Audience:  "a",
	})
	require.Error(t, err)
	assert.Equal(t, models.KindConfiguration, models.KindOf(err))
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	tm := newTestTokenManager(t, fixedClock(now))

	token, expiresAt, err := tm.Issue("acc-123")
	require.NoError(t, err)
	assert.Equal(t, now.Add(7*24*time.Hour), expiresAt)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-123", claims.AccountID())
	assert.Equal(t, "erpauth", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"erp-clients"}, claims.Audience)
	assert.Equal(t, now, claims.IssuedAt.Time.UTC())
	assert.Equal(t, now.UnixMilli(), claims.IssuedAtMillis)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_IssuedTimeKeepsMilliseconds(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 750_000_000, time.UTC)
	tm := newTestTokenManager(t, fixedClock(now))

	token, _, err := tm.Issue("acc-123")
	require.NoError(t, err)
	claims, err := tm.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, now.Truncate(time.Second), claims.IssuedAt.Time.UTC())
	assert.True(t, claims.IssuedTime().Equal(now))

	legacy := &models.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(now)}}
	assert.True(t, legacy.IssuedTime().Equal(now.Truncate(time.Second)))
}

func TestTokenManager_VerifyClassifiesFailures(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	tm := newTestTokenManager(t, fixedClock(now))
	valid, _, err := tm.Issue("acc-123")
	require.NoError(t, err)

	otherIssuer, err := NewTokenManager(TokenConfig{Secret: testSecret, ExpiresIn: time.Hour, Issuer: "someone-else", Audience: "erp-clients"})
	require.NoError(t, err)
	wrongIssuer, _, err := otherIssuer.WithClock(fixedClock(now)).Issue("acc-123")
	require.NoError(t, err)

	otherAudience, err := NewTokenManager(TokenConfig{Secret: testSecret, ExpiresIn: time.Hour, Issuer: "erpauth", Audience: "mobile"})
	require.NoError(t, err)
	wrongAudience, _, err := otherAudience.WithClock(fixedClock(now)).Issue("acc-123")
	require.NoError(t, err)

	otherKey, err := NewTokenManager(TokenConfig{Secret: strings.Repeat("k", 32), ExpiresIn: time.Hour, Issuer: "erpauth", Audience: "erp-clients"})
	require.NoError(t, err)
	wrongKey, _, err := otherKey.WithClock(fixedClock(now)).Issue("acc-123")
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "acc-123", Issuer: "erpauth", Audience: jwt.ClaimStrings{"erp-clients"},
		IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: "erpauth", Audience: jwt.ClaimStrings{"erp-clients"},
		IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	tests := []struct {
		name   string
		token  string
		reason models.Reason
	}{
		{"empty", "", models.ReasonMissingToken},
		{"garbage", "not-a-token", models.ReasonMalformed},
		{"tampered signature", tampered, models.ReasonBadSignature},
		{"different key", wrongKey, models.ReasonBadSignature},
		{"alg none", noneToken, models.ReasonBadSignature},
		{"wrong issuer", wrongIssuer, models.ReasonIssuerMismatch},
		{"wrong audience", wrongAudience, models.ReasonAudienceMismatch},
		{"missing subject", noSubject, models.ReasonMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tm.Verify(tt.token)
			require.Error(t, err)
			assert.Equal(t, models.KindAuthentication, models.KindOf(err))
			assert.Equal(t, tt.reason, models.ReasonOf(err))
		})
	}
}

func TestTokenManager_VerifyExpired(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	current := now
	tm := newTestTokenManager(t, func() time.Time { return current })

	token, _, err := tm.Issue("acc-123")
	require.NoError(t, err)

	current = now.Add(7*24*time.Hour - time.Second)
	_, err = tm.Verify(token)
	require.NoError(t, err)

	current = now.Add(7*24*time.Hour + time.Second)
	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
