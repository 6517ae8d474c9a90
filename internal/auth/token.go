package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/erpauth/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum signing key size in bytes.
const MinSecretLength = 32

// Client-facing token failure messages
const (
	msgNotLoggedIn    = "You are not logged in. Please log in to get access."
	msgInvalidToken   = "Invalid token. Please log in again."
	msgExpiredToken   = "Your session has expired. Please log in again."
	msgAccountMissing = "The account belonging to this token no longer exists."
	msgDeactivated    = "This account has been deactivated."
	msgStaleToken     = "Password was changed recently. Please log in again."
)

// Token verification failures. Each carries KindAuthentication and a
// distinct Reason.
var (
	ErrMissingToken       = models.AuthenticationError(models.ReasonMissingToken, msgNotLoggedIn)
	ErrMalformedToken     = models.AuthenticationError(models.ReasonMalformed, msgInvalidToken)
	ErrBadSignature       = models.AuthenticationError(models.ReasonBadSignature, msgInvalidToken)
	ErrExpiredToken       = models.AuthenticationError(models.ReasonExpired, msgExpiredToken)
	ErrIssuerMismatch     = models.AuthenticationError(models.ReasonIssuerMismatch, msgInvalidToken)
	ErrAudienceMismatch   = models.AuthenticationError(models.ReasonAudienceMismatch, msgInvalidToken)
	ErrSubjectNotFound    = models.AuthenticationError(models.ReasonSubjectNotFound, msgAccountMissing)
	ErrAccountDeactivated = models.AuthenticationError(models.ReasonAccountDeactivated, msgDeactivated)
	ErrStaleToken         = models.AuthenticationError(models.ReasonStaleToken, msgStaleToken)
)

// TokenConfig configures session token issuance.
type TokenConfig struct {
	Secret    string
	ExpiresIn time.Duration
	Issuer    string
	Audience  string
}

// TokenManager signs and verifies HS256 session tokens
type TokenManager struct {
	secret    []byte
	expiresIn time.Duration
	issuer    string
	audience  string
	now       func() time.Time
	parser    *jwt.Parser
}

// NewTokenManager validates cfg and returns a TokenManager. A secret shorter
// than MinSecretLength is a configuration error.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, models.ConfigurationError("signing key must be at least %d bytes (got %d)", MinSecretLength, len(cfg.Secret))
	}
	if cfg.ExpiresIn <= 0 {
		return nil, models.ConfigurationError("token lifetime must be positive")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, models.ConfigurationError("token issuer and audience are required")
	}

	tm := &TokenManager{
		secret:    []byte(cfg.Secret),
		expiresIn: cfg.ExpiresIn,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		now:       time.Now,
	}
	tm.buildParser()
	return tm, nil
}

// WithClock replaces the time source for issuance and verification.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	tm.buildParser()
	return tm
}

func (tm *TokenManager) buildParser() {
	tm.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithAudience(tm.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(tm.now),
	)
}

// ExpiresIn returns the configured token lifetime.
func (tm *TokenManager) ExpiresIn() time.Duration {
	return tm.expiresIn
}

// Issue signs a token for accountID and returns it with its expiry.
func (tm *TokenManager) Issue(accountID string) (string, time.Time, error) {
	if accountID == "" {
		return "", time.Time{}, fmt.Errorf("cannot issue token without subject")
	}

	now := tm.now()
	expiresAt := now.Add(tm.expiresIn)

	claims := &models.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   accountID,
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{tm.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		IssuedAtMillis: now.UnixMilli(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, expiresAt.Truncate(time.Second), nil
}

// Verify checks signature, expiry, issuer and audience and returns the
// claims. Failures are classified authentication errors.
func (tm *TokenManager) Verify(tokenString string) (*models.SessionClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &models.SessionClaims{}
	token, err := tm.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	if err != nil {
		return nil, classifyParseError(err).Wrap(err)
	}
	if !token.Valid {
		return nil, ErrMalformedToken
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, ErrMalformedToken
	}

	return claims, nil
}

func classifyParseError(err error) *models.Error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuerMismatch
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch
	default:
		return ErrMalformedToken
	}
}
