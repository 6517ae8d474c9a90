package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims carried by a session token.
// Subject is the account id. IssuedAtMillis repeats iat in Unix
// milliseconds, since NumericDate is whole seconds.
type SessionClaims struct {
	jwt.RegisteredClaims
	IssuedAtMillis int64 `json:"iat_ms,omitempty"`
}

// AccountID returns the subject claim.
func (c *SessionClaims) AccountID() string {
	return c.Subject
}

// IssuedTime returns the most precise issue time the token carries.
func (c *SessionClaims) IssuedTime() time.Time {
	if c.IssuedAtMillis > 0 {
		return time.UnixMilli(c.IssuedAtMillis)
	}
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// AuthResult is returned by every operation that ends in a fresh session.
type AuthResult struct {
	Account   *Account
	Token     string
	ExpiresAt time.Time
}

// AuthResponse is the JSON body for AuthResult.
type AuthResponse struct {
	Status    string      `json:"status"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Data      AccountData `json:"data"`
}

// AccountData wraps a single account in a response envelope.
type AccountData struct {
	Account *AccountResponse `json:"account"`
}

// ToResponse converts the result to its public JSON form.
func (r *AuthResult) ToResponse() *AuthResponse {
	return &AuthResponse{
		Status:    "success",
		Token:     r.Token,
		ExpiresAt: r.ExpiresAt,
		Data:      AccountData{Account: r.Account.ToResponse()},
	}
}
