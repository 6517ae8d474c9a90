package models

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser     Role = "user"
	RoleSales    Role = "sales"
	RoleEngineer Role = "engineer"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSales, RoleEngineer, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Account is the authentication and security record of a user.
// PasswordHash and reset token fields never leave the repository/service
// boundary; handlers serialise AccountResponse instead.
type Account struct {
	ID                     string
	FirstName              string
	LastName               string
	Email                  string
	PasswordHash           string
	Role                   Role
	Active                 bool
	Verified               bool
	FailedLoginAttempts    int
	LockUntil              *time.Time
	LastLoginAt            *time.Time
	PasswordChangedAt      *time.Time
	PasswordResetTokenHash *string
	PasswordResetExpires   *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// IsLocked reports whether the account is locked at now.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}

// ChangedPasswordAfter reports whether the password was changed after a
// token issued at issuedAt. Comparison is at millisecond precision, so a
// token minted earlier in the same second as the change is stale while the
// token issued by the change itself is not.
func (a *Account) ChangedPasswordAfter(issuedAt time.Time) bool {
	if a.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.UnixMilli() < a.PasswordChangedAt.UnixMilli()
}

// RegisterFailedLogin applies one failed login at now. While a lock is
// active nothing changes. An expired lock is a full reset, so the counter
// restarts at 1. Reaching threshold sets LockUntil to now+lockFor.
// It reports whether this call set a new lock.
func (a *Account) RegisterFailedLogin(now time.Time, threshold int, lockFor time.Duration) bool {
	if a.IsLocked(now) {
		return false
	}

	if a.LockUntil != nil {
		a.FailedLoginAttempts = 1
	} else {
		a.FailedLoginAttempts++
	}
	a.LockUntil = nil

	if a.FailedLoginAttempts >= threshold {
		until := now.Add(lockFor)
		a.LockUntil = &until
		return true
	}
	return false
}

// RegisterSuccessfulLogin resets the failure counter, clears any lock and
// stamps the login time.
func (a *Account) RegisterSuccessfulLogin(now time.Time) {
	a.FailedLoginAttempts = 0
	a.LockUntil = nil
	at := now
	a.LastLoginAt = &at
}

// SetPasswordResetToken stores a token hash and its expiry together.
func (a *Account) SetPasswordResetToken(hash string, expires time.Time) {
	h := hash
	a.PasswordResetTokenHash = &h
	a.PasswordResetExpires = &expires
}

// ClearPasswordResetToken clears the token hash and expiry together.
func (a *Account) ClearPasswordResetToken() {
	a.PasswordResetTokenHash = nil
	a.PasswordResetExpires = nil
}

// ChangePassword installs a new hash, stamps the change time and clears any
// outstanding reset token.
func (a *Account) ChangePassword(newHash string, now time.Time) {
	a.PasswordHash = newHash
	at := now
	a.PasswordChangedAt = &at
	a.ClearPasswordResetToken()
}

// Clone returns a deep copy so callers can derive a new version without
// mutating the original.
func (a *Account) Clone() *Account {
	c := *a
	c.LockUntil = cloneTime(a.LockUntil)
	c.LastLoginAt = cloneTime(a.LastLoginAt)
	c.PasswordChangedAt = cloneTime(a.PasswordChangedAt)
	c.PasswordResetExpires = cloneTime(a.PasswordResetExpires)
	if a.PasswordResetTokenHash != nil {
		h := *a.PasswordResetTokenHash
		c.PasswordResetTokenHash = &h
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountResponse is the public view of an Account.
type AccountResponse struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Active      bool       `json:"active"`
	Verified    bool       `json:"verified"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ToResponse strips credential and security-state fields.
func (a *Account) ToResponse() *AccountResponse {
	return &AccountResponse{
		ID:          a.ID,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Email:       a.Email,
		Role:        a.Role,
		Active:      a.Active,
		Verified:    a.Verified,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
