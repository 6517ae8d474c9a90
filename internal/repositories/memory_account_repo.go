package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/erpauth/internal/models"
	"github.com/google/uuid"
)

// MemoryAccountRepository is a process-local credential store used for
// local development and tests. It offers the same atomic primitives as the
// Postgres store, serialised by a single mutex.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	byEmail  map[string]string
	now      func() time.Time
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[string]*models.Account),
		byEmail:  make(map[string]string),
		now:      time.Now,
	}
}

// WithClock replaces the time source used for created/updated stamps.
func (r *MemoryAccountRepository) WithClock(now func() time.Time) *MemoryAccountRepository {
	r.now = now
	return r
}

func (r *MemoryAccountRepository) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r.accounts[id].Clone(), nil
}

func (r *MemoryAccountRepository) FindByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryAccountRepository) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := account.Clone()
	a.Email = models.NormalizeEmail(a.Email)
	if _, exists := r.byEmail[a.Email]; exists {
		return nil, models.ErrConflict
	}

	a.ID = uuid.New().String()
	now := r.now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Role == "" {
		a.Role = models.RoleUser
	}

	r.accounts[a.ID] = a
	r.byEmail[a.Email] = a.ID
	return a.Clone(), nil
}

// Save persists profile, credential and reset-token fields. Counter and
// lock state are left as stored.
func (r *MemoryAccountRepository) Save(_ context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[account.ID]
	if !ok {
		return nil, models.ErrNotFound
	}

	email := models.NormalizeEmail(account.Email)
	if owner, exists := r.byEmail[email]; exists && owner != account.ID {
		return nil, models.ErrConflict
	}
	if (account.PasswordResetTokenHash == nil) != (account.PasswordResetExpires == nil) {
		return nil, models.ValidationError("reset token hash and expiry must be set together")
	}

	next := account.Clone()
	next.Email = email
	next.FailedLoginAttempts = stored.FailedLoginAttempts
	next.LockUntil = stored.LockUntil
	next.LastLoginAt = stored.LastLoginAt
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = r.now().UTC()

	delete(r.byEmail, stored.Email)
	r.byEmail[email] = next.ID
	r.accounts[next.ID] = next
	return next.Clone(), nil
}

func (r *MemoryAccountRepository) RegisterFailedLogin(_ context.Context, id string, now time.Time, threshold int, lockFor time.Duration) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if !a.IsLocked(now) {
		a.RegisterFailedLogin(now, threshold, lockFor)
		a.UpdatedAt = now
	}
	return a.Clone(), nil
}

func (r *MemoryAccountRepository) RegisterSuccessfulLogin(_ context.Context, id string, now time.Time) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	a.RegisterSuccessfulLogin(now)
	a.UpdatedAt = now
	return a.Clone(), nil
}

func (r *MemoryAccountRepository) RedeemPasswordResetToken(_ context.Context, tokenHash string, now time.Time, newPasswordHash string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.PasswordResetTokenHash == nil || *a.PasswordResetTokenHash != tokenHash {
			continue
		}
		if !a.PasswordResetExpires.After(now) || !a.Active {
			return nil, models.ErrNotFound
		}
		a.ChangePassword(newPasswordHash, now)
		a.FailedLoginAttempts = 0
		a.LockUntil = nil
		a.UpdatedAt = now
		return a.Clone(), nil
	}
	return nil, models.ErrNotFound
}

func (r *MemoryAccountRepository) SetPasswordResetToken(_ context.Context, id, tokenHash string, expires time.Time) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	a.SetPasswordResetToken(tokenHash, expires)
	a.UpdatedAt = r.now().UTC()
	return a.Clone(), nil
}

func (r *MemoryAccountRepository) ClearPasswordResetToken(_ context.Context, id, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok || a.PasswordResetTokenHash == nil || *a.PasswordResetTokenHash != tokenHash {
		return false, nil
	}
	a.ClearPasswordResetToken()
	return true, nil
}

func (r *MemoryAccountRepository) ClearExpiredResetTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleared int64
	for _, a := range r.accounts {
		if a.PasswordResetExpires != nil && !a.PasswordResetExpires.After(now) {
			a.ClearPasswordResetToken()
			cleared++
		}
	}
	return cleared, nil
}
