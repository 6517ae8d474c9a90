package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/erpauth/internal/database"
	"github.com/BradenHooton/erpauth/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, first_name, last_name, email, password_hash, role, active, verified,
	failed_login_attempts, locked_until, last_login_at, password_changed_at,
	password_reset_token_hash, password_reset_expires, created_at, updated_at`

// AccountRepository is the Postgres credential store.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner interface for scanning account rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAccountRow populates an Account from a row selected with accountColumns
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var a models.Account
	var role string

	err := scanner.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash, &role, &a.Active, &a.Verified,
		&a.FailedLoginAttempts, &a.LockUntil, &a.LastLoginAt, &a.PasswordChangedAt,
		&a.PasswordResetTokenHash, &a.PasswordResetExpires, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	a.Role = models.Role(role)

	return &a, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	return scanAccountRow(r.pool.QueryRow(ctx, query, models.NormalizeEmail(email)))
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

// Create inserts a new account. The id and timestamps are assigned here.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	a := account.Clone()
	a.ID = uuid.New().String()
	a.Email = models.NormalizeEmail(a.Email)
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Role == "" {
		a.Role = models.RoleUser
	}

	query := `
		INSERT INTO accounts (id, first_name, last_name, email, password_hash, role, active, verified,
			failed_login_attempts, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		a.ID, a.FirstName, a.LastName, a.Email, a.PasswordHash, string(a.Role), a.Active, a.Verified,
		a.FailedLoginAttempts, a.PasswordChangedAt, a.CreatedAt, a.UpdatedAt,
	))
}

// Save persists profile, credential and reset-token fields. The failure
// counter and lock are only ever changed through RegisterFailedLogin and
// RegisterSuccessfulLogin so concurrent logins cannot overwrite them.
func (r *AccountRepository) Save(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		UPDATE accounts SET
			first_name = $2, last_name = $3, email = $4, password_hash = $5, role = $6,
			active = $7, verified = $8, password_changed_at = $9,
			password_reset_token_hash = $10, password_reset_expires = $11, updated_at = $12
		WHERE id = $1
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		account.ID, account.FirstName, account.LastName, models.NormalizeEmail(account.Email),
		account.PasswordHash, string(account.Role), account.Active, account.Verified,
		account.PasswordChangedAt, account.PasswordResetTokenHash, account.PasswordResetExpires,
		time.Now().UTC(),
	))
}

// RegisterFailedLogin records a failed attempt in one statement. While a lock
// is active the row is left unchanged. An expired lock restarts the counter
// at 1. Reaching threshold sets locked_until to now+lockFor.
func (r *AccountRepository) RegisterFailedLogin(ctx context.Context, id string, now time.Time, threshold int, lockFor time.Duration) (*models.Account, error) {
	query := `
		WITH next AS (
			SELECT id,
				locked_until IS NOT NULL AND locked_until > $2 AS locked,
				CASE
					WHEN locked_until IS NOT NULL AND locked_until > $2 THEN failed_login_attempts
					WHEN locked_until IS NOT NULL THEN 1
					ELSE failed_login_attempts + 1
				END AS attempts
			FROM accounts WHERE id = $1
			FOR UPDATE
		)
		UPDATE accounts a SET
			failed_login_attempts = next.attempts,
			locked_until = CASE
				WHEN next.locked THEN a.locked_until
				WHEN next.attempts >= $3 THEN $4::timestamptz
				ELSE NULL
			END,
			updated_at = CASE WHEN next.locked THEN a.updated_at ELSE $2 END
		FROM next
		WHERE a.id = next.id
		RETURNING ` + prefixed("a", accountColumns)

	return scanAccountRow(r.pool.QueryRow(ctx, query, id, now, threshold, now.Add(lockFor)))
}

// RegisterSuccessfulLogin resets the failure counter and stamps last login.
func (r *AccountRepository) RegisterSuccessfulLogin(ctx context.Context, id string, now time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts SET
			failed_login_attempts = 0, locked_until = NULL, last_login_at = $2, updated_at = $2
		WHERE id = $1
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query, id, now))
}

// RedeemPasswordResetToken consumes a reset token in one statement: the row
// must carry tokenHash with an expiry after now. The new password hash is
// installed, the reset pair cleared and any lockout lifted. A token that
// does not match, has expired or was already used yields ErrNotFound.
func (r *AccountRepository) RedeemPasswordResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*models.Account, error) {
	query := `
		UPDATE accounts SET
			password_hash = $3,
			password_changed_at = $2,
			password_reset_token_hash = NULL,
			password_reset_expires = NULL,
			failed_login_attempts = 0,
			locked_until = NULL,
			updated_at = $2
		WHERE password_reset_token_hash = $1
			AND password_reset_expires > $2
			AND active = TRUE
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query, tokenHash, now, newPasswordHash))
}

// SetPasswordResetToken stores a reset pair on the account and touches
// nothing else.
func (r *AccountRepository) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expires time.Time) (*models.Account, error) {
	query := `
		UPDATE accounts SET
			password_reset_token_hash = $2, password_reset_expires = $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query, id, tokenHash, expires, time.Now().UTC()))
}

// ClearPasswordResetToken clears the reset pair only while it still holds
// tokenHash. A pair that was redeemed or replaced since is left alone and
// false is returned.
func (r *AccountRepository) ClearPasswordResetToken(ctx context.Context, id, tokenHash string) (bool, error) {
	query := `
		UPDATE accounts SET password_reset_token_hash = NULL, password_reset_expires = NULL
		WHERE id = $1 AND password_reset_token_hash = $2
	`

	tag, err := r.pool.Exec(ctx, query, id, tokenHash)
	if err != nil {
		return false, fmt.Errorf("failed to clear reset token: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// ClearExpiredResetTokens clears every reset pair whose expiry has passed.
func (r *AccountRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE accounts SET password_reset_token_hash = NULL, password_reset_expires = NULL
		WHERE password_reset_expires IS NOT NULL AND password_reset_expires <= $1
	`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired reset tokens: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected(), nil
}
