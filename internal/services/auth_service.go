package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/erpauth/internal/auth"
	"github.com/BradenHooton/erpauth/internal/models"
	pkgauth "github.com/BradenHooton/erpauth/pkg/auth"
	pkglogger "github.com/BradenHooton/erpauth/pkg/logger"
)

// ForgotPasswordMessage is returned for every forgot-password request
const ForgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

const deliveryTimeout = 30 * time.Second

// AccountRepository is the credential store used by the orchestrator
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Save(ctx context.Context, account *models.Account) (*models.Account, error)
	RegisterFailedLogin(ctx context.Context, id string, now time.Time, threshold int, lockFor time.Duration) (*models.Account, error)
	RegisterSuccessfulLogin(ctx context.Context, id string, now time.Time) (*models.Account, error)
	SetPasswordResetToken(ctx context.Context, id, tokenHash string, expires time.Time) (*models.Account, error)
	ClearPasswordResetToken(ctx context.Context, id, tokenHash string) (bool, error)
	RedeemPasswordResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*models.Account, error)
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
	VerifyDummy(plaintext string) bool
}

// SignupInput carries the fields of a new account
type SignupInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// AuthDependencies wires the collaborators of AuthService
type AuthDependencies struct {
	Repo        AccountRepository
	Hasher      PasswordHasher
	Tokens      *auth.TokenManager
	Lockout     *LockoutTracker
	Resets      *PasswordResetManager
	Timing      *auth.TimingDelay
	Logger      *slog.Logger
	AuditLogger *pkglogger.AuditLogger
	Now         func() time.Time
}

// AuthService composes credential checks, lockout, session tokens and
// password reset into the operations clients call.
type AuthService struct {
	repo        AccountRepository
	hasher      PasswordHasher
	tokens      *auth.TokenManager
	lockout     *LockoutTracker
	resets      *PasswordResetManager
	timing      *auth.TimingDelay
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time

	deliveries sync.WaitGroup
}

// NewAuthService creates a new AuthService
func NewAuthService(deps AuthDependencies) *AuthService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		repo:        deps.Repo,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		lockout:     deps.Lockout,
		resets:      deps.Resets,
		timing:      deps.Timing,
		logger:      deps.Logger,
		auditLogger: deps.AuditLogger,
		now:         now,
	}
}

// Signup creates an account with role user and signs it in.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*models.AuthResult, error) {
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	email := models.NormalizeEmail(input.Email)
	if firstName == "" || lastName == "" || email == "" {
		return nil, models.ValidationError("first name, last name and email are required")
	}
	if err := validateNewPassword(input.Password); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check existing account", slog.Any("error", err))
		return nil, models.ErrInternalServer.Wrap(err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, models.ErrInternalServer.Wrap(err)
	}

	account, err := s.repo.Create(ctx, prepareNewAccount(firstName, lastName, email, hash))
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer.Wrap(err)
	}

	s.logger.Info("account created", slog.String("account_id", account.ID))
	s.auditLogger.LogAccountAction(ctx, pkglogger.EventSignup, account.ID, map[string]string{"role": string(account.Role)})

	return s.issue(account)
}

// prepareNewAccount builds the record persisted on signup
func prepareNewAccount(firstName, lastName, email, passwordHash string) *models.Account {
	return &models.Account{
		FirstName:           firstName,
		LastName:            lastName,
		Email:               email,
		PasswordHash:        passwordHash,
		Role:                models.RoleUser,
		Active:              true,
		Verified:            false,
		FailedLoginAttempts: 0,
	}
}

// Login verifies credentials. Unknown email, wrong password and a
// deactivated account all yield ErrInvalidCredentials; a locked account
// yields ErrAccountLocked even when the password is right.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	start := time.Now()
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, models.ValidationError("Please provide email and password")
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.hasher.VerifyDummy(password)
			s.timing.WaitFrom(ctx, start, false)
			s.auditLogger.LogLogin(ctx, "", email, false, string(models.ReasonInvalidCredentials))
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to load account for login", slog.Any("error", err))
		return nil, models.ErrInternalServer.Wrap(err)
	}

	if !account.Active {
		s.hasher.VerifyDummy(password)
		s.timing.WaitFrom(ctx, start, false)
		s.auditLogger.LogLogin(ctx, account.ID, email, false, string(models.ReasonAccountDeactivated))
		return nil, models.ErrInvalidCredentials
	}

	if s.lockout.IsLocked(account, s.now()) {
		s.auditLogger.LogLogin(ctx, account.ID, email, false, string(models.ReasonAccountLocked))
		return nil, models.ErrAccountLocked
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		if _, err := s.lockout.RegisterFailure(ctx, account, s.now()); err != nil {
			s.logger.Error("failed to record failed login", slog.String("account_id", account.ID), slog.Any("error", err))
		}
		s.timing.WaitFrom(ctx, start, false)
		s.auditLogger.LogLogin(ctx, account.ID, email, false, string(models.ReasonInvalidCredentials))
		return nil, models.ErrInvalidCredentials
	}

	updated, err := s.lockout.RegisterSuccess(ctx, account.ID, s.now())
	if err != nil {
		s.logger.Error("failed to record successful login", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer.Wrap(err)
	}

	s.auditLogger.LogLogin(ctx, updated.ID, email, true, "")
	return s.issue(updated)
}

// Protect verifies a session token and returns the live account it names.
func (s *AuthService) Protect(ctx context.Context, token string) (*models.Account, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug("session token rejected", slog.String("reason", string(models.ReasonOf(err))))
		return nil, err
	}

	account, err := s.repo.FindByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, auth.ErrSubjectNotFound
		}
		s.logger.Error("failed to load account for token", slog.Any("error", err))
		return nil, models.ErrInternalServer.Wrap(err)
	}

	if !account.Active {
		return nil, auth.ErrAccountDeactivated
	}

	if account.ChangedPasswordAfter(claims.IssuedTime()) {
		s.logger.Debug("session token rejected", slog.String("reason", string(models.ReasonStaleToken)),
			slog.String("account_id", account.ID))
		return nil, auth.ErrStaleToken
	}

	return account, nil
}

// RestrictTo allows account through only when its role is one of roles.
func (s *AuthService) RestrictTo(account *models.Account, roles ...models.Role) error {
	if account == nil {
		return auth.ErrMissingToken
	}
	for _, role := range roles {
		if account.Role == role {
			return nil
		}
	}
	return models.ErrForbidden
}

// ForgotPassword issues a reset token and delivers it out of band. It
// returns ForgotPasswordMessage whether or not the email exists, padded to
// the same minimum latency.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	start := time.Now()
	email = models.NormalizeEmail(email)
	if email == "" {
		return "", models.ValidationError("Please provide your email address")
	}
	defer s.timing.WaitFrom(ctx, start, false)

	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to load account for password reset", slog.Any("error", err))
		}
		return ForgotPasswordMessage, nil
	}
	if !account.Active {
		return ForgotPasswordMessage, nil
	}

	raw, saved, err := s.resets.Issue(ctx, account, s.now())
	if err != nil {
		s.logger.Error("failed to issue reset token", slog.String("account_id", account.ID), slog.Any("error", err))
		return ForgotPasswordMessage, nil
	}
	s.auditLogger.LogAccountAction(ctx, pkglogger.EventPasswordResetRequested, account.ID, nil)

	// Delivery runs detached from the request so its latency is not observable.
	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		defer cancel()
		if err := s.resets.Deliver(deliverCtx, saved, raw); err != nil {
			s.logger.Error("password reset delivery failed, token cleared",
				slog.String("account_id", saved.ID),
				slog.Any("error", err))
		}
	}()

	return ForgotPasswordMessage, nil
}

// ResetPassword redeems a reset token, sets the new password and signs the
// account in.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) (*models.AuthResult, error) {
	if rawToken == "" {
		return nil, models.ErrResetTokenInvalid
	}
	if err := validateNewPassword(newPassword); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, models.ErrInternalServer.Wrap(err)
	}

	account, err := s.resets.Redeem(ctx, rawToken, s.now(), hash)
	if err != nil {
		if errors.Is(err, models.ErrResetTokenInvalid) {
			return nil, err
		}
		s.logger.Error("failed to redeem reset token", slog.Any("error", err))
		return nil, models.ErrInternalServer.Wrap(err)
	}

	s.auditLogger.LogAccountAction(ctx, pkglogger.EventPasswordResetCompleted, account.ID, nil)
	return s.issue(account)
}

// UpdatePassword changes the password of a signed-in account after checking
// the current one. The new password must differ from the current one.
func (s *AuthService) UpdatePassword(ctx context.Context, accountID, currentPassword, newPassword string) (*models.AuthResult, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrInternalServer.Wrap(err)
	}

	if !s.hasher.Verify(currentPassword, account.PasswordHash) {
		s.auditLogger.LogPasswordChange(ctx, account.ID, false, string(models.ReasonWrongPassword))
		return nil, models.ErrWrongPassword
	}
	if newPassword == currentPassword {
		return nil, models.ErrPasswordReused
	}
	if err := validateNewPassword(newPassword); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, models.ErrInternalServer.Wrap(err)
	}

	account.ChangePassword(hash, s.now())
	saved, err := s.repo.Save(ctx, account)
	if err != nil {
		s.logger.Error("failed to save new password", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer.Wrap(err)
	}

	s.auditLogger.LogPasswordChange(ctx, saved.ID, true, "")
	return s.issue(saved)
}

// GetAccount loads an account by id.
func (s *AuthService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, models.ErrInternalServer.Wrap(err)
	}
	return account, nil
}

// EnsureAdmin creates an admin account for email unless one exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = models.NormalizeEmail(email)
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	if err := validateNewPassword(password); err != nil {
		return fmt.Errorf("admin password rejected: %w", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	admin := prepareNewAccount("System", "Administrator", email, hash)
	admin.Role = models.RoleAdmin
	admin.Verified = true
	created, err := s.repo.Create(ctx, admin)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	s.logger.Info("admin account created", slog.String("account_id", created.ID))
	return nil
}

// Drain waits for in-flight reset deliveries or until ctx is done.
func (s *AuthService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.deliveries.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AuthService) issue(account *models.Account) (*models.AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(account.ID)
	if err != nil {
		s.logger.Error("failed to issue session token", slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer.Wrap(err)
	}
	return &models.AuthResult{Account: account, Token: token, ExpiresAt: expiresAt}, nil
}

func validateNewPassword(password string) error {
	if err := pkgauth.ValidatePassword(password); err != nil {
		return models.ValidationError(err.Error()).WithReason(models.ReasonWeakPassword)
	}
	return nil
}
