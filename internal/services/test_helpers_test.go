package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/erpauth/internal/auth"
	"github.com/BradenHooton/erpauth/internal/kvstore"
	"github.com/BradenHooton/erpauth/internal/models"
	"github.com/BradenHooton/erpauth/internal/repositories"
	pkglogger "github.com/BradenHooton/erpauth/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testJWTSecret = "test-secret-0123456789-abcdefghijkl"

// FakeClock is a controllable time source
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeHasher is a fast reversible stand-in for bcrypt
type fakeHasher struct{}

func (fakeHasher) Hash(plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

func (fakeHasher) Verify(plaintext, hash string) bool {
	return strings.HasPrefix(hash, "hashed:") && hash == "hashed:"+plaintext
}

func (fakeHasher) VerifyDummy(string) bool {
	return false
}

// MockMailer implements Mailer for testing
type MockMailer struct {
	mu              sync.Mutex
	SendMessageFunc func(ctx context.Context, to, subject, body string) error
	Sent            []SentMessage
}

type SentMessage struct {
	To, Subject, Body string
}

func (m *MockMailer) SendMessage(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, SentMessage{To: to, Subject: subject, Body: body})
	m.mu.Unlock()
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, to, subject, body)
	}
	return nil
}

func (m *MockMailer) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}

// MockAccountRepository implements AccountRepository for testing. Unset
// functions fall through to Base when provided.
type MockAccountRepository struct {
	Base                         AccountRepository
	FindByEmailFunc              func(ctx context.Context, email string) (*models.Account, error)
	FindByIDFunc                 func(ctx context.Context, id string) (*models.Account, error)
	CreateFunc                   func(ctx context.Context, account *models.Account) (*models.Account, error)
	SaveFunc                     func(ctx context.Context, account *models.Account) (*models.Account, error)
	RegisterFailedLoginFunc      func(ctx context.Context, id string, now time.Time, threshold int, lockFor time.Duration) (*models.Account, error)
	RegisterSuccessfulLoginFunc  func(ctx context.Context, id string, now time.Time) (*models.Account, error)
	SetPasswordResetTokenFunc    func(ctx context.Context, id, tokenHash string, expires time.Time) (*models.Account, error)
	ClearPasswordResetTokenFunc  func(ctx context.Context, id, tokenHash string) (bool, error)
	RedeemPasswordResetTokenFunc func(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*models.Account, error)
	ClearExpiredResetTokensFunc  func(ctx context.Context, now time.Time) (int64, error)
}

func (m *MockAccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, email)
	}
	if m.Base != nil {
		return m.Base.FindByEmail(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	if m.Base != nil {
		return m.Base.FindByID(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	if m.Base != nil {
		return m.Base.Create(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) Save(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, account)
	}
	if m.Base != nil {
		return m.Base.Save(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) RegisterFailedLogin(ctx context.Context, id string, now time.Time, threshold int, lockFor time.Duration) (*models.Account, error) {
	if m.RegisterFailedLoginFunc != nil {
		return m.RegisterFailedLoginFunc(ctx, id, now, threshold, lockFor)
	}
	if m.Base != nil {
		return m.Base.RegisterFailedLogin(ctx, id, now, threshold, lockFor)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) RegisterSuccessfulLogin(ctx context.Context, id string, now time.Time) (*models.Account, error) {
	if m.RegisterSuccessfulLoginFunc != nil {
		return m.RegisterSuccessfulLoginFunc(ctx, id, now)
	}
	if m.Base != nil {
		return m.Base.RegisterSuccessfulLogin(ctx, id, now)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expires time.Time) (*models.Account, error) {
	if m.SetPasswordResetTokenFunc != nil {
		return m.SetPasswordResetTokenFunc(ctx, id, tokenHash, expires)
	}
	if m.Base != nil {
		return m.Base.SetPasswordResetToken(ctx, id, tokenHash, expires)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) ClearPasswordResetToken(ctx context.Context, id, tokenHash string) (bool, error) {
	if m.ClearPasswordResetTokenFunc != nil {
		return m.ClearPasswordResetTokenFunc(ctx, id, tokenHash)
	}
	if m.Base != nil {
		return m.Base.ClearPasswordResetToken(ctx, id, tokenHash)
	}
	return false, nil
}

func (m *MockAccountRepository) RedeemPasswordResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash string) (*models.Account, error) {
	if m.RedeemPasswordResetTokenFunc != nil {
		return m.RedeemPasswordResetTokenFunc(ctx, tokenHash, now, newPasswordHash)
	}
	if m.Base != nil {
		return m.Base.RedeemPasswordResetToken(ctx, tokenHash, now, newPasswordHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	if m.ClearExpiredResetTokensFunc != nil {
		return m.ClearExpiredResetTokensFunc(ctx, now)
	}
	if m.Base != nil {
		return m.Base.ClearExpiredResetTokens(ctx, now)
	}
	return 0, nil
}

// testEnv bundles an AuthService with its collaborators
type testEnv struct {
	service *AuthService
	repo    *MockAccountRepository
	memory  *repositories.MemoryAccountRepository
	mailer  *MockMailer
	clock   *FakeClock
	tokens  *auth.TokenManager
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// newTestEnv builds an AuthService over an in-memory store with a fake
// clock, a fast hasher and no timing padding.
func newTestEnv() *testEnv {
	clock := NewFakeClock(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	memory := repositories.NewMemoryAccountRepository().WithClock(clock.Now)
	repo := &MockAccountRepository{Base: memory}
	mailer := &MockMailer{}
	logger := newTestLogger()
	audit := pkglogger.NewAuditLogger(logger)

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    testJWTSecret,
		ExpiresIn: 7 * 24 * time.Hour,
		Issuer:    "erpauth",
		Audience:  "erp-clients",
	})
	if err != nil {
		panic(err)
	}
	tokens.WithClock(clock.Now)

	service := NewAuthService(AuthDependencies{
		Repo:        repo,
		Hasher:      fakeHasher{},
		Tokens:      tokens,
		Lockout:     NewLockoutTracker(repo, LockoutPolicy{Threshold: 5, Duration: 2 * time.Hour}, logger, audit),
		Resets:      NewPasswordResetManager(repo, mailer, PasswordResetConfig{TTL: 10 * time.Minute, URLBase: "https://erp.example.com"}, logger),
		Logger:      logger,
		AuditLogger: audit,
		Now:         clock.Now,
	})

	return &testEnv{
		service: service,
		repo:    repo,
		memory:  memory,
		mailer:  mailer,
		clock:   clock,
		tokens:  tokens,
	}
}

const testPassword = "Str0ng!Passw0rd"

// signupTestAccount creates an active account through the service
func (e *testEnv) signupTestAccount(email string) *models.AuthResult {
	result, err := e.service.Signup(context.Background(), SignupInput{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     email,
		Password:  testPassword,
	})
	if err != nil {
		panic(err)
	}
	return result
}

// newMiniredisStore returns a RedisStore backed by an in-process server
func newMiniredisStore(t *testing.T) (*kvstore.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return kvstore.NewRedisStore(client, ""), mr
}
