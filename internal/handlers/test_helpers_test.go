package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/erpauth/internal/auth"
	"github.com/BradenHooton/erpauth/internal/models"
	"github.com/BradenHooton/erpauth/internal/services"
	pkghttp "github.com/BradenHooton/erpauth/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:51000"
	req.Header.Set("User-Agent", "erp-client/1.0")
	return req
}

// WithAccountContext adds an authenticated account to the request context
func WithAccountContext(req *http.Request, account *models.Account) *http.Request {
	ctx := context.WithValue(req.Context(), auth.AccountContextKey, account)
	return req.WithContext(ctx)
}

// WithURLParam sets a chi route parameter on the request
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// NewTestAccount builds an account as the store would return it
func NewTestAccount(id, email string, role models.Role) *models.Account {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	return &models.Account{
		ID:           id,
		FirstName:    "Grace",
		LastName:     "Hopper",
		Email:        email,
		PasswordHash: "$2a$12$abcdefghijklmnopqrstuv",
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestResult wraps account in a session result
func NewTestResult(account *models.Account) *models.AuthResult {
	return &models.AuthResult{
		Account:   account,
		Token:     "session-token-123",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	SignupFunc         func(ctx context.Context, input services.SignupInput) (*models.AuthResult, error)
	LoginFunc          func(ctx context.Context, email, password string) (*models.AuthResult, error)
	ForgotPasswordFunc func(ctx context.Context, email string) (string, error)
	ResetPasswordFunc  func(ctx context.Context, rawToken, newPassword string) (*models.AuthResult, error)
	UpdatePasswordFunc func(ctx context.Context, accountID, currentPassword, newPassword string) (*models.AuthResult, error)
}

func (m *MockAuthService) Signup(ctx context.Context, input services.SignupInput) (*models.AuthResult, error) {
	if m.SignupFunc == nil {
		return nil, models.ErrConflict
	}
	return m.SignupFunc(ctx, input)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	if m.ForgotPasswordFunc == nil {
		return services.ForgotPasswordMessage, nil
	}
	return m.ForgotPasswordFunc(ctx, email)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) (*models.AuthResult, error) {
	if m.ResetPasswordFunc == nil {
		return nil, models.ErrResetTokenInvalid
	}
	return m.ResetPasswordFunc(ctx, rawToken, newPassword)
}

func (m *MockAuthService) UpdatePassword(ctx context.Context, accountID, currentPassword, newPassword string) (*models.AuthResult, error) {
	if m.UpdatePasswordFunc == nil {
		return nil, models.ErrWrongPassword
	}
	return m.UpdatePasswordFunc(ctx, accountID, currentPassword, newPassword)
}

// MockCSRFIssuer implements CSRFTokenIssuer for testing
type MockCSRFIssuer struct {
	GenerateTokenFunc func(ctx context.Context, identity string) (string, time.Time, error)
	Revoked           []string
}

func (m *MockCSRFIssuer) GenerateToken(ctx context.Context, identity string) (string, time.Time, error) {
	if m.GenerateTokenFunc == nil {
		return "csrf-token-abc", time.Now().Add(time.Hour), nil
	}
	return m.GenerateTokenFunc(ctx, identity)
}

func (m *MockCSRFIssuer) RevokeToken(ctx context.Context, identity string) error {
	m.Revoked = append(m.Revoked, identity)
	return nil
}

// MockAccountLookup implements AccountLookup for testing
type MockAccountLookup struct {
	GetAccountFunc func(ctx context.Context, id string) (*models.Account, error)
}

func (m *MockAccountLookup) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	if m.GetAccountFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetAccountFunc(ctx, id)
}

// NewTestAuthHandler wires an AuthHandler around the given mocks
func NewTestAuthHandler(service AuthServiceInterface, csrf CSRFTokenIssuer) *AuthHandler {
	return NewAuthHandler(service, csrf, auth.CookieConfig{Secure: true, SameSite: "strict"}, nil,
		slog.New(slog.NewJSONHandler(io.Discard, nil)))
}
