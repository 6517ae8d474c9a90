package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/erpauth/internal/auth"
	"github.com/BradenHooton/erpauth/internal/middleware"
	"github.com/BradenHooton/erpauth/internal/models"
	"github.com/BradenHooton/erpauth/internal/services"
	pkghttp "github.com/BradenHooton/erpauth/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Signup(ctx context.Context, input services.SignupInput) (*models.AuthResult, error)
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, rawToken, newPassword string) (*models.AuthResult, error)
	UpdatePassword(ctx context.Context, accountID, currentPassword, newPassword string) (*models.AuthResult, error)
}

// CSRFTokenIssuer issues and revokes anti-forgery tokens per client identity
type CSRFTokenIssuer interface {
	GenerateToken(ctx context.Context, identity string) (string, time.Time, error)
	RevokeToken(ctx context.Context, identity string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthServiceInterface
	csrf         CSRFTokenIssuer
	cookieConfig auth.CookieConfig
	ipConfig     *pkghttp.IPConfig
	logger       *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, csrf CSRFTokenIssuer, cookieConfig auth.CookieConfig, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:      service,
		csrf:         csrf,
		cookieConfig: cookieConfig,
		ipConfig:     ipConfig,
		logger:       logger,
	}
}

// Request DTOs

// SignupRequest represents the request body for signup
type SignupRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest represents the request body for a reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the request body for redeeming a reset token
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// UpdatePasswordRequest represents the request body for changing a password
type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"password_current" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

// MessageResponse is a status plus human-readable message
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AccountEnvelope wraps a single account
type AccountEnvelope struct {
	Status string             `json:"status"`
	Data   models.AccountData `json:"data"`
}

// CSRFTokenResponse carries a freshly issued anti-forgery token
type CSRFTokenResponse struct {
	Status    string    `json:"status"`
	CSRFToken string    `json:"csrf_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// decodeAndValidate reads a JSON body into req and validates it
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteAppError(w, err)
		return false
	}
	return true
}

// writeSession sets the session cookie and renders the auth result
func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, result *models.AuthResult) {
	auth.SetSessionCookie(w, result.Token, result.ExpiresAt, h.cookieConfig)
	pkghttp.WriteJSON(w, status, result.ToResponse())
}

// Signup handles POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.Signup(r.Context(), services.SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		pkghttp.WriteAppError(w, err)
		return
	}

	h.writeSession(w, http.StatusCreated, result)
}

// Login handles POST /login. Every credential failure renders the same body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		pkghttp.WriteBadRequest(w, "Please provide email and password")
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		pkghttp.WriteAppError(w, err)
		return
	}

	h.writeSession(w, http.StatusOK, result)
}

// Logout handles POST /logout by clearing the cookie and the client's CSRF token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookieConfig)

	identity := pkghttp.ClientFingerprint(r, h.ipConfig)
	if err := h.csrf.RevokeToken(r.Context(), identity); err != nil {
		h.logger.Warn("failed to revoke csrf token on logout", slog.Any("error", err))
	}
	w.Header().Del(middleware.CSRFHeader)

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Status: "success", Message: "Logged out"})
}

// ForgotPassword handles POST /forgotPassword. The response never depends on
// whether the email is registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	message, err := h.service.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		pkghttp.WriteAppError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Status: "success", Message: message})
}

// ResetPassword handles PATCH /resetPassword/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.ResetPassword(r.Context(), token, req.Password)
	if err != nil {
		pkghttp.WriteAppError(w, err)
		return
	}

	h.writeSession(w, http.StatusOK, result)
}

// UpdateMyPassword handles PATCH /updateMyPassword for the signed-in account
func (h *AuthHandler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccountFromContext(r)
	if account == nil {
		pkghttp.WriteAppError(w, auth.ErrMissingToken)
		return
	}

	var req UpdatePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.UpdatePassword(r.Context(), account.ID, req.PasswordCurrent, req.Password)
	if err != nil {
		pkghttp.WriteAppError(w, err)
		return
	}

	h.writeSession(w, http.StatusOK, result)
}

// Me handles GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	account := auth.GetAccountFromContext(r)
	if account == nil {
		pkghttp.WriteAppError(w, auth.ErrMissingToken)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, AccountEnvelope{
		Status: "success",
		Data:   models.AccountData{Account: account.ToResponse()},
	})
}

// CSRFToken handles GET /csrf-token. The token is returned in the body and
// in the X-CSRF-Token header.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	identity := pkghttp.ClientFingerprint(r, h.ipConfig)
	token, expiresAt, err := h.csrf.GenerateToken(r.Context(), identity)
	if err != nil {
		h.logger.Error("failed to issue csrf token", slog.Any("error", err))
		pkghttp.WriteAppError(w, err)
		return
	}

	w.Header().Set(middleware.CSRFHeader, token)
	pkghttp.WriteJSON(w, http.StatusOK, CSRFTokenResponse{
		Status:    "success",
		CSRFToken: token,
		ExpiresAt: expiresAt,
	})
}
