package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/erpauth/internal/models"
	pkghttp "github.com/BradenHooton/erpauth/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// AccountContextKey is the key for storing the authenticated account in context
	AccountContextKey contextKey = "account"
)

// Protector resolves a session token to a live account.
type Protector interface {
	Protect(ctx context.Context, token string) (*models.Account, error)
}

// Authorizer decides whether an authenticated account may proceed.
type Authorizer interface {
	RestrictTo(account *models.Account, roles ...models.Role) error
}

// ExtractToken returns the bearer token from the Authorization header, or
// failing that the session cookie.
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if token, err := GetSessionCookie(r); err == nil {
		return token
	}
	return ""
}

// AuthMiddleware verifies the session token and injects the account into context
func AuthMiddleware(p Protector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				pkghttp.WriteAppError(w, ErrMissingToken)
				return
			}

			account, err := p.Protect(r.Context(), token)
			if err != nil {
				pkghttp.WriteAppError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), AccountContextKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole enforces role-based access control. It must run after AuthMiddleware.
func RequireRole(authz Authorizer, roles ...models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := GetAccountFromContext(r)
			if account == nil {
				pkghttp.WriteAppError(w, ErrMissingToken)
				return
			}

			if err := authz.RestrictTo(account, roles...); err != nil {
				pkghttp.WriteAppError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetAccountFromContext extracts the authenticated account from request context
func GetAccountFromContext(r *http.Request) *models.Account {
	account, ok := r.Context().Value(AccountContextKey).(*models.Account)
	if !ok {
		return nil
	}
	return account
}
