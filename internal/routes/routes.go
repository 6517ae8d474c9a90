package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/erpauth/internal/auth"
	"github.com/BradenHooton/erpauth/internal/handlers"
	"github.com/BradenHooton/erpauth/internal/middleware"
	"github.com/BradenHooton/erpauth/internal/models"
	pkghttp "github.com/BradenHooton/erpauth/pkg/http"
	pkglogger "github.com/BradenHooton/erpauth/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// BasePath is where the account auth routes are mounted
const BasePath = "/api/v1/users"

// Gatekeeper resolves session tokens and checks roles
type Gatekeeper interface {
	auth.Protector
	auth.Authorizer
}

// Dependencies holds everything the routes need
type Dependencies struct {
	AuthHandler  *handlers.AuthHandler
	AdminHandler *handlers.AdminHandler
	Gatekeeper   Gatekeeper
	CSRF         *auth.CSRFTokenManager
	RateLimiter  middleware.RateLimiter
	IPConfig     *pkghttp.IPConfig
	Logger       *slog.Logger
	AuditLogger  *pkglogger.AuditLogger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	limited := func(scope string) func(http.Handler) http.Handler {
		return middleware.ProgressiveRateLimit(deps.RateLimiter, middleware.ProgressiveRateLimitConfig{
			Scope:       scope,
			IPConfig:    deps.IPConfig,
			Logger:      deps.Logger,
			AuditLogger: deps.AuditLogger,
		})
	}

	router.Route(BasePath, func(r chi.Router) {
		// Signup and login start a session, so there is no token to present yet.
		r.Use(middleware.CSRFProtection(deps.CSRF, middleware.CSRFConfig{
			IPConfig:    deps.IPConfig,
			ExemptPaths: []string{BasePath + "/signup", BasePath + "/login"},
			Logger:      deps.Logger,
			AuditLogger: deps.AuditLogger,
		}))

		// Public routes
		r.With(limited("signup")).Post("/signup", deps.AuthHandler.Signup)
		r.With(limited("login")).Post("/login", deps.AuthHandler.Login)
		r.With(limited("forgot_password")).Post("/forgotPassword", deps.AuthHandler.ForgotPassword)
		r.With(limited("reset_password")).Patch("/resetPassword/{token}", deps.AuthHandler.ResetPassword)
		r.Get("/csrf-token", deps.AuthHandler.CSRFToken)
		r.Post("/logout", deps.AuthHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(deps.Gatekeeper))

			r.Get("/me", deps.AuthHandler.Me)
			r.With(limited("update_password")).Patch("/updateMyPassword", deps.AuthHandler.UpdateMyPassword)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(deps.Gatekeeper, models.RoleAdmin))
				r.Get("/admin/accounts/{id}", deps.AdminHandler.GetAccount)
			})
		})
	})
}
