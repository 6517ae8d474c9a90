package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/erpauth/internal/auth"
	"github.com/BradenHooton/erpauth/internal/background"
	"github.com/BradenHooton/erpauth/internal/config"
	"github.com/BradenHooton/erpauth/internal/database"
	"github.com/BradenHooton/erpauth/internal/handlers"
	"github.com/BradenHooton/erpauth/internal/kvstore"
	middlewareCustom "github.com/BradenHooton/erpauth/internal/middleware"
	"github.com/BradenHooton/erpauth/internal/repositories"
	"github.com/BradenHooton/erpauth/internal/routes"
	"github.com/BradenHooton/erpauth/internal/services"
	pkgauth "github.com/BradenHooton/erpauth/pkg/auth"
	pkghttp "github.com/BradenHooton/erpauth/pkg/http"
	pkglogger "github.com/BradenHooton/erpauth/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// accountStore is what the service, the admin lookup and the cleanup job
// need from either credential store backend.
type accountStore interface {
	services.AccountRepository
	background.ResetTokenCleaner
}

type healthCheck func(ctx context.Context) error

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Database.Driver),
		slog.String("cache", cfg.Cache.Driver),
		slog.String("email", cfg.Email.Provider))

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer startupCancel()

	// Credential store
	var (
		accounts accountStore
		checks   = map[string]healthCheck{}
	)
	switch cfg.Database.Driver {
	case config.StoreDriverPostgres:
		db, err := database.NewConnection(startupCtx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		accounts = repositories.NewAccountRepository(db)
		checks["database"] = db.HealthCheck
	default:
		logger.Warn("using in-memory credential store; accounts are lost on restart")
		accounts = repositories.NewMemoryAccountRepository()
	}

	// CSRF and rate-limit state
	var (
		store       kvstore.Store
		memoryStore *kvstore.MemoryStore
	)
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		redisStore, err := kvstore.NewRedisStoreFromURL(startupCtx, cfg.Cache.RedisURL, cfg.Cache.KeyPrefix)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		checks["cache"] = redisStore.Ping
	default:
		memoryStore = kvstore.NewMemoryStore()
		store = memoryStore
	}

	// Email delivery
	var mailer services.Mailer
	switch cfg.Email.Provider {
	case config.EmailProviderSES:
		sesMailer, err := services.NewSESMailer(startupCtx, cfg.Email.AWSRegion, cfg.Email.From, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		mailer = sesMailer
	default:
		mailer = services.NewLogMailer(logger, cfg.Server.Env)
	}

	// Initialize security primitives
	hasher, err := pkgauth.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		logger.Error("invalid password hashing configuration", slog.Any("error", err))
		os.Exit(1)
	}

	tokenManager, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    cfg.Auth.JWTSecret,
		ExpiresIn: cfg.Auth.JWTExpiresIn,
		Issuer:    cfg.Auth.JWTIssuer,
		Audience:  cfg.Auth.JWTAudience,
	})
	if err != nil {
		logger.Error("invalid session token configuration", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		Floor:  cfg.Auth.TimingFloor,
		Jitter: cfg.Auth.TimingFloor / 2,
	})

	lockout := services.NewLockoutTracker(accounts, services.LockoutPolicy{
		Threshold: cfg.Auth.LockoutThreshold,
		Duration:  cfg.Auth.LockoutDuration,
	}, logger, auditLogger)

	resets := services.NewPasswordResetManager(accounts, mailer, services.PasswordResetConfig{
		TTL:     cfg.Auth.ResetTokenTTL,
		URLBase: cfg.Auth.ResetURLBase,
	}, logger)

	// Initialize services
	authService := services.NewAuthService(services.AuthDependencies{
		Repo:        accounts,
		Hasher:      hasher,
		Tokens:      tokenManager,
		Lockout:     lockout,
		Resets:      resets,
		Timing:      timingDelay,
		Logger:      logger,
		AuditLogger: auditLogger,
	})

	csrfManager := auth.NewCSRFTokenManager(store, cfg.Security.CSRFTokenTTL)

	rateLimitService := services.NewRateLimitService(store, services.RateLimitConfig{
		MaxAttempts: cfg.Security.RateLimitMaxAttempts,
		Window:      cfg.Security.RateLimitWindow,
		BaseDelay:   cfg.Security.RateLimitBaseDelay,
		MaxDelay:    cfg.Security.RateLimitMaxDelay,
	}, logger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Security.TrustedProxies}
	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Security.CookieDomain,
		Secure:   cfg.Security.CookieSecure,
		SameSite: "strict",
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, csrfManager, cookieConfig, ipConfig, logger)
	adminHandler := handlers.NewAdminHandler(authService)

	// Bootstrap first admin account if configured
	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		if err := authService.EnsureAdmin(startupCtx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			logger.Error("failed to ensure admin account", slog.Any("error", err))
		}
	} else {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin account creation")
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	router.Use(middlewareCustom.GlobalRateLimit(cfg.Security.GlobalRateLimitPerMinute, ipConfig))

	// Register routes
	routes.RegisterRoutes(router, routes.Dependencies{
		AuthHandler:  authHandler,
		AdminHandler: adminHandler,
		Gatekeeper:   authService,
		CSRF:         csrfManager,
		RateLimiter:  rateLimitService,
		IPConfig:     ipConfig,
		Logger:       logger,
		AuditLogger:  auditLogger,
	})

	router.Get("/health", healthHandler(checks))

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task. A nil store means entries expire on their own.
	var expiring background.ExpiringStore
	if memoryStore != nil {
		expiring = memoryStore
	}
	cleanupManager := background.NewCleanupManager(accounts, expiring, logger, cfg.Auth.CleanupInterval)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	if err := authService.Drain(shutdownCtx); err != nil {
		logger.Warn("pending reset emails abandoned", slog.Any("error", err))
	}

	cleanupCancel()
	cleanupManager.Stop()

	logger.Info("server stopped gracefully")
}

func healthHandler(checks map[string]healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		body := map[string]string{"status": "healthy"}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				slog.Warn("health check failed", slog.String("component", name), slog.Any("error", err))
				body[name] = "down"
				body["status"] = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "up"
		}
		pkghttp.WriteJSON(w, status, body)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
