package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/erpauth/internal/models"
	"github.com/joho/godotenv"
)

const (
	minJWTSecretLength = 32
	minBcryptCost      = 12

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
	CacheDriverMemory   = "memory"
	CacheDriverRedis    = "redis"
	EmailProviderSES    = "ses"
	EmailProviderLog    = "log"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Security SecurityConfig
	Cache    CacheConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Driver            string
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	JWTExpiresIn      time.Duration
	JWTIssuer         string
	JWTAudience       string
	BcryptCost        int
	LockoutThreshold  int
	LockoutDuration   time.Duration
	ResetTokenTTL     time.Duration
	ResetURLBase      string
	TimingFloor       time.Duration
	CleanupInterval   time.Duration
	AdminEmail        string
	AdminPassword     string
}

type SecurityConfig struct {
	CSRFTokenTTL             time.Duration
	RateLimitMaxAttempts     int
	RateLimitWindow          time.Duration
	RateLimitBaseDelay       time.Duration
	RateLimitMaxDelay        time.Duration
	GlobalRateLimitPerMinute int
	TrustedProxies           []string
	CookieSecure             bool
	CookieDomain             string
}

type CacheConfig struct {
	Driver    string
	RedisURL  string
	KeyPrefix string
}

type EmailConfig struct {
	Provider  string
	From      string
	AWSRegion string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: databaseFromEnv(),
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 45*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 40*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", ""),
			JWTExpiresIn:     getEnvAsDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
			JWTIssuer:        getEnv("JWT_ISSUER", "erpauth"),
			JWTAudience:      getEnv("JWT_AUDIENCE", "erp-clients"),
			BcryptCost:       getEnvAsInt("BCRYPT_COST", minBcryptCost),
			LockoutThreshold: getEnvAsInt("LOCKOUT_THRESHOLD", 5),
			LockoutDuration:  getEnvAsDuration("LOCKOUT_DURATION", 2*time.Hour),
			ResetTokenTTL:    getEnvAsDuration("RESET_TOKEN_TTL", 10*time.Minute),
			ResetURLBase:     strings.TrimRight(getEnv("RESET_URL_BASE", "http://localhost:3000"), "/"),
			TimingFloor:      getEnvAsDuration("TIMING_FLOOR", 250*time.Millisecond),
			CleanupInterval:  getEnvAsDuration("CLEANUP_INTERVAL", 15*time.Minute),
			AdminEmail:       getEnv("ADMIN_EMAIL", ""),
			AdminPassword:    getEnv("ADMIN_PASSWORD", ""),
		},
		Security: SecurityConfig{
			CSRFTokenTTL:             getEnvAsDuration("CSRF_TOKEN_TTL", time.Hour),
			RateLimitMaxAttempts:     getEnvAsInt("RATE_LIMIT_MAX_ATTEMPTS", 5),
			RateLimitWindow:          getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			RateLimitBaseDelay:       getEnvAsDuration("RATE_LIMIT_BASE_DELAY", 500*time.Millisecond),
			RateLimitMaxDelay:        getEnvAsDuration("RATE_LIMIT_MAX_DELAY", 30*time.Second),
			GlobalRateLimitPerMinute: getEnvAsInt("GLOBAL_RATE_LIMIT_PER_MINUTE", 300),
			TrustedProxies:           parseList(getEnv("TRUSTED_PROXIES", "")),
			CookieSecure:             getEnvAsBool("COOKIE_SECURE", env == "production"),
			CookieDomain:             getEnv("COOKIE_DOMAIN", ""),
		},
		Cache: CacheConfig{
			Driver:    strings.ToLower(getEnv("CACHE_DRIVER", CacheDriverMemory)),
			RedisURL:  getEnv("REDIS_URL", ""),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "erpauth"),
		},
		Email: EmailConfig{
			Provider:  strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderLog)),
			From:      getEnv("EMAIL_FROM", ""),
			AWSRegion: getEnv("AWS_REGION", "us-east-1"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the DB_* settings. Migrations need nothing else.
func LoadDatabase() DatabaseConfig {
	_ = godotenv.Load()
	return databaseFromEnv()
}

func databaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Driver:            strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              getEnvAsInt("DB_PORT", 5432),
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", ""),
		Name:              getEnv("DB_NAME", "erpauth"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
		MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
		MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
		HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
	}
}

// Validate checks every setting that must abort startup when wrong.
func (c *Config) Validate() error {
	if err := validateJWTSecret(c.Auth.JWTSecret); err != nil {
		return err
	}

	switch c.Database.Driver {
	case StoreDriverPostgres:
		if c.Database.Password == "" {
			return models.ConfigurationError("DB_PASSWORD is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return models.ConfigurationError("unknown STORE_DRIVER %q", c.Database.Driver)
	}

	switch c.Cache.Driver {
	case CacheDriverRedis:
		if c.Cache.RedisURL == "" {
			return models.ConfigurationError("REDIS_URL is required when CACHE_DRIVER=%s", CacheDriverRedis)
		}
	case CacheDriverMemory:
	default:
		return models.ConfigurationError("unknown CACHE_DRIVER %q", c.Cache.Driver)
	}

	switch c.Email.Provider {
	case EmailProviderSES:
		if c.Email.From == "" {
			return models.ConfigurationError("EMAIL_FROM is required when EMAIL_PROVIDER=%s", EmailProviderSES)
		}
	case EmailProviderLog:
	default:
		return models.ConfigurationError("unknown EMAIL_PROVIDER %q", c.Email.Provider)
	}

	if c.Auth.BcryptCost < minBcryptCost {
		return models.ConfigurationError("BCRYPT_COST must be at least %d (got %d)", minBcryptCost, c.Auth.BcryptCost)
	}

	positiveInts := map[string]int{
		"LOCKOUT_THRESHOLD":            c.Auth.LockoutThreshold,
		"RATE_LIMIT_MAX_ATTEMPTS":      c.Security.RateLimitMaxAttempts,
		"GLOBAL_RATE_LIMIT_PER_MINUTE": c.Security.GlobalRateLimitPerMinute,
	}
	for name, v := range positiveInts {
		if v <= 0 {
			return models.ConfigurationError("%s must be positive (got %d)", name, v)
		}
	}

	positiveDurations := map[string]time.Duration{
		"JWT_EXPIRES_IN":        c.Auth.JWTExpiresIn,
		"LOCKOUT_DURATION":      c.Auth.LockoutDuration,
		"RESET_TOKEN_TTL":       c.Auth.ResetTokenTTL,
		"CLEANUP_INTERVAL":      c.Auth.CleanupInterval,
		"CSRF_TOKEN_TTL":        c.Security.CSRFTokenTTL,
		"RATE_LIMIT_WINDOW":     c.Security.RateLimitWindow,
		"RATE_LIMIT_BASE_DELAY": c.Security.RateLimitBaseDelay,
		"RATE_LIMIT_MAX_DELAY":  c.Security.RateLimitMaxDelay,
	}
	for name, d := range positiveDurations {
		if d <= 0 {
			return models.ConfigurationError("%s must be positive (got %s)", name, d)
		}
	}

	if c.Security.RateLimitMaxDelay < c.Security.RateLimitBaseDelay {
		return models.ConfigurationError("RATE_LIMIT_MAX_DELAY must not be below RATE_LIMIT_BASE_DELAY")
	}

	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret string) error {
	if secret == "" {
		return models.ConfigurationError("JWT_SECRET is required")
	}

	if len(secret) < minJWTSecretLength {
		return models.ConfigurationError("JWT_SECRET must be at least %d bytes (got %d)", minJWTSecretLength, len(secret))
	}

	// Reject common weak values, including ones padded with digits or
	// repeated up to the length limit
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if strings.Trim(secretLower, "0123456789!-_") == weak || secretLower == strings.Repeat(weak, len(secretLower)/len(weak)) {
			return models.ConfigurationError("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return parseList(getEnv("ALLOWED_ORIGINS", ""))
	}

	if origins := parseList(getEnv("ALLOWED_ORIGINS", "")); len(origins) > 0 {
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
