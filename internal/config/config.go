// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends accepted in STORE_BACKEND.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendSupabase = "supabase"
)

// Config holds all application configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// APIKey protects /v1/*. Empty leaves the admin API unmounted.
	APIKey string

	StoreBackend     string
	DatabaseURL      string
	DatabaseMaxConns int

	// Hosted data store (PostgREST). The service role key is a privileged
	// server credential; never a user session token.
	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseRetryMax       int
	SupabaseTimeout        time.Duration

	// WebhookSigningSecret enables Standard Webhooks verification on the webhook route.
	WebhookSigningSecret string
	WebhookRateLimit     float64
	WebhookRateBurst     int
	MaxRequestBodyBytes  int64

	// Account lookup cache. Size 0 disables caching.
	AccountCacheSize int
	AccountCacheTTL  time.Duration

	// Webhook log retention (River periodic job). 0 days disables it.
	WebhookLogRetentionDays     int
	WebhookLogRetentionInterval time.Duration
	RiverWorkers                int

	OtelMetricsExporter string
	OtelTracesExporter  string

	ShutdownTimeout time.Duration
}

// RetentionEnabled reports whether the River retention job should run.
func (c *Config) RetentionEnabled() bool {
	return c.WebhookLogRetentionDays > 0
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
// Unlike getEnv, an unparsable value is an error rather than a silent default.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	return value, nil
}

func getEnvAsInt64(key string, defaultValue int64) (int64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}

	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 30s, 5m): %w", key, err)
	}

	return value, nil
}

// LoadDotEnv loads a .env file if it exists. Missing files are not logged
// (env may come from secrets or a parameter store).
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}
}

// Load reads configuration from environment variables and returns a Config struct.
// It loads .env if present. The store URL and credential for the selected backend
// are required; their absence is returned as an error and is fatal at startup.
func Load() (*Config, error) {
	LoadDotEnv()

	var errs []error

	intVar := func(key string, def int) int {
		v, err := getEnvAsInt(key, def)
		errs = append(errs, err)

		return v
	}
	durationVar := func(key string, def time.Duration) time.Duration {
		v, err := getEnvAsDuration(key, def)
		errs = append(errs, err)

		return v
	}

	rateLimit, err := getEnvAsFloat("WEBHOOK_RATE_LIMIT", 0)
	errs = append(errs, err)

	maxBody, err := getEnvAsInt64("MAX_REQUEST_BODY_BYTES", 1<<20)
	errs = append(errs, err)

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		APIKey:    os.Getenv("API_KEY"),

		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseMaxConns: intVar("DATABASE_MAX_CONNS", 0),

		SupabaseURL:            strings.TrimSuffix(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseRetryMax:       intVar("SUPABASE_RETRY_MAX", 2),
		SupabaseTimeout:        durationVar("SUPABASE_TIMEOUT", 10*time.Second),

		WebhookSigningSecret: os.Getenv("WEBHOOK_SIGNING_SECRET"),
		WebhookRateLimit:     rateLimit,
		WebhookRateBurst:     intVar("WEBHOOK_RATE_BURST", 20),
		MaxRequestBodyBytes:  maxBody,

		AccountCacheSize: intVar("ACCOUNT_CACHE_SIZE", 1024),
		AccountCacheTTL:  durationVar("ACCOUNT_CACHE_TTL", 5*time.Minute),

		WebhookLogRetentionDays:     intVar("WEBHOOK_LOG_RETENTION_DAYS", 0),
		WebhookLogRetentionInterval: durationVar("WEBHOOK_LOG_RETENTION_INTERVAL", time.Hour),
		RiverWorkers:                intVar("RIVER_WORKERS", 2),

		OtelMetricsExporter: strings.ToLower(os.Getenv("OTEL_METRICS_EXPORTER")),
		OtelTracesExporter:  strings.ToLower(os.Getenv("OTEL_TRACES_EXPORTER")),

		ShutdownTimeout: durationVar("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL environment variable is required when STORE_BACKEND=postgres")
		}
	case StoreBackendSupabase:
		if c.SupabaseURL == "" {
			return errors.New("SUPABASE_URL environment variable is required when STORE_BACKEND=supabase")
		}

		if c.SupabaseServiceRoleKey == "" {
			return errors.New("SUPABASE_SERVICE_ROLE_KEY environment variable is required when STORE_BACKEND=supabase")
		}

		if c.RetentionEnabled() {
			return errors.New("WEBHOOK_LOG_RETENTION_DAYS requires STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendPostgres, StoreBackendSupabase, c.StoreBackend)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}

	if c.WebhookRateLimit < 0 {
		return errors.New("WEBHOOK_RATE_LIMIT must not be negative")
	}

	if c.WebhookRateLimit > 0 && c.WebhookRateBurst <= 0 {
		return errors.New("WEBHOOK_RATE_BURST must be a positive integer when WEBHOOK_RATE_LIMIT is set")
	}

	if c.DatabaseMaxConns < 0 {
		return errors.New("DATABASE_MAX_CONNS must not be negative")
	}

	if c.AccountCacheSize < 0 {
		return errors.New("ACCOUNT_CACHE_SIZE must not be negative")
	}

	if c.WebhookLogRetentionDays < 0 {
		return errors.New("WEBHOOK_LOG_RETENTION_DAYS must not be negative")
	}

	if c.RetentionEnabled() && c.RiverWorkers <= 0 {
		return errors.New("RIVER_WORKERS must be a positive integer")
	}

	return nil
}
