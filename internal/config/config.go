package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Auth0
	Auth0Domain   string
	Auth0Audience string

	// Server
	Port        string
	CORSOrigins []string
	Env         string

	Forecast   ForecastConfig
	Generation GenerationConfig
	RateLimit  RateLimitConfig

	MetricsEnabled bool
}

// ForecastConfig bounds the forecast horizon in months
type ForecastConfig struct {
	DefaultMonths int
	MaxMonths     int
}

// GenerationConfig drives the batch generation worker
type GenerationConfig struct {
	Schedule    string // cron expression, UTC
	Concurrency int
	OnStartup   bool
}

// RateLimitConfig holds per-owner request limits
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// Load reads configuration from environment variables. Only the database is
// required; see RequireAuth for the HTTP server.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		Auth0Domain:   getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience: getEnv("AUTH0_AUDIENCE", ""),
		Port:          getEnv("PORT", "8080"),
		CORSOrigins:   strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env:           getEnv("ENV", "development"),
	}

	var err error
	if cfg.Forecast.DefaultMonths, err = getEnvInt("FORECAST_DEFAULT_MONTHS", 12); err != nil {
		return nil, err
	}
	if cfg.Forecast.MaxMonths, err = getEnvInt("FORECAST_MAX_MONTHS", 36); err != nil {
		return nil, err
	}
	cfg.Generation.Schedule = getEnv("GENERATION_SCHEDULE", "0 2 1 * *")
	if cfg.Generation.Concurrency, err = getEnvInt("GENERATION_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.Generation.OnStartup, err = getEnvBool("GENERATION_ON_STARTUP", true); err != nil {
		return nil, err
	}
	if cfg.RateLimit.PerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Burst, err = getEnvInt("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.MetricsEnabled, err = getEnvBool("METRICS_ENABLED", true); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireAuth checks the settings only the HTTP server needs
func (c *Config) RequireAuth() error {
	if c.Auth0Domain == "" {
		return fmt.Errorf("AUTH0_DOMAIN is required")
	}
	if c.Auth0Audience == "" {
		return fmt.Errorf("AUTH0_AUDIENCE is required")
	}
	return nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Forecast.MaxMonths < 1 {
		return fmt.Errorf("FORECAST_MAX_MONTHS must be at least 1")
	}
	if c.Forecast.DefaultMonths < 1 || c.Forecast.DefaultMonths > c.Forecast.MaxMonths {
		return fmt.Errorf("FORECAST_DEFAULT_MONTHS must be between 1 and FORECAST_MAX_MONTHS (%d)", c.Forecast.MaxMonths)
	}
	if _, err := cron.ParseStandard(c.Generation.Schedule); err != nil {
		return fmt.Errorf("GENERATION_SCHEDULE is not a valid cron expression: %w", err)
	}
	if c.Generation.Concurrency < 1 {
		return fmt.Errorf("GENERATION_CONCURRENCY must be at least 1")
	}
	if c.RateLimit.PerMinute < 1 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return value, nil
}
