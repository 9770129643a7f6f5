package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/voicetracker")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 12, cfg.Forecast.DefaultMonths)
	assert.Equal(t, 36, cfg.Forecast.MaxMonths)
	assert.Equal(t, "0 2 1 * *", cfg.Generation.Schedule)
	assert.Equal(t, 4, cfg.Generation.Concurrency)
	assert.True(t, cfg.Generation.OnStartup)
	assert.Equal(t, 120, cfg.RateLimit.PerMinute)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.True(t, cfg.MetricsEnabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/voicetracker")
	t.Setenv("FORECAST_DEFAULT_MONTHS", "6")
	t.Setenv("GENERATION_SCHEDULE", "*/5 * * * *")
	t.Setenv("GENERATION_ON_STARTUP", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Forecast.DefaultMonths)
	assert.Equal(t, "*/5 * * * *", cfg.Generation.Schedule)
	assert.False(t, cfg.Generation.OnStartup)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric horizon", "FORECAST_MAX_MONTHS", "many"},
		{"default above max", "FORECAST_DEFAULT_MONTHS", "48"},
		{"bad schedule", "GENERATION_SCHEDULE", "every monday"},
		{"zero concurrency", "GENERATION_CONCURRENCY", "0"},
		{"bad bool", "METRICS_ENABLED", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/voicetracker")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.EqualError(t, err, "DATABASE_URL is required")
}

func TestRequireAuth(t *testing.T) {
	cfg := &Config{}
	assert.EqualError(t, cfg.RequireAuth(), "AUTH0_DOMAIN is required")

	cfg.Auth0Domain = "tenant.auth0.com"
	assert.EqualError(t, cfg.RequireAuth(), "AUTH0_AUDIENCE is required")

	cfg.Auth0Audience = "https://api.voicetracker.app"
	assert.NoError(t, cfg.RequireAuth())
}
