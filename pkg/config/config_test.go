package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 30*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, BackendPostgres, cfg.DataBackend)
	assert.Equal(t, 10000.0, cfg.DefaultMonthlyBudget)
	assert.False(t, cfg.AllowOwnerStatusPatch)
	assert.Equal(t, 100, cfg.MaxPageSize)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Contains(t, cfg.DatabaseDSN(), "dbname=expensehub")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TIMEZONE", "Europe/Rome")
	t.Setenv("DATA_BACKEND", "MEMORY")
	t.Setenv("CACHE_BACKEND", "none")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("ALLOW_OWNER_STATUS_PATCH", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.DataBackend)
	assert.Equal(t, BackendNone, cfg.CacheBackend)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.AllowOwnerStatusPatch)
	assert.Equal(t, "Europe/Rome", cfg.Location.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("TOKEN_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "TOKEN_TTL")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment:          "development",
			ServerPort:           8080,
			TokenTTL:             time.Hour,
			DataBackend:          BackendMemory,
			CacheBackend:         BackendNone,
			DefaultMonthlyBudget: 10000,
			MaxPageSize:          100,
			RateLimitWindow:      time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"production without secret", func(c *Config) { c.Environment = "production" }, "JWT_SECRET"},
		{"production with secret", func(c *Config) { c.Environment = "production"; c.JWTSecret = "s" }, ""},
		{"unknown data backend", func(c *Config) { c.DataBackend = "mongo" }, "DATA_BACKEND"},
		{"unknown cache backend", func(c *Config) { c.CacheBackend = "memcached" }, "CACHE_BACKEND"},
		{"redis without url", func(c *Config) { c.CacheBackend = BackendRedis }, "REDIS_URL"},
		{"bad port", func(c *Config) { c.ServerPort = 0 }, "SERVER_PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
