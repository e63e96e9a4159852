package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesight/hseai/pkg/observability"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HSEAI_POSTGRES_URL", "postgres://localhost/hseai?sslmode=disable")
	t.Setenv("HSEAI_TOKEN_SECRET", "secret")
	t.Setenv("HSEAI_PROVIDER_API_KEY", "key")
}

func TestLoadConfig_Defaults(t *testing.T) {
	validEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 90*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, observability.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "15 0 1 * *", cfg.UsageResetSchedule)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadConfig_Overrides(t *testing.T) {
	validEnv(t)
	t.Setenv("HSEAI_PORT", "3000")
	t.Setenv("HSEAI_LOG_LEVEL", "debug")
	t.Setenv("HSEAI_PROVIDER_TIMEOUT", "30s")
	t.Setenv("HSEAI_REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("HSEAI_TOKEN_SECRET", "secret")
	t.Setenv("HSEAI_PROVIDER_API_KEY", "key")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres URL")
}

func TestValidate_SamePorts(t *testing.T) {
	validEnv(t)
	t.Setenv("HSEAI_PORT", "9090")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be different")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, observability.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, observability.WarnLevel, parseLogLevel("WARNING"))
	assert.Equal(t, observability.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, observability.InfoLevel, parseLogLevel("garbage"))
}
