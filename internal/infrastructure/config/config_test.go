package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("PLUGIN_DIR", "/srv/plugins/todo")
	t.Setenv("SANDBOX_TIMEOUT", "250ms")
	t.Setenv("ASSETS_RETRIES", "2")
	t.Setenv("LOG_DEV", "true")
	t.Setenv("ALLOW_ORIGINS", "http://localhost:5173,https://renderer.local")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "/srv/plugins/todo", cfg.Plugin.Dir)
	assert.Equal(t, 250*time.Millisecond, cfg.Sandbox.Timeout)
	assert.Equal(t, 2, cfg.Assets.Retries)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, []string{"http://localhost:5173", "https://renderer.local"}, cfg.Server.AllowOrigins)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("SANDBOX_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
	assert.Equal(t, Default(), LoadOrDefault())
}

func TestDefaultAttemptsRemoteFetchOnce(t *testing.T) {
	cfg := Default()
	assert.Zero(t, cfg.Assets.Retries)
	assert.Equal(t, "127.0.0.1:8700", cfg.Server.Addr())
}
