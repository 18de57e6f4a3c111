package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 3, cfg.WorkerPoolSize)
	assert.Equal(t, 8, cfg.JWTExpirationHours)
	assert.Equal(t, 24, cfg.JWTRefreshHours)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.NotEmpty(t, cfg.DatabaseURL)
	assert.NotEmpty(t, cfg.RedisURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("REPORT_RECIPIENT", "shift-lead@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, "shift-lead@example.com", cfg.ReportRecipient)
}
