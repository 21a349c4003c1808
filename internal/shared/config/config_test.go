package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 300, cfg.SubscriptionTTLSeconds)
	assert.Equal(t, 2, cfg.MaxRetriesPerModel)
	assert.Equal(t, 500, cfg.BackoffBaseMs)
	assert.Equal(t, 8000, cfg.BackoffCapMs)
	assert.True(t, cfg.AllowUnknownTaskTypes)
}

func TestLoadRequiredFields(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("OPENAI_API_KEY", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadValidatesBackoff(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("BACKOFF_BASE_MS", "1000")
	t.Setenv("BACKOFF_CAP_MS", "100")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MAX_RETRIES_PER_MODEL", "5")
	t.Setenv("ALLOW_UNKNOWN_TASK_TYPES", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRetriesPerModel)
	assert.False(t, cfg.AllowUnknownTaskTypes)
}
