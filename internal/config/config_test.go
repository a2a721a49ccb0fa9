package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 2, cfg.Harvest.Workers)
	assert.Equal(t, 50, cfg.Harvest.MaxProducts)
	assert.Equal(t, 5*time.Minute, cfg.Harvest.URLTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HARVEST_WORKERS", "6")
	t.Setenv("HARVEST_RUN_DEADLINE", "5m")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Harvest.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Harvest.RunDeadline)
	assert.False(t, cfg.Browser.Headless)
	assert.True(t, cfg.Database.Enabled())
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("HARVEST_WORKERS", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MalformedEnvFallsBack(t *testing.T) {
	t.Setenv("HARVEST_WORKERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Harvest.Workers)
}
