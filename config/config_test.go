package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, "https://api.linkedin.com", cfg.LinkedIn.BaseURL)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.LockTTL)
	assert.Zero(t, cfg.Scheduler.CycleTimeout)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := chdirTemp(t)
	yaml := []byte(`
server:
  port: 9090
scheduler:
  interval: 30s
  max_failures: 3
  cycle_timeout: 10m
database:
  driver: postgres
  dsn: "host=localhost user=postgres dbname=posts sslmode=disable"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("APP_SCHEDULER_INTERVAL", "45s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 3, cfg.Scheduler.MaxFailures)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.CycleTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.LockTTL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	chdirTemp(t)
	t.Setenv("APP_DATABASE_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
