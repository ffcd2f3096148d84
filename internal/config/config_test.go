package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, DriverMongo, cfg.Database.Driver)
	assert.Equal(t, "artifacts", cfg.Store.Namespace)
	assert.Equal(t, "workym-elite-final", cfg.Store.AppID)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 720*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 60, cfg.Timer.DefaultRestSeconds())
	assert.Equal(t, time.Second, cfg.Timer.Tick)
	assert.Equal(t, 10*time.Second, cfg.Sync.WriteTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Screen.IdleTimeout)
	assert.Equal(t, time.Minute, cfg.Screen.SweepInterval)
	assert.False(t, cfg.S3.ExportEnabled())
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  address: ":9090"
database:
  driver: memory
store:
  app_id: other-app
jwt:
  secret: file-secret
  expiration: 2h
timer:
  default_rest: 90s
s3:
  bucket_name: exports
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "artifacts", cfg.Store.Namespace)
	assert.Equal(t, "other-app", cfg.Store.AppID)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 90, cfg.Timer.DefaultRestSeconds())
	assert.True(t, cfg.S3.ExportEnabled())
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig(dir)
	assert.Error(t, err, "missing jwt secret")

	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DATABASE_DRIVER", "postgres")
	_, err = LoadConfig(dir)
	assert.ErrorContains(t, err, "unknown database driver")
}

func TestLoadConfig_ScreenEviction(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("SCREEN_IDLE_TIMEOUT", "-1m")
	_, err := LoadConfig(dir)
	assert.ErrorContains(t, err, "screen.idle_timeout")

	t.Setenv("SCREEN_IDLE_TIMEOUT", "10m")
	t.Setenv("SCREEN_SWEEP_INTERVAL", "0s")
	_, err = LoadConfig(dir)
	assert.ErrorContains(t, err, "screen.sweep_interval")

	t.Setenv("SCREEN_IDLE_TIMEOUT", "0s")
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Zero(t, cfg.Screen.IdleTimeout)
}
