package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.BindAddr)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 60*time.Second, cfg.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.AuditLimit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PARLEY_BIND_ADDR", ":9090")
	t.Setenv("PARLEY_STORE", "redis")
	t.Setenv("PARLEY_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("PARLEY_SWEEP_INTERVAL", "15s")
	t.Setenv("PARLEY_AUDIT_LIMIT", "25")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.BindAddr)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, "redis.internal:6379", cfg.RedisAddr)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, 25, cfg.AuditLimit)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("PARLEY_STORE", "postgres")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_RejectsMalformedDuration(t *testing.T) {
	t.Setenv("PARLEY_SWEEP_INTERVAL", "soon")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadFile_OverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.yaml")
	writeFile(t, path, "bind_addr: \":7070\"\nstore_backend: redis\nsweep_interval: 30s\n")

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.BindAddr)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 100, cfg.AuditLimit, "fields absent from the file keep defaults")
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
