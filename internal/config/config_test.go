package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, BackendFile, cfg.Store.Backend)
	assert.Equal(t, ".stepwise/runs", cfg.Store.Dir)
	assert.Equal(t, time.Duration(0), cfg.Store.TTL)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.NATS.URL)
	assert.False(t, cfg.Security.MaskPII)
}

func TestLoad_ProjectFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	content := "store:\n  backend: redis\n  ttl: 24h\nredis:\n  addr: cache:6379\nsecurity:\n  mask_pii: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stepwise.yaml"), []byte(content), 0o644))

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Security.MaskPII)
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[http]\naddr = \":9090\"\n\n[log]\nlevel = \"debug\"\n"), 0o644))

	cfg, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stepwise.json"), []byte(`{"store":{"backend":"file"}}`), 0o644))
	t.Setenv("STEPWISE_STORE_BACKEND", "memory")
	t.Setenv("STEPWISE_NATS_URL", "nats://localhost:4222")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")

	chdir(t, t.TempDir())
	t.Setenv("STEPWISE_STORE_BACKEND", "postgres")
	_, err = Load(nil, "")
	assert.ErrorContains(t, err, "unknown store backend")
}
