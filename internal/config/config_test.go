package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "local.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
env: "dev"
storage_path: "storage/Students"
http_server:
  address: "localhost:8080"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "storage/Students", cfg.StoragePath)
	assert.Equal(t, BackendFlatFile, cfg.Storage.Backend)
	assert.False(t, cfg.Storage.CompactOnStart)
	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTPServer.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.HTTPServer.ShutdownTimeout)
	assert.Equal(t, []string{"*"}, cfg.HTTPServer.CORSOrigins)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Redis.TTL)
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
env: "prod"
storage_path: "storage/students.db"
storage:
  backend: "sqlite"
  compact_on_start: true
http_server:
  address: ":8080"
  read_timeout: 3s
  cors_origins:
    - "http://localhost:5500"
    - "https://registro.example"
redis:
  enabled: true
  address: "redis:6379"
  db: 2
  ttl: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.True(t, cfg.Storage.CompactOnStart)
	assert.Equal(t, 3*time.Second, cfg.HTTPServer.ReadTimeout)
	assert.Equal(t, []string{"http://localhost:5500", "https://registro.example"}, cfg.HTTPServer.CORSOrigins)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
env: "dev"
storage_path: "storage/Students"
http_server:
  address: "localhost:8080"
`)
	t.Setenv("STORAGE_PATH", "/tmp/override")
	t.Setenv("HTTP_SERVER_CORS_ORIGINS", "http://a.example,http://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override", cfg.StoragePath)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.HTTPServer.CORSOrigins)
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "local.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Addr, "the registration form calls port 8080")
	assert.Equal(t, []string{"*"}, cfg.HTTPServer.CORSOrigins)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeConfig(t, `
env: "dev"
storage_path: "storage/Students"
storage:
  backend: "postgres"
http_server:
  address: "localhost:8080"
`)
	_, err = Load(path)
	assert.ErrorContains(t, err, "unknown storage backend")
}
