package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := load(filepath.Join(dir, ".env"), dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.AdminSecret)
	assert.False(t, cfg.Production())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "db_driver: postgres\ndb_dsn: postgres://localhost/league\nhttp_addr: \":9000\"\nadmin_secret: from-file\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PLEAGUE_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PLEAGUE_LOG_LEVEL") })
	t.Setenv("PLEAGUE_ADMIN_SECRET", "from-env")

	cfg, err := load(filepath.Join(dir, ".env"), dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/league", cfg.DBDSN)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "from-env", cfg.AdminSecret)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PLEAGUE_DB_DRIVER", "mysql")
	_, err := load(filepath.Join(dir, ".env"), dir)
	assert.Error(t, err)

	t.Setenv("PLEAGUE_DB_DRIVER", "sqlite")
	t.Setenv("PLEAGUE_ENV", "production")
	_, err = load(filepath.Join(dir, ".env"), dir)
	assert.ErrorContains(t, err, "session_key")
}
