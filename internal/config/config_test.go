package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Filter.MaxDepth)
	assert.Equal(t, "sqlite", cfg.SQL.Dialect)
	assert.Equal(t, uint64(100), cfg.SQL.DefaultLimit)
	assert.Equal(t, "sieve.db", cfg.Database.SQLitePath)
	assert.Empty(t, cfg.Database.PostgresURL)
	assert.Equal(t, "./schema", cfg.Schema.Dir)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 512, cfg.Cache.Size)
	assert.True(t, cfg.Auth.AllowGuest)
	assert.Equal(t, cfg, Default())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sieve.yaml"), []byte(`
filter:
  max_depth: 8
sql:
  dialect: postgres
auth:
  allow_guest: false
  tokens:
    t0k3n:
      subject: ops
      abilities: ["search:users"]
`), 0o644))
	t.Setenv("SIEVE_HTTP_ADDR", ":9999")
	t.Setenv("SIEVE_FILTER_MAX_DEPTH", "4")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Filter.MaxDepth)
	assert.Equal(t, "postgres", cfg.SQL.Dialect)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.False(t, cfg.Auth.AllowGuest)
	require.Contains(t, cfg.Auth.Tokens, "t0k3n")
	assert.Equal(t, "ops", cfg.Auth.Tokens["t0k3n"].ID)
	assert.Equal(t, []string{"search:users"}, cfg.Auth.Tokens["t0k3n"].Abilities)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("SIEVE_SQL_DIALECT", "mysql")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sql.dialect")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Filter.MaxDepth = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.SQL.DefaultLimit = 5000
	assert.Error(t, cfg.Validate())
}
