package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("IDENTITY_SECRET_KEY", "sk_test_secret")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.RateLimit.MaxPosts)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_RequiresSecretKey(t *testing.T) {
	t.Setenv("IDENTITY_SECRET_KEY", "")

	_, err := Load("")

	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("IDENTITY_SECRET_KEY", "sk_test_secret")
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:posts.db")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RATE_LIMIT_MAX_POSTS", "3")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:posts.db", cfg.Database.DSN)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.RateLimit.MaxPosts)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
}

func TestLoad_YAMLFileWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
identity:
  secret_key: sk_from_file
rate_limit:
  max_posts: 10
  window: 2m
`), 0o644))

	t.Setenv("PORT", "9100")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port, "env overrides the file")
	assert.Equal(t, "sk_from_file", cfg.Identity.SecretKey)
	assert.Equal(t, 10, cfg.RateLimit.MaxPosts)
	assert.Equal(t, 2*time.Minute, cfg.RateLimit.Window)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	t.Setenv("IDENTITY_SECRET_KEY", "sk_test_secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("IDENTITY_SECRET_KEY", "sk_test_secret")

	t.Setenv("PORT", "not-a-port")
	_, err := Load("")
	require.Error(t, err)
	t.Setenv("PORT", "")

	t.Setenv("RATE_LIMIT_MAX_POSTS", "0")
	_, err = Load("")
	require.Error(t, err)
}
