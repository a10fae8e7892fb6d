package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BOOKMARKET_AUTH_JWTSECRET", "0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "data/bookmarket.db", cfg.Database.Path)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL())
	assert.Equal(t, "upload", cfg.Upload.Dir)
	assert.Equal(t, 10, cfg.Upload.MaxFiles)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxFileBytes)
	assert.Empty(t, cfg.Storage.Bucket)
	assert.Equal(t, "books", cfg.Storage.KeyPrefix)
	assert.Equal(t, 1.0, cfg.RateLimit.AuthPerSecond)
	assert.Equal(t, 5, cfg.RateLimit.AuthBurst)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BOOKMARKET_AUTH_JWTSECRET", "0123456789abcdef")
	t.Setenv("BOOKMARKET_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("BOOKMARKET_AUTH_TOKENTTLMINUTES", "30")
	t.Setenv("BOOKMARKET_STORAGE_BUCKET", "covers")
	t.Setenv("BOOKMARKET_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL())
	assert.Equal(t, "covers", cfg.Storage.Bucket)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateRequiresSecret(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BOOKMARKET_AUTH_JWTSECRET", "short")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwtsecret")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nexport BOOKMARKET_TEST_A=\"quoted\"\nBOOKMARKET_TEST_B=kept\ninvalid\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("BOOKMARKET_TEST_B", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("BOOKMARKET_TEST_A") })

	loadDotEnv(path)

	assert.Equal(t, "quoted", os.Getenv("BOOKMARKET_TEST_A"))
	assert.Equal(t, "from-env", os.Getenv("BOOKMARKET_TEST_B"))
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
