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
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://yields.llama.fi/pools", cfg.FeedURL)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5_000_000.0, cfg.DefaultMinTVL)
	assert.Equal(t, 0.0, cfg.DefaultMinAPY)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("DEFAULT_MIN_TVL", "1000000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 1_000_000.0, cfg.DefaultMinTVL)
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("CACHE_TTL", "not-a-duration")
	t.Setenv("DEFAULT_MIN_TVL", "lots")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5_000_000.0, cfg.DefaultMinTVL)
}

func TestLoad_YAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("port: \"7070\"\ndefault_min_tvl: 1000000\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9999") // file wins over environment

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, 1_000_000.0, cfg.DefaultMinTVL)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL, "Fields absent from the file keep their values")
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	_, err := Load()
	assert.Error(t, err, "A named but unreadable config file is an error, not a fallback")
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_FLOAT", "2.5")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DUR", "90s")

	assert.Equal(t, "value", GetEnvOrDefault("TEST_STR", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("TEST_MISSING", "fallback"))
	assert.Equal(t, 42, GetEnvAsInt("TEST_INT", 0))
	assert.Equal(t, 2.5, GetEnvAsFloat("TEST_FLOAT", 0))
	assert.True(t, GetEnvAsBool("TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, GetEnvAsDuration("TEST_DUR", 0))
}
