package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Audit.Backend)
	assert.Equal(t, 60, cfg.Engine.RateLimits.RequestsPerMinute)
	assert.Equal(t, 3, cfg.Engine.Retry.MaxRetries)
	assert.True(t, cfg.Engine.Cache.Enabled)
}

func TestParseYAMLOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log:
  level: debug
engine:
  rateLimits:
    requestsPerMinute: 5
  cache:
    enabled: false
storage:
  backend: file
  dir: /tmp/flowgate
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Engine.RateLimits.RequestsPerMinute)
	assert.False(t, cfg.Engine.Cache.Enabled)
	assert.Equal(t, "file", cfg.Storage.Backend)
	// Untouched fields keep their defaults.
	assert.Equal(t, 3, cfg.Engine.Retry.MaxRetries)
}

func TestParseJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"log":{"level":"warn"},"metricsAddr":":9102"}`))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ":9102", cfg.MetricsAddr)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("engine: [unclosed"))
	require.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative retries", func(c *Config) { c.Engine.Retry.MaxRetries = -1 }},
		{"backoff below one", func(c *Config) { c.Engine.Retry.BackoffBase = 0.5 }},
		{"negative cache size", func(c *Config) { c.Engine.Cache.MaxSize = -1 }},
		{"zero op limit", func(c *Config) { c.Engine.Limits.MaxOperationsPerWorkflow = 0 }},
		{"unknown audit backend", func(c *Config) { c.Audit.Backend = "kafka" }},
		{"unknown storage backend", func(c *Config) { c.Storage.Backend = "s3" }},
		{"file audit without dir", func(c *Config) { c.Audit.Backend = "file"; c.Audit.Dir = "" }},
		{"postgres audit without dsn", func(c *Config) { c.Audit.Backend = "postgres" }},
		{"redis storage without addr", func(c *Config) { c.Storage.Backend = "redis" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("FLOWGATE_LOG_LEVEL", "error")
	t.Setenv("FLOWGATE_REDIS_ADDR", "redis:6379")
	t.Setenv("FLOWGATE_REDIS_DB", "3")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "redis:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 3, cfg.Storage.RedisDB)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audit:\n  backend: kafka\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit backend")
}
