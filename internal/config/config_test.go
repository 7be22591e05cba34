package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := GetDefaults()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, 60*time.Second, cfg.Cache.TTL.Short)
	assert.Equal(t, 300*time.Second, cfg.Cache.TTL.Medium)
	assert.Equal(t, 3600*time.Second, cfg.Cache.TTL.Long)
	assert.True(t, cfg.RateLimit.FailOpen)
	assert.Equal(t, "standard", cfg.PII.PatternSet)
	assert.Equal(t, "standard", cfg.Injection.PatternSet)
	assert.Equal(t, 100000, cfg.Security.MaxTextChars)
	assert.False(t, cfg.Security.BlockOnHigh)
	assert.Equal(t, "none", cfg.Audit.Backend)

	require.NoError(t, validateConfig(cfg))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reflexgate.yaml")
	content := `
server:
  port: 9191
redis:
  url: redis://cache.internal:6379
pii:
  pattern_set: relaxed
  min_confidence: 0.6
rate_limit:
  fail_open: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "redis://cache.internal:6379", cfg.Redis.URL)
	assert.Equal(t, "relaxed", cfg.PII.PatternSet)
	assert.InDelta(t, 0.6, cfg.PII.MinConfidence, 1e-9)
	assert.False(t, cfg.RateLimit.FailOpen)

	// Untouched sections keep defaults.
	assert.Equal(t, "standard", cfg.Injection.PatternSet)
	assert.Equal(t, 60*time.Second, cfg.Cache.TTL.Short)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad pii set", func(c *Config) { c.PII.PatternSet = "loose" }},
		{"bad injection set", func(c *Config) { c.Injection.PatternSet = "" }},
		{"pii floor out of range", func(c *Config) { c.PII.MinConfidence = 1.5 }},
		{"injection floor negative", func(c *Config) { c.Injection.MinConfidence = -0.1 }},
		{"zero max text", func(c *Config) { c.Security.MaxTextChars = 0 }},
		{"zero ttl", func(c *Config) { c.Cache.TTL.Medium = 0 }},
		{"bad audit backend", func(c *Config) { c.Audit.Backend = "kafka" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "logfmt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaults()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reflexgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: shouting\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
