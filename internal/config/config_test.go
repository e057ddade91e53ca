package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "nats://localhost:4222", cfg.Queue.URL)
	assert.Equal(t, "reports", cfg.Queue.StreamName)
	assert.Equal(t, "https://api.hotline.gg", cfg.Directory.BaseURL)
	assert.Equal(t, 5*time.Minute, time.Duration(cfg.Retry.Delay))
	assert.Equal(t, 0, cfg.Retry.MaxAttempts)
	assert.Equal(t, "reports.report", cfg.Retry.Subject)
	assert.Equal(t, 16, cfg.WorkerCount)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
queue:
  url: nats://queue:4222
  stream_name: reports-test
retry:
  delay: 1m
  max_attempts: 5
logging:
  level: debug
  format: json
worker_count: 4
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nats://queue:4222", cfg.Queue.URL)
	assert.Equal(t, "reports-test", cfg.Queue.StreamName)
	// Unset fields keep their defaults.
	assert.Equal(t, "report-relay", cfg.Queue.ConsumerName)
	assert.Equal(t, time.Minute, time.Duration(cfg.Retry.Delay))
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 4, cfg.WorkerCount)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RELAY_NATS_URL", "nats://env:4222")
	t.Setenv("API_URL", "https://directory.test")
	t.Setenv("RELAY_WORKER_COUNT", "8")
	t.Setenv("RELAY_RETRY_MAX_ATTEMPTS", "2")
	t.Setenv("RELAY_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "nats://env:4222", cfg.Queue.URL)
	assert.Equal(t, "https://directory.test", cfg.Directory.BaseURL)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("queue: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"EmptyQueueURL", func(c *Config) { c.Queue.URL = "" }},
		{"EmptyStreamName", func(c *Config) { c.Queue.StreamName = "" }},
		{"EmptyDirectoryURL", func(c *Config) { c.Directory.BaseURL = "" }},
		{"ZeroRetryDelay", func(c *Config) { c.Retry.Delay = 0 }},
		{"NegativeMaxAttempts", func(c *Config) { c.Retry.MaxAttempts = -1 }},
		{"BadLogLevel", func(c *Config) { c.Logging.Level = "verbose" }},
		{"BadLogFormat", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
