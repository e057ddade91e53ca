// Package config loads the relay configuration: defaults, then the
// YAML config file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"reportrelay/internal/relay/types"
)

// QueueConfig configures the durable event queue.
type QueueConfig struct {
	URL           string         `yaml:"url"`
	StreamName    string         `yaml:"stream_name"`
	ConsumerName  string         `yaml:"consumer_name"`
	FilterSubject string         `yaml:"filter_subject"`
	AckWait       types.Duration `yaml:"ack_wait"`
}

// DirectoryConfig configures the subscription directory client.
type DirectoryConfig struct {
	BaseURL string `yaml:"base_url"`
}

// RetryConfig configures delayed-retry scheduling.
type RetryConfig struct {
	// Delay before a rescheduled delivery becomes due.
	Delay types.Duration `yaml:"delay"`
	// MaxAttempts bounds the retry chain per subscriber; 0 retries
	// forever.
	MaxAttempts int `yaml:"max_attempts"`
	// Subject is the routing subject for retry events.
	Subject string `yaml:"subject"`
}

// JournalConfig configures the delivery journal.
type JournalConfig struct {
	Enabled  bool   `yaml:"enabled"`
	MongoURI string `yaml:"mongo_uri"`
	Database string `yaml:"database"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	File   string `yaml:"file"`   // rotating log file; empty for console only
}

// Config holds the full relay configuration.
type Config struct {
	Queue       QueueConfig     `yaml:"queue"`
	Directory   DirectoryConfig `yaml:"directory"`
	Retry       RetryConfig     `yaml:"retry"`
	Journal     JournalConfig   `yaml:"journal"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Logging     LoggingConfig   `yaml:"logging"`
	WorkerCount int             `yaml:"worker_count"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Queue: QueueConfig{
			URL:           "nats://localhost:4222",
			StreamName:    "reports",
			ConsumerName:  "report-relay",
			FilterSubject: "reports.>",
			AckWait:       types.Duration(30 * time.Second),
		},
		Directory: DirectoryConfig{
			BaseURL: "https://api.hotline.gg",
		},
		Retry: RetryConfig{
			Delay:   types.Duration(5 * time.Minute),
			Subject: "reports.report",
		},
		Journal: JournalConfig{
			MongoURI: "mongodb://localhost:27017",
			Database: "report_relay",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		WorkerCount: 16,
	}
}

// Load reads configuration from path (skipped if the file does not
// exist), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file is fine, defaults plus env apply.
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RELAY_NATS_URL"); v != "" {
		c.Queue.URL = v
	}
	if v := os.Getenv("API_URL"); v != "" {
		c.Directory.BaseURL = v
	}
	if v := os.Getenv("RELAY_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.WorkerCount = n
		}
	}
	if v := os.Getenv("RELAY_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("RELAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Queue.URL == "" {
		return fmt.Errorf("queue url cannot be empty")
	}
	if c.Queue.StreamName == "" {
		return fmt.Errorf("queue stream name cannot be empty")
	}
	if c.Directory.BaseURL == "" {
		return fmt.Errorf("directory base url cannot be empty")
	}
	if time.Duration(c.Retry.Delay) <= 0 {
		return fmt.Errorf("retry delay must be positive")
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry max attempts cannot be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}
	return nil
}
