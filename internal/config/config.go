// Package config loads node runtime configuration from the environment,
// grounded on ws/config.go: caarlos0/env struct tags for parsing and
// defaults, an optional .env file via joho/godotenv, and a Validate step
// before the value is trusted anywhere else.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every environment-tunable knob shared by the three node
// programs. Tags:
//
//	env: environment variable name
//	envDefault: value used when the variable is unset
type Config struct {
	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Metrics. Empty MetricsAddr disables the Prometheus endpoint
	// entirely — a harness-driven node shouldn't need an open port to
	// pass correctness tests.
	MetricsAddr string `env:"METRICS_ADDR" envDefault:""`

	// InputQueueSize bounds how many unconsumed stdin lines the reader
	// goroutine may buffer before it applies backpressure.
	InputQueueSize int `env:"INPUT_QUEUE_SIZE" envDefault:"4096"`

	// Broadcast engine tuning (ignored by the echo and unique-id nodes).
	BroadcastFanout     int     `env:"BROADCAST_FANOUT" envDefault:"3"`
	BroadcastTargetOps  int     `env:"BROADCAST_TARGET_OPS" envDefault:"20"`
	BroadcastBatchDelay string  `env:"BROADCAST_BATCH_DELAY" envDefault:"200ms"`
	BroadcastAckDelay   string  `env:"BROADCAST_ACK_DELAY" envDefault:"2s"`
	BroadcastMaxRate    float64 `env:"BROADCAST_MAX_RATE" envDefault:"0"`
}

// Load reads configuration from an optional .env file and the process
// environment, environment variables taking priority, then validates it.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Debug().Msg("no .env file found, using environment variables only")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks field ranges and enum membership.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}

	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}

	if c.InputQueueSize < 1 {
		return fmt.Errorf("INPUT_QUEUE_SIZE must be >= 1, got %d", c.InputQueueSize)
	}
	if c.BroadcastFanout < 1 {
		return fmt.Errorf("BROADCAST_FANOUT must be >= 1, got %d", c.BroadcastFanout)
	}
	if c.BroadcastTargetOps < 1 {
		return fmt.Errorf("BROADCAST_TARGET_OPS must be >= 1, got %d", c.BroadcastTargetOps)
	}
	if c.BroadcastMaxRate < 0 {
		return fmt.Errorf("BROADCAST_MAX_RATE must be >= 0, got %f", c.BroadcastMaxRate)
	}

	return nil
}

// LogConfig emits the loaded configuration as a structured log line.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Str("metrics_addr", c.MetricsAddr).
		Int("input_queue_size", c.InputQueueSize).
		Int("broadcast_fanout", c.BroadcastFanout).
		Int("broadcast_target_ops", c.BroadcastTargetOps).
		Str("broadcast_batch_delay", c.BroadcastBatchDelay).
		Str("broadcast_ack_delay", c.BroadcastAckDelay).
		Float64("broadcast_max_rate", c.BroadcastMaxRate).
		Msg("configuration loaded")
}
