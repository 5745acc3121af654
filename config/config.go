// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration shared by the candlefeed binaries.
type Config struct {
	// Infrastructure
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"data/candles.db"`

	// Tick stream
	TickStreamKey string `env:"TICK_STREAM_KEY" envDefault:"ticks:raw"`
	// How long XREAD blocks waiting for new entries before re-checking shutdown.
	StreamBlockSec int `env:"STREAM_BLOCK_SEC" envDefault:"5"`
	// Backoff after a stream read/connection error.
	StreamBackoffSec int `env:"STREAM_BACKOFF_SEC" envDefault:"2"`

	// Price oracle
	OracleURL    string `env:"ORACLE_URL" envDefault:"https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"`
	OracleTTLSec int    `env:"ORACLE_TTL_SEC" envDefault:"30"`

	// HTTP surfaces
	APIAddr     string `env:"API_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	// Observability
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.TickStreamKey == "" {
		return fmt.Errorf("TICK_STREAM_KEY must not be empty")
	}
	if c.StreamBlockSec <= 0 {
		return fmt.Errorf("STREAM_BLOCK_SEC must be positive, got %d", c.StreamBlockSec)
	}
	if c.StreamBackoffSec <= 0 {
		return fmt.Errorf("STREAM_BACKOFF_SEC must be positive, got %d", c.StreamBackoffSec)
	}
	if c.OracleTTLSec <= 0 {
		return fmt.Errorf("ORACLE_TTL_SEC must be positive, got %d", c.OracleTTLSec)
	}
	return nil
}

// StreamBlock returns the blocking-read timeout as a duration.
func (c *Config) StreamBlock() time.Duration {
	return time.Duration(c.StreamBlockSec) * time.Second
}

// StreamBackoff returns the error backoff as a duration.
func (c *Config) StreamBackoff() time.Duration {
	return time.Duration(c.StreamBackoffSec) * time.Second
}

// OracleTTL returns the USD rate cache TTL as a duration.
func (c *Config) OracleTTL() time.Duration {
	return time.Duration(c.OracleTTLSec) * time.Second
}
