// Package config loads service configuration from TOML files with
// environment overrides. The auth signing secret stays env-only
// (TRADEBOOK_AUTH_SECRET) and never lives in a config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the tradebook API.
type Config struct {
	Environment string       `toml:"environment"`
	Server      ServerConfig `toml:"server"`
	Market      MarketConfig `toml:"market"`
	Limits      LimitsConfig `toml:"limits"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	IdleTimeout     string `toml:"idle_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// Addr returns the host:port the server binds to.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c ServerConfig) GetReadTimeout() time.Duration {
	return parseDuration(c.ReadTimeout, 15*time.Second)
}

func (c ServerConfig) GetWriteTimeout() time.Duration {
	return parseDuration(c.WriteTimeout, 15*time.Second)
}

func (c ServerConfig) GetIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 60*time.Second)
}

func (c ServerConfig) GetShutdownTimeout() time.Duration {
	return parseDuration(c.ShutdownTimeout, 10*time.Second)
}

// MarketConfig selects and tunes the price source. Mode is "static" for a
// fixed board or "walk" for a seeded random walk around it. Prices maps
// symbols to decimal strings; an empty map keeps the built-in board.
type MarketConfig struct {
	Mode     string            `toml:"mode"`
	SpreadBP int               `toml:"spread_bp"`
	Seed     int64             `toml:"seed"`
	Prices   map[string]string `toml:"prices"`
}

// LimitsConfig tunes the per-IP request budget.
type LimitsConfig struct {
	RatePerSec int `toml:"rate_per_sec"`
	RateBurst  int `toml:"rate_burst"`
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     "15s",
			WriteTimeout:    "15s",
			IdleTimeout:     "60s",
			ShutdownTimeout: "10s",
		},
		Market: MarketConfig{
			Mode:     "static",
			SpreadBP: 200,
		},
		Limits: LimitsConfig{
			RatePerSec: 25,
			RateBurst:  50,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	validateMarketMode(config)

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TRADEBOOK_ENV"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("TRADEBOOK_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("TRADEBOOK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if mode := os.Getenv("TRADEBOOK_MARKET_MODE"); mode != "" {
		config.Market.Mode = mode
	}
	if seed := os.Getenv("TRADEBOOK_MARKET_SEED"); seed != "" {
		if s, err := strconv.ParseInt(seed, 10, 64); err == nil {
			config.Market.Seed = s
		}
	}
	if spread := os.Getenv("TRADEBOOK_MARKET_SPREAD_BP"); spread != "" {
		if s, err := strconv.Atoi(spread); err == nil {
			config.Market.SpreadBP = s
		}
	}
	if v := os.Getenv("TRADEBOOK_RATE_PER_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Limits.RatePerSec = n
		}
	}
	if v := os.Getenv("TRADEBOOK_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Limits.RateBurst = n
		}
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func validateMarketMode(config *Config) {
	mode := strings.ToLower(strings.TrimSpace(config.Market.Mode))
	if mode != "static" && mode != "walk" {
		mode = "static"
	}
	config.Market.Mode = mode
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
