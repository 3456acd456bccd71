package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected default addr: %s", cfg.Server.Addr())
	}
	if cfg.Market.Mode != "static" {
		t.Fatalf("unexpected default market mode: %s", cfg.Market.Mode)
	}
	if cfg.Limits.RatePerSec != 25 || cfg.Limits.RateBurst != 50 {
		t.Fatalf("unexpected default limits: %+v", cfg.Limits)
	}
	if cfg.IsProduction() {
		t.Fatal("default config must not report production")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tradebook.toml")
	content := `
environment = "production"

[server]
port = 9090
read_timeout = "5s"

[market]
mode = "walk"
seed = 42
spread_bp = 100

[market.prices]
AAPL = "180.00"

[limits]
rate_per_sec = 10
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if !cfg.IsProduction() {
		t.Fatal("expected production environment")
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("unexpected port: %d", cfg.Server.Port)
	}
	if got := cfg.Server.GetReadTimeout(); got != 5*time.Second {
		t.Fatalf("unexpected read timeout: %s", got)
	}
	// Unset values keep their defaults.
	if got := cfg.Server.GetWriteTimeout(); got != 15*time.Second {
		t.Fatalf("unexpected write timeout: %s", got)
	}
	if cfg.Market.Mode != "walk" || cfg.Market.Seed != 42 || cfg.Market.SpreadBP != 100 {
		t.Fatalf("unexpected market config: %+v", cfg.Market)
	}
	if cfg.Market.Prices["AAPL"] != "180.00" {
		t.Fatalf("unexpected prices: %v", cfg.Market.Prices)
	}
	if cfg.Limits.RatePerSec != 10 {
		t.Fatalf("unexpected rate: %d", cfg.Limits.RatePerSec)
	}
	if cfg.Limits.RateBurst != 50 {
		t.Fatalf("burst should keep its default: %d", cfg.Limits.RateBurst)
	}
}

func TestLoadConfigSkipsMissingFiles(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"), "")
	if err != nil {
		t.Fatalf("missing files must be skipped: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected port: %d", cfg.Server.Port)
	}
}

func TestLoadConfigRejectsBadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.toml")
	if err := os.WriteFile(path, []byte("server = {"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRADEBOOK_ENV", "prod")
	t.Setenv("TRADEBOOK_PORT", "7000")
	t.Setenv("TRADEBOOK_MARKET_MODE", "WALK")
	t.Setenv("TRADEBOOK_MARKET_SEED", "7")
	t.Setenv("TRADEBOOK_RATE_PER_SEC", "3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production from env")
	}
	if cfg.Server.Port != 7000 {
		t.Fatalf("unexpected port: %d", cfg.Server.Port)
	}
	if cfg.Market.Mode != "walk" {
		t.Fatalf("mode must be normalized: %s", cfg.Market.Mode)
	}
	if cfg.Market.Seed != 7 {
		t.Fatalf("unexpected seed: %d", cfg.Market.Seed)
	}
	if cfg.Limits.RatePerSec != 3 {
		t.Fatalf("unexpected rate: %d", cfg.Limits.RatePerSec)
	}
}

func TestUnknownMarketModeFallsBack(t *testing.T) {
	t.Setenv("TRADEBOOK_MARKET_MODE", "chaotic")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Market.Mode != "static" {
		t.Fatalf("expected fallback to static, got %s", cfg.Market.Mode)
	}
}
