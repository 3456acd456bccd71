package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/joho/godotenv"

	"tradebook.org/internal/config"
	"tradebook.org/internal/httpapi"
	"tradebook.org/internal/ledger"
	"tradebook.org/internal/market"
	"tradebook.org/internal/obs"
	"tradebook.org/internal/stream"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	// Local development secrets live in .env; missing file is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("TRADEBOOK_CONFIG"), "path to a TOML config file")
	flag.Parse()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		obs.Logf("error", "", "config load failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	quotes, err := buildMarket(cfg)
	if err != nil {
		obs.Logf("error", "", "market setup failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	svc := ledger.NewInMemory(quotes)
	str := stream.New()

	// Readiness flips false again at the start of the drain.
	var ready atomic.Bool
	probe := httpapi.ReadyProbe{
		Ping: func(ctx context.Context) error {
			if !ready.Load() {
				return errors.New("shutting down")
			}
			return nil
		},
	}

	api := httpapi.New(probe, version, svc, quotes, str)
	api.SetRateLimit(cfg.Limits.RatePerSec, cfg.Limits.RateBurst)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.GetReadTimeout(),
		ReadHeaderTimeout: cfg.Server.GetReadTimeout(),
		WriteTimeout:      cfg.Server.GetWriteTimeout(),
		IdleTimeout:       cfg.Server.GetIdleTimeout(),
	}

	obs.Logf("info", "", "starting tradebook-api", map[string]any{
		"version":     version,
		"addr":        srv.Addr,
		"environment": cfg.Environment,
		"market_mode": cfg.Market.Mode,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Logf("error", "", "listen failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}()
	ready.Store(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	ready.Store(false)
	obs.Logf("info", "", "shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		obs.Logf("error", "", "shutdown incomplete", map[string]any{"error": err.Error()})
	}
	obs.Logf("info", "", "stopped", nil)
}

// buildMarket assembles the price source the config asks for. A configured
// prices table replaces the built-in board entirely.
func buildMarket(cfg *config.Config) (ledger.PriceSource, error) {
	board := market.DefaultBoard()
	if len(cfg.Market.Prices) > 0 {
		board = make(map[string]ledger.Money, len(cfg.Market.Prices))
		for sym, raw := range cfg.Market.Prices {
			p, err := ledger.ParseMoney(raw)
			if err != nil {
				return nil, fmt.Errorf("price for %s: %w", sym, err)
			}
			if !p.IsPositive() {
				return nil, fmt.Errorf("price for %s must be positive, got %s", sym, raw)
			}
			board[strings.ToUpper(sym)] = p
		}
	}
	if cfg.Market.Mode == "walk" {
		return market.NewRandomWalk(board, cfg.Market.SpreadBP, cfg.Market.Seed), nil
	}
	return market.NewStatic(board), nil
}
