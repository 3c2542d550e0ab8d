package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"WhaleConsensus/internal/cache"
	"WhaleConsensus/internal/collector"
	"WhaleConsensus/internal/config"
	"WhaleConsensus/internal/watchlist"
	"WhaleConsensus/internal/whale"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "consensus",
	Short:         "Whale consensus engine for Polymarket",
	Long:          "Tracks smart-money wallets on Polymarket, aggregates their positions into consensus signals, scores and sizes them.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
		setupLogging(cfg)
		return nil
	},
}

func init() {
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultPath, "path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("consensus failed")
	}
}

func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func openWatchlist(cfg *config.Config) (*watchlist.Manager, error) {
	wl, err := watchlist.NewManager(cfg.Watchlist.StateFile, cfg.Engine, cfg.Watchlist.Wallets)
	if err != nil {
		return nil, fmt.Errorf("open watchlist: %w", err)
	}
	return wl, nil
}

// openCache uses Redis when configured and falls back to process memory.
func openCache(ctx context.Context, cfg *config.Config) *cache.Store {
	ttl := cache.TTLs{
		Price:  cfg.Redis.PriceTTL,
		Market: cfg.Redis.MarketTTL,
		Whale:  cfg.Redis.WhaleTTL,
	}
	if cfg.Redis.Addr == "" {
		return cache.NewStore(nil, ttl)
	}
	backend, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
		return cache.NewStore(nil, ttl)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("redis cache enabled")
	return cache.NewStore(backend, ttl)
}

func newCollector(cfg *config.Config, store *cache.Store) *collector.Collector {
	fetcher := collector.NewPolymarketFetcher(collector.PolymarketConfig{
		DataURL:       cfg.Polymarket.DataURL,
		ClobURL:       cfg.Polymarket.ClobURL,
		GammaURL:      cfg.Polymarket.GammaURL,
		Proxy:         cfg.Proxy,
		Timeout:       cfg.Polymarket.Timeout,
		RatePerSecond: cfg.Polymarket.RatePerSecond,
		Burst:         cfg.Polymarket.Burst,
	})
	log.Info().Str("source", fetcher.Name()).Msg("data source ready")
	return collector.NewCollector(fetcher, store, whale.NewScorer(whale.DefaultConfig()), collector.Options{
		Concurrency:   cfg.Polymarket.Concurrency,
		ActivityLimit: cfg.Polymarket.ActivityLimit,
		Lookback:      cfg.Polymarket.Lookback,
	})
}
