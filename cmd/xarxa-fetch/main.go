package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xarxa-labs/xarxa/internal/config"
	"github.com/xarxa-labs/xarxa/internal/graph"
	"github.com/xarxa-labs/xarxa/internal/mempool"
	"github.com/xarxa-labs/xarxa/internal/observability"
	"github.com/xarxa-labs/xarxa/internal/txcache"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	cachePath := flag.String("cache", "", "cache file (overrides cache.path)")
	flag.Parse()

	cfg, found, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *cachePath != "" {
		cfg.Cache.Path = *cachePath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	runID := observability.SetupLogging("xarxa-fetch", cfg.General)
	log.Info().
		Str("run_id", runID).
		Bool("config_file", found).
		Str("cache", cfg.Cache.Path).
		Msg("Transaction download - Starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	metrics := observability.XarxaMetrics()
	client := mempool.NewClient(mempool.Config{
		BaseURL: cfg.Mempool.BaseURL,
		Timeout: time.Duration(cfg.Mempool.TimeoutS) * time.Second,
	}, metrics)

	cache := txcache.New(cfg.Cache.Path, client, cfg.Mempool.MaxTx, metrics)
	if err := cache.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load cache")
	}

	dir := graph.DirectoryFromConfig(cfg.Exchanges)
	for _, ent := range dir.Entities() {
		for _, w := range ent.Wallets {
			if ctx.Err() != nil {
				break
			}
			records, err := cache.Get(ctx, w)
			if err != nil {
				log.Error().Err(err).Str("wallet", w).Msg("Lookup failed")
				continue
			}
			fmt.Printf("%-10s %s  %d transactions\n", ent.Name, w, len(records))
		}
	}

	stats := cache.Stats()
	fmt.Printf("Cache %s: %d addresses (%d hits, %d downloaded, %d failed)\n",
		cfg.Cache.Path, stats.Entries, stats.Hits, stats.Misses, stats.Failures)

	metrics.LogSummary()
	log.Info().Msg("Transaction download - Done")
}
