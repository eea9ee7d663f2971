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
	"golang.org/x/sync/errgroup"

	"github.com/xarxa-labs/xarxa/internal/config"
	"github.com/xarxa-labs/xarxa/internal/graph"
	"github.com/xarxa-labs/xarxa/internal/mempool"
	"github.com/xarxa-labs/xarxa/internal/observability"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	flag.Parse()

	cfg, found, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	observability.SetupLogging("xarxa-watch", cfg.General)

	dir := graph.DirectoryFromConfig(cfg.Exchanges)
	log.Info().
		Bool("config_file", found).
		Int("wallets", dir.WalletCount()).
		Str("ws", cfg.Mempool.WSURL).
		Msg("Wallet watch - Starting")

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
	tracker := mempool.NewTracker(mempool.TrackerConfig{
		WSURL:        cfg.Mempool.WSURL,
		Addresses:    dir.Wallets(),
		PingInterval: time.Duration(cfg.Mempool.PingIntervalS) * time.Second,
	}, metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tracker.Run(gctx)
	})
	g.Go(func() error {
		for ev := range tracker.Events() {
			name := ""
			if ent, ok := dir.Lookup(ev.Address); ok {
				name = ent.Name
			}
			net := mempool.ToUnits(mempool.NetFlow(ev.Tx, ev.Address), cfg.Mempool.Exponent())
			fmt.Printf("%s %-10s %-9s %s %s net=%s\n",
				ev.ReceivedAt.UTC().Format(time.RFC3339), name, ev.Kind, ev.Address, ev.Tx.TxID, net.String())
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		metrics.LogSummary()
		log.Fatal().Err(err).Msg("Tracker stopped")
	}
	metrics.LogSummary()
	log.Info().Msg("Wallet watch - Shutdown complete")
}
