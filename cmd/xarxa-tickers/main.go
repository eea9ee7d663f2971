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

	"github.com/xarxa-labs/xarxa/internal/coingecko"
	"github.com/xarxa-labs/xarxa/internal/config"
	"github.com/xarxa-labs/xarxa/internal/observability"
	"github.com/xarxa-labs/xarxa/internal/tabular"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	coin := flag.String("coin", "", "coin id (overrides coingecko.coin_id)")
	page := flag.Int("page", 0, "first page (overrides coingecko.start_page)")
	out := flag.String("out", "", "CSV output (overrides coingecko.output)")
	flag.Parse()

	cfg, found, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *coin != "" {
		cfg.CoinGecko.CoinID = *coin
	}
	if *page > 0 {
		cfg.CoinGecko.StartPage = *page
	}
	if *out != "" {
		cfg.CoinGecko.Output = *out
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	observability.SetupLogging("xarxa-tickers", cfg.General)
	log.Info().
		Bool("config_file", found).
		Str("coin", cfg.CoinGecko.CoinID).
		Int("start_page", cfg.CoinGecko.StartPage).
		Msg("Ticker export - Starting")

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
	client := coingecko.NewClient(coingecko.Config{
		BaseURL:           cfg.CoinGecko.BaseURL,
		Timeout:           time.Duration(cfg.CoinGecko.TimeoutS) * time.Second,
		RequestsPerMinute: cfg.CoinGecko.RequestsPerMinute,
	}, metrics)

	tickers, fetchErr := client.AllTickers(ctx, cfg.CoinGecko.CoinID, cfg.CoinGecko.StartPage)
	if fetchErr != nil {
		log.Error().Err(fetchErr).Int("collected", len(tickers)).Msg("Ticker download incomplete")
	}

	rows := make([][]string, 0, len(tickers))
	for _, t := range tickers {
		rows = append(rows, t.Row())
	}
	if err := tabular.WriteCSV(cfg.CoinGecko.Output, coingecko.Header, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to write CSV")
	}
	fmt.Printf("Saved %d tickers to %s\n", len(rows), cfg.CoinGecko.Output)

	price, err := client.SimplePrice(ctx, cfg.CoinGecko.CoinID, cfg.CoinGecko.VsCurrency)
	if err != nil {
		log.Error().Err(err).Msg("Spot price lookup failed")
	} else {
		fmt.Printf("%s price: %s %s\n", cfg.CoinGecko.CoinID, price.String(), cfg.CoinGecko.VsCurrency)
	}

	metrics.LogSummary()
	if fetchErr != nil {
		os.Exit(1)
	}
	log.Info().Msg("Ticker export - Done")
}
