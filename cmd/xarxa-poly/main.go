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

	"github.com/xarxa-labs/xarxa/internal/analysis"
	"github.com/xarxa-labs/xarxa/internal/config"
	"github.com/xarxa-labs/xarxa/internal/graph"
	"github.com/xarxa-labs/xarxa/internal/observability"
	"github.com/xarxa-labs/xarxa/internal/polymarket"
	"github.com/xarxa-labs/xarxa/internal/tabular"
)

// marketNode names the single market vertex of the trade graph.
const marketNode = "Market"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	market := flag.String("market", "", "market id (overrides polymarket.market_id)")
	out := flag.String("out", "", "CSV output (overrides polymarket.output)")
	dotPath := flag.String("dot", "", "write the market graph as Graphviz DOT")
	jsonPath := flag.String("json", "", "write the market graph as vis-network JSON")
	flag.Parse()

	cfg, found, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *market != "" {
		cfg.Polymarket.MarketID = *market
	}
	if *out != "" {
		cfg.Polymarket.Output = *out
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	observability.SetupLogging("xarxa-poly", cfg.General)
	if cfg.Polymarket.MarketID == "" {
		log.Fatal().Msg("No market id: set polymarket.market_id or pass -market")
	}
	log.Info().Bool("config_file", found).Str("market", cfg.Polymarket.MarketID).Msg("Market trades - Starting")

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
	client := polymarket.NewClient(polymarket.Config{
		BaseURL:   cfg.Polymarket.BaseURL,
		Timeout:   time.Duration(cfg.Polymarket.TimeoutS) * time.Second,
		PageLimit: cfg.Polymarket.PageLimit,
		Pause:     time.Duration(cfg.Polymarket.PauseMs) * time.Millisecond,
	}, metrics)

	trades, fetchErr := client.AllTrades(ctx, cfg.Polymarket.MarketID)
	if fetchErr != nil {
		log.Error().Err(fetchErr).Int("collected", len(trades)).Msg("Trade download incomplete")
	}

	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, t.Row())
	}
	if err := tabular.WriteCSV(cfg.Polymarket.Output, polymarket.Header, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to write CSV")
	}
	fmt.Printf("Saved %d trades to %s\n\n", len(rows), cfg.Polymarket.Output)

	g := graph.BuildMarketGraph(marketNode, polymarket.Aggregate(trades))
	report := analysis.Analyze(g, analysis.Options{
		TopN:                cfg.Report.TopN,
		WeightedBetweenness: cfg.Report.WeightedBetweenness,
	})
	if err := analysis.Render(os.Stdout, report); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}

	fmt.Println()
	if err := analysis.RenderBalance(os.Stdout, analysis.FlowBalance(g, marketNode)); err != nil {
		log.Fatal().Err(err).Msg("Failed to write balance")
	}

	s := polymarket.Summarize(trades)
	fmt.Printf("Total volume: %s over %d trades by %d wallets\n", s.Volume.String(), s.Trades, s.Wallets)
	fmt.Printf("Active trades: %d (volume %s)\n", s.ActiveTrades, s.ActiveVolume.String())
	fmt.Printf("Past trades: %d (volume %s)\n", s.PastTrades, s.PastVolume.String())

	if *dotPath != "" {
		if err := graph.SaveDOT(*dotPath, g); err != nil {
			log.Error().Err(err).Msg("DOT export failed")
		}
	}
	if *jsonPath != "" {
		if err := graph.SaveJSON(*jsonPath, g); err != nil {
			log.Error().Err(err).Msg("JSON export failed")
		}
	}

	metrics.LogSummary()
	if fetchErr != nil {
		os.Exit(1)
	}
	log.Info().Msg("Market trades - Done")
}
