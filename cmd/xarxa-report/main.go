package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xarxa-labs/xarxa/internal/analysis"
	"github.com/xarxa-labs/xarxa/internal/config"
	"github.com/xarxa-labs/xarxa/internal/graph"
	"github.com/xarxa-labs/xarxa/internal/mempool"
	"github.com/xarxa-labs/xarxa/internal/observability"
	"github.com/xarxa-labs/xarxa/internal/txcache"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	topN := flag.Int("top", 0, "ranking length (overrides report.top_n)")
	weighted := flag.Bool("weighted", false, "flow-weighted betweenness")
	dotPath := flag.String("dot", "", "write the graph as Graphviz DOT")
	jsonPath := flag.String("json", "", "write the graph as vis-network JSON")
	balance := flag.String("balance", "", "also print the flow balance of this address")
	flag.Parse()

	cfg, found, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *topN > 0 {
		cfg.Report.TopN = *topN
	}
	if *weighted {
		cfg.Report.WeightedBetweenness = true
	}
	if *dotPath != "" {
		cfg.Report.DOTPath = *dotPath
	}
	if *jsonPath != "" {
		cfg.Report.JSONPath = *jsonPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	observability.SetupLogging("xarxa-report", cfg.General)
	log.Info().Bool("config_file", found).Str("cache", cfg.Cache.Path).Msg("Flow report - Starting")

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
	g, _, err := graph.NewBuilder(cfg.Mempool.Exponent()).Build(ctx, dir, cache)
	if err != nil {
		log.Fatal().Err(err).Msg("Graph build aborted")
	}

	report := analysis.Analyze(g, analysis.Options{
		TopN:                cfg.Report.TopN,
		WeightedBetweenness: cfg.Report.WeightedBetweenness,
		Directory:           dir,
	})
	if err := analysis.Render(os.Stdout, report); err != nil {
		log.Fatal().Err(err).Msg("Failed to write report")
	}
	if *balance != "" {
		if err := analysis.RenderBalance(os.Stdout, analysis.FlowBalance(g, *balance)); err != nil {
			log.Fatal().Err(err).Msg("Failed to write balance")
		}
	}

	if cfg.Report.DOTPath != "" {
		if err := graph.SaveDOT(cfg.Report.DOTPath, g); err != nil {
			log.Error().Err(err).Msg("DOT export failed")
		}
	}
	if cfg.Report.JSONPath != "" {
		if err := graph.SaveJSON(cfg.Report.JSONPath, g); err != nil {
			log.Error().Err(err).Msg("JSON export failed")
		}
	}

	metrics.LogSummary()
	log.Info().Msg("Flow report - Done")
}
