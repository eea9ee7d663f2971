package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xarxa-labs/xarxa/internal/config"
	"github.com/xarxa-labs/xarxa/internal/observability"
	"github.com/xarxa-labs/xarxa/internal/tabular"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	pattern := flag.String("pattern", "", "input glob (overrides coingecko.merge_pattern)")
	out := flag.String("out", "", "merged CSV (overrides coingecko.merge_output)")
	keys := flag.String("keys", "Exchange,Base,Target,Last", "comma separated dedup columns, empty for whole rows")
	flag.Parse()

	cfg, found, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *pattern != "" {
		cfg.CoinGecko.MergePattern = *pattern
	}
	if *out != "" {
		cfg.CoinGecko.MergeOutput = *out
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	observability.SetupLogging("xarxa-merge", cfg.General)
	log.Info().Bool("config_file", found).Str("pattern", cfg.CoinGecko.MergePattern).Msg("CSV merge - Starting")

	files, err := tabular.Glob(cfg.CoinGecko.MergePattern, cfg.CoinGecko.MergeOutput)
	if err != nil {
		log.Fatal().Err(err).Msg("Bad pattern")
	}

	var keyColumns []string
	for _, k := range strings.Split(*keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keyColumns = append(keyColumns, k)
		}
	}

	header, rows, stats, err := tabular.Merge(files, keyColumns)
	if err != nil {
		log.Fatal().Err(err).Msg("Merge failed")
	}
	for _, f := range stats.Files {
		fmt.Printf("%s loaded, %d rows\n", f.Path, f.Rows)
	}
	if err := tabular.WriteCSV(cfg.CoinGecko.MergeOutput, header, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to write merged CSV")
	}
	fmt.Printf("Merged %d files into %s: %d rows (%d duplicates dropped)\n",
		len(stats.Files), cfg.CoinGecko.MergeOutput, stats.Kept, stats.Duplicates)

	log.Info().Msg("CSV merge - Done")
}
