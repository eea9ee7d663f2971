package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for xarxa.
type Config struct {
	General    GeneralConfig    `yaml:"general"`
	Mempool    MempoolConfig    `yaml:"mempool"`
	Cache      CacheConfig      `yaml:"cache"`
	Exchanges  []ExchangeConfig `yaml:"exchanges"`
	CoinGecko  CoinGeckoConfig  `yaml:"coingecko"`
	Polymarket PolymarketConfig `yaml:"polymarket"`
	Report     ReportConfig     `yaml:"report"`
}

type GeneralConfig struct {
	InstanceID string `yaml:"instance_id"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"` // json|text
}

type MempoolConfig struct {
	BaseURL       string `yaml:"base_url"`
	WSURL         string `yaml:"ws_url"`
	TimeoutS      int    `yaml:"timeout_s"`
	MaxTx         int    `yaml:"max_tx"`        // first N records kept per address
	UnitExponent  *int32 `yaml:"unit_exponent"` // 8 = satoshi -> BTC, 0 = whole units
	PingIntervalS int    `yaml:"ping_interval_s"`
}

// DefaultUnitExponent converts satoshi to BTC.
const DefaultUnitExponent int32 = 8

// Exponent returns the configured unit exponent. An explicit 0 is kept;
// only an absent key falls back to DefaultUnitExponent.
func (m MempoolConfig) Exponent() int32 {
	if m.UnitExponent == nil {
		return DefaultUnitExponent
	}
	return *m.UnitExponent
}

type CacheConfig struct {
	Path string `yaml:"path"`
}

// ExchangeConfig names a labelled entity and the wallets attributed to it.
// An empty exchanges list selects the built-in wallet directory.
type ExchangeConfig struct {
	Name    string   `yaml:"name"`
	Wallets []string `yaml:"wallets"`
}

type CoinGeckoConfig struct {
	BaseURL           string  `yaml:"base_url"`
	CoinID            string  `yaml:"coin_id"`
	VsCurrency        string  `yaml:"vs_currency"`
	StartPage         int     `yaml:"start_page"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	TimeoutS          int     `yaml:"timeout_s"`
	Output            string  `yaml:"output"`
	MergePattern      string  `yaml:"merge_pattern"`
	MergeOutput       string  `yaml:"merge_output"`
}

type PolymarketConfig struct {
	BaseURL   string `yaml:"base_url"`
	MarketID  string `yaml:"market_id"`
	PageLimit int    `yaml:"page_limit"`
	PauseMs   int    `yaml:"pause_ms"` // delay between pages
	TimeoutS  int    `yaml:"timeout_s"`
	Output    string `yaml:"output"`
}

type ReportConfig struct {
	TopN                int    `yaml:"top_n"`
	WeightedBetweenness bool   `yaml:"weighted_betweenness"`
	DOTPath             string `yaml:"dot_path"`
	JSONPath            string `yaml:"json_path"`
}

// Load reads and parses a YAML configuration file. A .env file in the working
// directory, when present, is loaded first so ${VAR} references resolve.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist. The boolean reports whether the file was read.
func LoadOrDefault(path string) (*Config, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), false, nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// Default returns a configuration with every default applied, for running
// without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "xarxa-1"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "text"
	}
	if cfg.Mempool.BaseURL == "" {
		cfg.Mempool.BaseURL = "https://mempool.space/api"
	}
	if cfg.Mempool.WSURL == "" {
		cfg.Mempool.WSURL = "wss://mempool.space/api/v1/ws"
	}
	if cfg.Mempool.TimeoutS == 0 {
		cfg.Mempool.TimeoutS = 10
	}
	if cfg.Mempool.MaxTx == 0 {
		cfg.Mempool.MaxTx = 50
	}
	if cfg.Mempool.UnitExponent == nil {
		exp := DefaultUnitExponent
		cfg.Mempool.UnitExponent = &exp
	}
	if cfg.Mempool.PingIntervalS == 0 {
		cfg.Mempool.PingIntervalS = 30
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = "transactions_cache.json"
	}
	if cfg.CoinGecko.BaseURL == "" {
		cfg.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.CoinGecko.CoinID == "" {
		cfg.CoinGecko.CoinID = "bitcoin"
	}
	if cfg.CoinGecko.VsCurrency == "" {
		cfg.CoinGecko.VsCurrency = "usd"
	}
	if cfg.CoinGecko.StartPage == 0 {
		cfg.CoinGecko.StartPage = 1
	}
	if cfg.CoinGecko.RequestsPerMinute == 0 {
		cfg.CoinGecko.RequestsPerMinute = 10 // public tier
	}
	if cfg.CoinGecko.TimeoutS == 0 {
		cfg.CoinGecko.TimeoutS = 10
	}
	if cfg.CoinGecko.Output == "" {
		cfg.CoinGecko.Output = "btc_markets_all.csv"
	}
	if cfg.CoinGecko.MergePattern == "" {
		cfg.CoinGecko.MergePattern = "btc_markets_all*.csv"
	}
	if cfg.CoinGecko.MergeOutput == "" {
		cfg.CoinGecko.MergeOutput = "btc_markets_combined.csv"
	}
	if cfg.Polymarket.BaseURL == "" {
		cfg.Polymarket.BaseURL = "https://data-api.polymarket.com"
	}
	if cfg.Polymarket.PageLimit == 0 {
		cfg.Polymarket.PageLimit = 10000
	}
	if cfg.Polymarket.PauseMs == 0 {
		cfg.Polymarket.PauseMs = 1000
	}
	if cfg.Polymarket.TimeoutS == 0 {
		cfg.Polymarket.TimeoutS = 10
	}
	if cfg.Polymarket.Output == "" {
		cfg.Polymarket.Output = "polymarket_all_trades.csv"
	}
	if cfg.Report.TopN == 0 {
		cfg.Report.TopN = 5
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Mempool.BaseURL == "" {
		return fmt.Errorf("mempool.base_url is required")
	}
	if c.Mempool.TimeoutS < 0 {
		return fmt.Errorf("mempool.timeout_s must be positive, got %d", c.Mempool.TimeoutS)
	}
	if c.Mempool.MaxTx < 0 {
		return fmt.Errorf("mempool.max_tx must be positive, got %d", c.Mempool.MaxTx)
	}
	if exp := c.Mempool.Exponent(); exp < 0 || exp > 18 {
		return fmt.Errorf("mempool.unit_exponent out of range: %d", exp)
	}
	if c.CoinGecko.StartPage < 1 {
		return fmt.Errorf("coingecko.start_page must be >= 1, got %d", c.CoinGecko.StartPage)
	}
	if c.CoinGecko.RequestsPerMinute < 0 {
		return fmt.Errorf("coingecko.requests_per_minute must be positive")
	}
	if c.Polymarket.PageLimit < 0 {
		return fmt.Errorf("polymarket.page_limit must be positive, got %d", c.Polymarket.PageLimit)
	}
	if c.Report.TopN < 0 {
		return fmt.Errorf("report.top_n must be positive, got %d", c.Report.TopN)
	}

	seen := make(map[string]string)
	for _, ex := range c.Exchanges {
		if ex.Name == "" {
			return fmt.Errorf("exchanges: entry with empty name")
		}
		for _, w := range ex.Wallets {
			if prev, ok := seen[w]; ok {
				return fmt.Errorf("exchanges: wallet %s listed under both %s and %s", w, prev, ex.Name)
			}
			seen[w] = ex.Name
		}
	}
	return nil
}
