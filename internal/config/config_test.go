package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "xarxa-config-*.yaml")
	require.NoError(t, err)

	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

func TestLoadConfig(t *testing.T) {
	yaml := `
general:
  instance_id: "test-node"
  log_level: "debug"
  log_format: "json"

mempool:
  base_url: "http://localhost:8999/api"
  timeout_s: 5
  max_tx: 25

cache:
  path: "/tmp/cache.json"

exchanges:
  - name: Binance
    wallets:
      - "1NDyJtNTjmwk5xPNhjgAMu4HDHigtobu1s"
  - name: Kraken
    wallets:
      - "3KUhH7Mg7Uq4Gr3yXSCPSnP8bvt6Zux6p7"
      - "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"

coingecko:
  coin_id: "ethereum"
  start_page: 25

report:
  top_n: 10
  weighted_betweenness: true
`
	cfg, err := Load(writeConfig(t, yaml))
	require.NoError(t, err)

	assert.Equal(t, "test-node", cfg.General.InstanceID)
	assert.Equal(t, "json", cfg.General.LogFormat)
	assert.Equal(t, "http://localhost:8999/api", cfg.Mempool.BaseURL)
	assert.Equal(t, 5, cfg.Mempool.TimeoutS)
	assert.Equal(t, 25, cfg.Mempool.MaxTx)
	assert.Equal(t, "/tmp/cache.json", cfg.Cache.Path)
	require.Len(t, cfg.Exchanges, 2)
	assert.Equal(t, "Binance", cfg.Exchanges[0].Name)
	assert.Equal(t, []string{"3KUhH7Mg7Uq4Gr3yXSCPSnP8bvt6Zux6p7", "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"}, cfg.Exchanges[1].Wallets)
	assert.Equal(t, "ethereum", cfg.CoinGecko.CoinID)
	assert.Equal(t, 25, cfg.CoinGecko.StartPage)
	assert.Equal(t, 10, cfg.Report.TopN)
	assert.True(t, cfg.Report.WeightedBetweenness)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigExplicitZeroExponent(t *testing.T) {
	cfg, err := Load(writeConfig(t, "mempool:\n  unit_exponent: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Mempool.UnitExponent)
	assert.Equal(t, int32(0), cfg.Mempool.Exponent())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "general:\n  log_level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, "xarxa-1", cfg.General.InstanceID)
	assert.Equal(t, "warn", cfg.General.LogLevel)
	assert.Equal(t, "https://mempool.space/api", cfg.Mempool.BaseURL)
	assert.Equal(t, 10, cfg.Mempool.TimeoutS)
	assert.Equal(t, 50, cfg.Mempool.MaxTx)
	assert.Equal(t, int32(8), cfg.Mempool.Exponent())
	assert.Equal(t, "transactions_cache.json", cfg.Cache.Path)
	assert.Empty(t, cfg.Exchanges)
	assert.Equal(t, "bitcoin", cfg.CoinGecko.CoinID)
	assert.Equal(t, 1, cfg.CoinGecko.StartPage)
	assert.Equal(t, 10000, cfg.Polymarket.PageLimit)
	assert.Equal(t, 5, cfg.Report.TopN)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	t.Setenv("TEST_XARXA_MARKET", "will-it-rain")

	cfg, err := Load(writeConfig(t, "polymarket:\n  market_id: \"${TEST_XARXA_MARKET}\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "will-it-rain", cfg.Polymarket.MarketID)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/xarxa.yaml")
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, found, err := LoadOrDefault("/nonexistent/xarxa.yaml")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, Default(), cfg)

	cfg, found, err = LoadOrDefault(writeConfig(t, "report:\n  top_n: 9\n"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 9, cfg.Report.TopN)

	_, _, err = LoadOrDefault(writeConfig(t, "report: [unclosed"))
	assert.Error(t, err)
}

func TestLoadConfigMalformed(t *testing.T) {
	_, err := Load(writeConfig(t, "mempool: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("duplicate wallet", func(t *testing.T) {
		cfg := Default()
		cfg.Exchanges = []ExchangeConfig{
			{Name: "A", Wallets: []string{"w1"}},
			{Name: "B", Wallets: []string{"w2", "w1"}},
		}
		assert.ErrorContains(t, cfg.Validate(), "w1")
	})

	t.Run("empty exchange name", func(t *testing.T) {
		cfg := Default()
		cfg.Exchanges = []ExchangeConfig{{Wallets: []string{"w1"}}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad start page", func(t *testing.T) {
		cfg := Default()
		cfg.CoinGecko.StartPage = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("unit exponent out of range", func(t *testing.T) {
		cfg := Default()
		exp := int32(40)
		cfg.Mempool.UnitExponent = &exp
		assert.Error(t, cfg.Validate())
	})

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})
}
