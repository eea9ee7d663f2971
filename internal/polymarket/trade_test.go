package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xarxa-labs/xarxa/internal/graph"
)

func trade(wallet, side, size, outcome string) Trade {
	return Trade{ProxyWallet: wallet, Side: side, Size: decimal.RequireFromString(size), Outcome: outcome}
}

func TestAggregate(t *testing.T) {
	flows := Aggregate([]Trade{
		trade("0xb", "BUY", "1.25", ""),
		trade("0xa", "SELL", "3", "Yes"),
		trade("0xb", "buy", "0.75", ""),
		trade("0xa", "BUY", "2", ""),
	})

	require.Len(t, flows, 3)
	assert.Equal(t, "0xa", flows[0].Wallet)
	assert.Equal(t, graph.SideBuy, flows[0].Side)
	assert.Equal(t, graph.SideSell, flows[1].Side)
	assert.Equal(t, "0xb", flows[2].Wallet)
	assert.Equal(t, "2", flows[2].Size.String())
	assert.Equal(t, 2, flows[2].Trades)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Trade{
		trade("0xa", "BUY", "10", ""),
		trade("0xa", "SELL", "2.5", "Yes"),
		trade("0xb", "BUY", "1", " "),
	})

	assert.Equal(t, 3, s.Trades)
	assert.Equal(t, 2, s.Wallets)
	assert.Equal(t, "13.5", s.Volume.String())
	assert.Equal(t, 2, s.ActiveTrades)
	assert.Equal(t, "11", s.ActiveVolume.String())
	assert.Equal(t, 1, s.PastTrades)
	assert.Equal(t, "2.5", s.PastVolume.String())

	empty := Summarize(nil)
	assert.True(t, empty.Volume.IsZero())
	assert.Equal(t, 0, empty.Trades)
}

func TestTrade_DecodeAndRow(t *testing.T) {
	var tr Trade
	require.NoError(t, json.Unmarshal([]byte(`{
		"proxyWallet": "0xabc", "side": "SELL", "asset": "123", "conditionId": "0xcond",
		"size": 25.5, "price": 0.035, "timestamp": 1718000000,
		"outcome": null, "pseudonym": "Quiet-Fox", "transactionHash": "0xhash"
	}`), &tr))

	assert.True(t, tr.Active())
	assert.Equal(t, []string{"0xabc", "SELL", "123", "0xcond", "25.5", "0.035", "1718000000", "", "Quiet-Fox", "0xhash"}, tr.Row())
	assert.Len(t, Header, len(tr.Row()))
}

func TestAggregateFeedsMarketGraph(t *testing.T) {
	g := graph.BuildMarketGraph("Market", Aggregate([]Trade{
		trade("0xa", "BUY", "4", ""),
		trade("0xa", "SELL", "1", ""),
		trade("0xb", "SELL", "2", ""),
	}))

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, "4", g.InFlow("Market").String())
	assert.Equal(t, "3", g.OutFlow("Market").String())
}
