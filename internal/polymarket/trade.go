package polymarket

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xarxa-labs/xarxa/internal/graph"
)

// Header is the column layout of a trade export.
var Header = []string{
	"proxyWallet", "side", "asset", "conditionId", "size", "price",
	"timestamp", "outcome", "pseudonym", "transactionHash",
}

// Trade is one fill reported by the Polymarket data API.
type Trade struct {
	ProxyWallet     string          `json:"proxyWallet"`
	Side            string          `json:"side"` // BUY or SELL
	Asset           string          `json:"asset"`
	ConditionID     string          `json:"conditionId"`
	Size            decimal.Decimal `json:"size"`
	Price           decimal.Decimal `json:"price"`
	Timestamp       int64           `json:"timestamp"`
	Outcome         string          `json:"outcome"` // empty while the market is unresolved
	Pseudonym       string          `json:"pseudonym"`
	TransactionHash string          `json:"transactionHash"`
}

// Row renders the trade in Header order.
func (t Trade) Row() []string {
	return []string{
		t.ProxyWallet,
		t.Side,
		t.Asset,
		t.ConditionID,
		t.Size.String(),
		t.Price.String(),
		strconv.FormatInt(t.Timestamp, 10),
		t.Outcome,
		t.Pseudonym,
		t.TransactionHash,
	}
}

// Active reports whether the trade has no recorded outcome yet.
func (t Trade) Active() bool {
	return strings.TrimSpace(t.Outcome) == ""
}

// Aggregate groups trades by wallet and side and sums their size. The result
// is sorted by wallet, then side.
func Aggregate(trades []Trade) []graph.MarketFlow {
	type key struct {
		wallet string
		side   graph.Side
	}
	index := make(map[key]int)
	var out []graph.MarketFlow
	for _, t := range trades {
		k := key{wallet: t.ProxyWallet, side: graph.Side(strings.ToUpper(t.Side))}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, graph.MarketFlow{Wallet: k.wallet, Side: k.side, Size: decimal.Zero})
		}
		out[i].Size = out[i].Size.Add(t.Size)
		out[i].Trades++
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wallet != out[j].Wallet {
			return out[i].Wallet < out[j].Wallet
		}
		return out[i].Side < out[j].Side
	})
	return out
}

// Summary is the volume breakdown of a trade set.
type Summary struct {
	Trades       int             `json:"trades"`
	Wallets      int             `json:"wallets"`
	Volume       decimal.Decimal `json:"volume"`
	ActiveTrades int             `json:"active_trades"`
	ActiveVolume decimal.Decimal `json:"active_volume"`
	PastTrades   int             `json:"past_trades"`
	PastVolume   decimal.Decimal `json:"past_volume"`
}

// Summarize totals size over all trades and splits it into active
// (unresolved) and past trades.
func Summarize(trades []Trade) Summary {
	s := Summary{Volume: decimal.Zero, ActiveVolume: decimal.Zero, PastVolume: decimal.Zero}
	wallets := make(map[string]struct{})
	for _, t := range trades {
		s.Trades++
		s.Volume = s.Volume.Add(t.Size)
		wallets[t.ProxyWallet] = struct{}{}
		if t.Active() {
			s.ActiveTrades++
			s.ActiveVolume = s.ActiveVolume.Add(t.Size)
		} else {
			s.PastTrades++
			s.PastVolume = s.PastVolume.Add(t.Size)
		}
	}
	s.Wallets = len(wallets)
	return s
}
