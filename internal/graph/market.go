package graph

import (
	"github.com/shopspring/decimal"
)

// Side is the direction of a prediction-market trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// MarketFlow is one wallet's aggregated volume on one side of a market.
type MarketFlow struct {
	Wallet string          `json:"wallet"`
	Side   Side            `json:"side"`
	Size   decimal.Decimal `json:"size"`
	Trades int             `json:"trades"`
}

// BuildMarketGraph builds a star graph around a single market node. BUY
// volume flows wallet -> market, SELL volume market -> wallet. Flows with an
// unknown side, an empty wallet or a non-positive size are dropped.
func BuildMarketGraph(market string, flows []MarketFlow) *Graph {
	g := New()
	if market == "" {
		return g
	}
	g.AddNode(market, RoleMarket, market)

	for _, f := range flows {
		if f.Wallet == "" || f.Wallet == market || !f.Size.IsPositive() {
			continue
		}
		switch f.Side {
		case SideBuy:
			g.AddFlow(f.Wallet, market, f.Size)
		case SideSell:
			g.AddFlow(market, f.Wallet, f.Size)
		}
	}

	g.Prune()
	return g
}
