package graph

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/xarxa-labs/xarxa/internal/mempool"
)

// TxSource yields the raw transaction records of one address. txcache.Cache
// is the production implementation.
type TxSource interface {
	Get(ctx context.Context, address string) ([]json.RawMessage, error)
}

// BuildStats summarises one Build call.
type BuildStats struct {
	Wallets        int `json:"wallets"`
	Transactions   int `json:"transactions"`
	Undecodable    int `json:"undecodable"`
	InputFlows     int `json:"input_flows"`
	OutputFlows    int `json:"output_flows"`
	SkippedInputs  int `json:"skipped_inputs"`  // coinbase / no address / self-spend
	SkippedOutputs int `json:"skipped_outputs"` // no address / change back to the wallet
	SourceErrors   int `json:"source_errors"`
	PrunedNodes    int `json:"pruned_nodes"`
}

// Builder folds per-wallet transactions into a flow graph.
type Builder struct {
	// UnitExponent scales raw amounts to whole units (8: satoshi -> BTC).
	UnitExponent int32
}

// NewBuilder creates a builder for a chain with the given unit exponent.
func NewBuilder(unitExponent int32) *Builder {
	return &Builder{UnitExponent: unitExponent}
}

// Build seeds every directory wallet as a labelled node, then for each
// transaction of wallet w adds source -> w for every input and w -> dest for
// every output whose destination is not w. Inputs funded by w itself are
// skipped too, so self-spends never count toward InFlow(w). Nodes left
// without edges are pruned. Only context cancellation aborts the build;
// per-address source errors are logged and the records returned with them
// are still used.
func (b *Builder) Build(ctx context.Context, dir *Directory, source TxSource) (*Graph, BuildStats, error) {
	g := New()
	var stats BuildStats

	for _, ent := range dir.Entities() {
		for _, w := range ent.Wallets {
			g.AddNode(w, ent.Role, ent.Name)
		}
	}

	for _, ent := range dir.Entities() {
		for _, w := range ent.Wallets {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
			stats.Wallets++

			records, err := source.Get(ctx, w)
			if err != nil {
				stats.SourceErrors++
				log.Warn().Err(err).Str("wallet", w).Str("entity", ent.Name).Msg("graph: transaction source error")
			}

			for _, raw := range records {
				tx, err := mempool.DecodeTransaction(raw)
				if err != nil {
					stats.Undecodable++
					continue
				}
				stats.Transactions++
				b.fold(g, w, tx, &stats)
			}
		}
	}

	stats.PrunedNodes = g.Prune()

	log.Info().
		Int("wallets", stats.Wallets).
		Int("transactions", stats.Transactions).
		Int("nodes", g.NodeCount()).
		Int("edges", g.EdgeCount()).
		Int("pruned", stats.PrunedNodes).
		Msg("graph: built")

	return g, stats, nil
}

func (b *Builder) fold(g *Graph, wallet string, tx mempool.Transaction, stats *BuildStats) {
	for _, in := range tx.Vin {
		src := in.SourceAddress()
		if src == "" || src == wallet {
			stats.SkippedInputs++
			continue
		}
		g.AddFlow(src, wallet, mempool.ToUnits(in.SourceValue(), b.UnitExponent))
		stats.InputFlows++
	}
	for _, out := range tx.Vout {
		dest := out.ScriptPubKeyAddress
		if dest == "" || dest == wallet {
			stats.SkippedOutputs++
			continue
		}
		g.AddFlow(wallet, dest, mempool.ToUnits(out.Value, b.UnitExponent))
		stats.OutputFlows++
	}
}
