// Package analysis computes the network report of a finished flow graph.
// Every computation is deterministic for a fixed graph and degrades to an
// undefined Metric instead of failing on degenerate input.
package analysis

import (
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/xarxa-labs/xarxa/internal/graph"
)

// DefaultTopN is the ranking length when Options.TopN is unset.
const DefaultTopN = 5

// Options tunes Analyze.
type Options struct {
	TopN int
	// WeightedBetweenness uses summed flow as edge length for betweenness.
	WeightedBetweenness bool
	// Directory enables per-entity statistics. May be nil.
	Directory *graph.Directory
}

// Ranked is one entry of a top-N list.
type Ranked struct {
	Address string          `json:"address"`
	Role    graph.Role      `json:"role"`
	Label   string          `json:"label"`
	Value   decimal.Decimal `json:"value"`
}

// Bridge is a user node touching two or more distinct labelled nodes.
type Bridge struct {
	Address  string          `json:"address"`
	Labelled []string        `json:"labelled"` // adjacent labelled addresses, sorted
	Entities []string        `json:"entities"` // distinct labels of those addresses, sorted
	Flow     decimal.Decimal `json:"flow"`     // total incident flow
}

// EntityStats aggregates the wallets of one directory entity.
type EntityStats struct {
	Name    string          `json:"name"`
	Role    graph.Role      `json:"role"`
	Wallets int             `json:"wallets"` // wallets present in the graph
	Degree  int             `json:"degree"`
	InFlow  decimal.Decimal `json:"in_flow"`
	OutFlow decimal.Decimal `json:"out_flow"`
}

// Balance is the flow position of one address.
type Balance struct {
	Address string          `json:"address"`
	In      decimal.Decimal `json:"in"`
	Out     decimal.Decimal `json:"out"`
	Net     decimal.Decimal `json:"net"` // In - Out
}

// Report is the complete analysis of one graph.
type Report struct {
	Nodes int                `json:"nodes"`
	Edges int                `json:"edges"`
	Roles map[graph.Role]int `json:"roles"`

	Components       int    `json:"components"`
	LargestComponent int    `json:"largest_component"`
	AverageDegree    Metric `json:"average_degree"`
	Diameter         Metric `json:"diameter"`

	DegreeCentrality map[string]float64 `json:"degree_centrality"`
	Betweenness      map[string]float64 `json:"betweenness"`
	Weighted         bool               `json:"weighted_betweenness"`

	Bridges   []Bridge `json:"bridges"`
	TopBridge *Bridge  `json:"top_bridge,omitempty"`

	RoleAssortativity        Metric `json:"role_assortativity"`
	DegreeAssortativity      Metric `json:"degree_assortativity"`
	BetweennessAssortativity Metric `json:"betweenness_assortativity"`

	TopDegree         []Ranked `json:"top_degree"`
	TopWeightedDegree []Ranked `json:"top_weighted_degree"`
	TopBetweenness    []Ranked `json:"top_betweenness"`

	Entities  []EntityStats   `json:"entities,omitempty"`
	TotalFlow decimal.Decimal `json:"total_flow"`
}

// Analyze computes the full report for g.
func Analyze(g *graph.Graph, opts Options) *Report {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}

	r := &Report{
		Nodes:     g.NodeCount(),
		Edges:     g.EdgeCount(),
		Roles:     g.CountByRole(),
		Weighted:  opts.WeightedBetweenness,
		TotalFlow: decimal.Zero,
	}
	for _, e := range g.Edges() {
		r.TotalFlow = r.TotalFlow.Add(e.Value)
	}

	p := project(g)

	comps := p.components()
	r.Components = len(comps)
	if len(comps) > 0 {
		r.LargestComponent = len(comps[0])
		r.Diameter = p.diameter(comps[0])
	}

	r.AverageDegree = AverageDegree(g)
	r.DegreeCentrality = DegreeCentrality(g)
	r.Betweenness = p.betweenness(opts.WeightedBetweenness)

	r.Bridges = Bridges(g)
	r.TopBridge = TopBridge(r.Bridges)

	r.RoleAssortativity = RoleAssortativity(g)
	r.DegreeAssortativity = DegreeAssortativity(g)
	r.BetweennessAssortativity = NumericAssortativity(g, r.Betweenness)

	r.TopDegree = TopN(g, func(a string) decimal.Decimal {
		return decimal.NewFromInt(int64(g.Degree(a)))
	}, opts.TopN)
	r.TopWeightedDegree = TopN(g, g.TotalFlow, opts.TopN)
	r.TopBetweenness = TopN(g, func(a string) decimal.Decimal {
		return decimal.NewFromFloat(r.Betweenness[a])
	}, opts.TopN)

	if opts.Directory != nil {
		r.Entities = PerEntity(g, opts.Directory)
	}

	log.Debug().
		Int("nodes", r.Nodes).
		Int("edges", r.Edges).
		Int("components", r.Components).
		Int("bridges", len(r.Bridges)).
		Msg("analysis: report computed")

	return r
}

// AverageDegree is Σdeg / n, undefined for an empty graph.
func AverageDegree(g *graph.Graph) Metric {
	n := g.NodeCount()
	if n == 0 {
		return Undefined()
	}
	return Of(2 * float64(g.EdgeCount()) / float64(n))
}

// DegreeCentrality returns (in+out)/(n-1) per address, 0 when n <= 1.
func DegreeCentrality(g *graph.Graph) map[string]float64 {
	addrs := g.Addresses()
	out := make(map[string]float64, len(addrs))
	n := len(addrs)
	for _, a := range addrs {
		if n <= 1 {
			out[a] = 0
			continue
		}
		out[a] = float64(g.Degree(a)) / float64(n-1)
	}
	return out
}

// Bridges returns every user node adjacent, in either direction, to at
// least two distinct labelled nodes, sorted by address.
func Bridges(g *graph.Graph) []Bridge {
	var out []Bridge
	for _, n := range g.Nodes() {
		if n.Role.Labelled() {
			continue
		}
		var labelled []string
		names := make(map[string]struct{})
		for _, nb := range g.Neighbors(n.Address) {
			other, _ := g.Node(nb)
			if !other.Role.Labelled() {
				continue
			}
			labelled = append(labelled, nb)
			names[other.Label] = struct{}{}
		}
		if len(labelled) < 2 {
			continue
		}
		entities := make([]string, 0, len(names))
		for name := range names {
			entities = append(entities, name)
		}
		sort.Strings(entities)
		out = append(out, Bridge{
			Address:  n.Address,
			Labelled: labelled,
			Entities: entities,
			Flow:     g.TotalFlow(n.Address),
		})
	}
	return out
}

// TopBridge picks the bridge with the highest total flow; ties go to the
// lexicographically smallest address. Nil when there are no bridges.
func TopBridge(bridges []Bridge) *Bridge {
	var best *Bridge
	for i := range bridges {
		b := &bridges[i]
		if best == nil {
			best = b
			continue
		}
		c := b.Flow.Cmp(best.Flow)
		if c > 0 || (c == 0 && b.Address < best.Address) {
			best = b
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

// TopN ranks every node by score, highest first, ties by address ascending,
// and returns at most n entries.
func TopN(g *graph.Graph, score func(address string) decimal.Decimal, n int) []Ranked {
	nodes := g.Nodes()
	ranked := make([]Ranked, 0, len(nodes))
	for _, nd := range nodes {
		ranked = append(ranked, Ranked{
			Address: nd.Address,
			Role:    nd.Role,
			Label:   nd.Label,
			Value:   score(nd.Address),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if c := ranked[i].Value.Cmp(ranked[j].Value); c != 0 {
			return c > 0
		}
		return ranked[i].Address < ranked[j].Address
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// PerEntity aggregates degree and flow over each entity's wallets present in g.
func PerEntity(g *graph.Graph, dir *graph.Directory) []EntityStats {
	ents := dir.Entities()
	out := make([]EntityStats, 0, len(ents))
	for _, ent := range ents {
		st := EntityStats{Name: ent.Name, Role: ent.Role, InFlow: decimal.Zero, OutFlow: decimal.Zero}
		for _, w := range ent.Wallets {
			if !g.Has(w) {
				continue
			}
			st.Wallets++
			st.Degree += g.Degree(w)
			st.InFlow = st.InFlow.Add(g.InFlow(w))
			st.OutFlow = st.OutFlow.Add(g.OutFlow(w))
		}
		out = append(out, st)
	}
	return out
}

// FlowBalance returns the inflow, outflow and net position of address.
func FlowBalance(g *graph.Graph, address string) Balance {
	in, out := g.InFlow(address), g.OutFlow(address)
	return Balance{Address: address, In: in, Out: out, Net: in.Sub(out)}
}
