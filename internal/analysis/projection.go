package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/xarxa-labs/xarxa/internal/graph"
)

// projection maps a flow graph onto gonum graphs. Node ids are the indexes
// of the sorted address list, so id order equals address order.
type projection struct {
	addrs []string
	ids   map[string]int64

	directed   *simple.DirectedGraph
	weighted   *simple.WeightedDirectedGraph
	undirected *simple.UndirectedGraph
}

func project(g *graph.Graph) *projection {
	p := &projection{
		addrs:      g.Addresses(),
		directed:   simple.NewDirectedGraph(),
		weighted:   simple.NewWeightedDirectedGraph(0, math.Inf(1)),
		undirected: simple.NewUndirectedGraph(),
	}
	p.ids = make(map[string]int64, len(p.addrs))
	for i, a := range p.addrs {
		id := int64(i)
		p.ids[a] = id
		p.directed.AddNode(simple.Node(id))
		p.weighted.AddNode(simple.Node(id))
		p.undirected.AddNode(simple.Node(id))
	}
	for _, e := range g.Edges() {
		from, to := simple.Node(p.ids[e.From]), simple.Node(p.ids[e.To])
		p.directed.SetEdge(simple.Edge{F: from, T: to})
		p.weighted.SetWeightedEdge(simple.WeightedEdge{F: from, T: to, W: e.Value.InexactFloat64()})
		p.undirected.SetEdge(simple.Edge{F: from, T: to})
	}
	return p
}

func (p *projection) addr(id int64) string { return p.addrs[id] }

// components returns the weakly connected components, each sorted by id,
// ordered by size descending then by smallest address.
func (p *projection) components() [][]int64 {
	raw := topo.ConnectedComponents(p.undirected)
	out := make([][]int64, 0, len(raw))
	for _, c := range raw {
		ids := make([]int64, len(c))
		for i, n := range c {
			ids[i] = n.ID()
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out = append(out, ids)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}

// diameter returns the longest shortest hop count inside comp on the
// undirected projection, undefined for fewer than two nodes or when some
// pair is unreachable.
func (p *projection) diameter(comp []int64) Metric {
	if len(comp) < 2 {
		return Undefined()
	}
	longest := 0.0
	for _, u := range comp {
		sp := path.DijkstraFrom(p.undirected.Node(u), p.undirected)
		for _, v := range comp {
			if u == v {
				continue
			}
			d := sp.WeightTo(v)
			if math.IsInf(d, 1) {
				return Undefined()
			}
			if d > longest {
				longest = d
			}
		}
	}
	return Of(longest)
}

// betweenness returns normalized directed betweenness per address. With
// weighted set, summed flow is used as the edge length.
func (p *projection) betweenness(weighted bool) map[string]float64 {
	var raw map[int64]float64
	if weighted {
		raw = network.BetweennessWeighted(p.weighted, path.DijkstraAllPaths(p.weighted))
	} else {
		raw = network.Betweenness(p.directed)
	}

	n := len(p.addrs)
	scale := 1.0
	if n > 2 {
		scale = 1 / float64((n-1)*(n-2))
	}
	out := make(map[string]float64, n)
	for i, a := range p.addrs {
		out[a] = raw[int64(i)] * scale
	}
	return out
}
