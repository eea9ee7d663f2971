package analysis

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/xarxa-labs/xarxa/internal/graph"
)

// RoleAssortativity is the attribute assortativity coefficient of node roles
// over directed edges: r = (tr(e) - Σ a_i b_i) / (1 - Σ a_i b_i), where e is
// the normalized role mixing matrix and a, b its row and column sums.
// Undefined without edges or when every edge joins the same pair of roles.
func RoleAssortativity(g *graph.Graph) Metric {
	edges := g.Edges()
	if len(edges) == 0 {
		return Undefined()
	}

	roleOf := make(map[string]graph.Role, g.NodeCount())
	seen := make(map[graph.Role]struct{})
	for _, n := range g.Nodes() {
		roleOf[n.Address] = n.Role
		seen[n.Role] = struct{}{}
	}
	roles := make([]graph.Role, 0, len(seen))
	for r := range seen {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	idx := make(map[graph.Role]int, len(roles))
	for i, r := range roles {
		idx[r] = i
	}

	k := len(roles)
	mix := mat.NewDense(k, k, nil)
	for _, e := range edges {
		i, j := idx[roleOf[e.From]], idx[roleOf[e.To]]
		mix.Set(i, j, mix.At(i, j)+1)
	}
	mix.Scale(1/float64(len(edges)), mix)

	var ab float64
	for i := 0; i < k; i++ {
		ab += mat.Sum(mix.RowView(i)) * mat.Sum(mix.ColView(i))
	}
	den := 1 - ab
	if den == 0 {
		return Undefined()
	}
	return Of((mat.Trace(mix) - ab) / den)
}

// DegreeAssortativity correlates the source's out-degree with the target's
// in-degree across all edges.
func DegreeAssortativity(g *graph.Graph) Metric {
	return edgeCorrelation(g,
		func(a string) float64 { return float64(g.OutDegree(a)) },
		func(a string) float64 { return float64(g.InDegree(a)) })
}

// NumericAssortativity correlates a per-node value between the two ends of
// every edge. Missing nodes count as 0.
func NumericAssortativity(g *graph.Graph, values map[string]float64) Metric {
	f := func(a string) float64 { return values[a] }
	return edgeCorrelation(g, f, f)
}

func edgeCorrelation(g *graph.Graph, src, dst func(string) float64) Metric {
	edges := g.Edges()
	if len(edges) < 2 {
		return Undefined()
	}
	xs := make([]float64, len(edges))
	ys := make([]float64, len(edges))
	for i, e := range edges {
		xs[i] = src(e.From)
		ys[i] = dst(e.To)
	}
	return Of(stat.Correlation(xs, ys, nil))
}
