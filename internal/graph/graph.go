package graph

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Flow Graph: directed fund flow between addresses
// One merged edge per ordered pair; weight = summed transferred value.
// ---------------------------------------------------------------------------

// Role classifies a node.
type Role string

const (
	RoleUser     Role = "user"
	RoleExchange Role = "exchange"
	RoleMarket   Role = "market"
)

// Labelled reports whether the role marks a known entity rather than an
// anonymous user.
func (r Role) Labelled() bool {
	return r != RoleUser && r != ""
}

// Node represents an address in the graph.
type Node struct {
	Address string `json:"address"`
	Role    Role   `json:"role"`
	Label   string `json:"label"` // entity name for labelled nodes, "" for users
}

// Edge is the merged flow from one address to another.
type Edge struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Value     decimal.Decimal `json:"value"`
	Transfers int             `json:"transfers"` // contributions folded into Value
}

// Graph is a directed flow graph. It is not safe for concurrent mutation.
type Graph struct {
	nodes  map[string]*Node
	adjOut map[string]map[string]*Edge // from -> to -> edge
	adjIn  map[string]map[string]*Edge // to -> from -> edge
	edges  int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:  make(map[string]*Node),
		adjOut: make(map[string]map[string]*Edge),
		adjIn:  make(map[string]map[string]*Edge),
	}
}

// AddNode inserts address or updates its role. A labelled role is never
// downgraded to user, so wallets seeded from the directory keep their label
// when they later show up as counterparties.
func (g *Graph) AddNode(address string, role Role, label string) *Node {
	if role == "" {
		role = RoleUser
	}
	n, ok := g.nodes[address]
	if !ok {
		n = &Node{Address: address, Role: role, Label: label}
		g.nodes[address] = n
		return n
	}
	if role.Labelled() && !n.Role.Labelled() {
		n.Role = role
		n.Label = label
	}
	return n
}

// AddFlow records value moving from -> to, creating user nodes as needed.
// Self-flows and empty endpoints are ignored; it reports whether the flow was
// recorded.
func (g *Graph) AddFlow(from, to string, value decimal.Decimal) bool {
	if from == "" || to == "" || from == to {
		return false
	}
	g.AddNode(from, RoleUser, "")
	g.AddNode(to, RoleUser, "")

	out := g.adjOut[from]
	if out == nil {
		out = make(map[string]*Edge)
		g.adjOut[from] = out
	}
	e, ok := out[to]
	if !ok {
		e = &Edge{From: from, To: to}
		out[to] = e
		in := g.adjIn[to]
		if in == nil {
			in = make(map[string]*Edge)
			g.adjIn[to] = in
		}
		in[from] = e
		g.edges++
	}
	e.Value = e.Value.Add(value)
	e.Transfers++
	return true
}

// Prune removes every node without incident edges and returns how many were
// removed.
func (g *Graph) Prune() int {
	removed := 0
	for addr := range g.nodes {
		if len(g.adjOut[addr]) == 0 && len(g.adjIn[addr]) == 0 {
			delete(g.nodes, addr)
			delete(g.adjOut, addr)
			delete(g.adjIn, addr)
			removed++
		}
	}
	return removed
}

// Node returns the node for address.
func (g *Graph) Node(address string) (Node, bool) {
	n, ok := g.nodes[address]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Has reports whether address is a node.
func (g *Graph) Has(address string) bool {
	_, ok := g.nodes[address]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of merged edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Nodes returns all nodes sorted by address.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Addresses returns all node addresses sorted.
func (g *Graph) Addresses() []string {
	out := make([]string, 0, len(g.nodes))
	for a := range g.nodes {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Edges returns all edges sorted by (from, to).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edges)
	for _, tos := range g.adjOut {
		for _, e := range tos {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Edge returns the merged edge from -> to.
func (g *Graph) Edge(from, to string) (Edge, bool) {
	e, ok := g.adjOut[from][to]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// Successors returns the sorted targets of address's outgoing edges.
func (g *Graph) Successors(address string) []string {
	return sortedKeys(g.adjOut[address])
}

// Predecessors returns the sorted sources of address's incoming edges.
func (g *Graph) Predecessors(address string) []string {
	return sortedKeys(g.adjIn[address])
}

// Neighbors returns the sorted union of predecessors and successors.
func (g *Graph) Neighbors(address string) []string {
	seen := make(map[string]struct{}, len(g.adjOut[address])+len(g.adjIn[address]))
	for to := range g.adjOut[address] {
		seen[to] = struct{}{}
	}
	for from := range g.adjIn[address] {
		seen[from] = struct{}{}
	}
	return sortedKeys(seen)
}

// OutDegree returns the number of outgoing edges.
func (g *Graph) OutDegree(address string) int { return len(g.adjOut[address]) }

// InDegree returns the number of incoming edges.
func (g *Graph) InDegree(address string) int { return len(g.adjIn[address]) }

// Degree returns in-degree plus out-degree.
func (g *Graph) Degree(address string) int {
	return g.InDegree(address) + g.OutDegree(address)
}

// InFlow returns the summed value of incoming edges.
func (g *Graph) InFlow(address string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range g.adjIn[address] {
		total = total.Add(e.Value)
	}
	return total
}

// OutFlow returns the summed value of outgoing edges.
func (g *Graph) OutFlow(address string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range g.adjOut[address] {
		total = total.Add(e.Value)
	}
	return total
}

// TotalFlow returns inflow plus outflow (the weighted degree).
func (g *Graph) TotalFlow(address string) decimal.Decimal {
	return g.InFlow(address).Add(g.OutFlow(address))
}

// CountByRole returns node counts per role.
func (g *Graph) CountByRole() map[Role]int {
	counts := make(map[Role]int)
	for _, n := range g.nodes {
		counts[n.Role]++
	}
	return counts
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
