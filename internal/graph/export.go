package graph

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/xarxa-labs/xarxa/internal/atomicfile"
)

// ---------------------------------------------------------------------------
// Export: Graphviz DOT and vis-network style JSON
// ---------------------------------------------------------------------------

const (
	colorLabelled = "red"
	colorUser     = "skyblue"
	colorMarket   = "orange"

	minNodeSize = 0.2
	sizePerEdge = 0.05
	maxNodeSize = 2.0
)

func nodeColor(r Role) string {
	switch r {
	case RoleMarket:
		return colorMarket
	case RoleUser, "":
		return colorUser
	default:
		return colorLabelled
	}
}

func nodeSize(degree int) float64 {
	s := minNodeSize + sizePerEdge*float64(degree)
	if s > maxNodeSize {
		return maxNodeSize
	}
	return s
}

// WriteDOT renders g as a Graphviz digraph. Node size grows with degree;
// only labelled nodes carry a visible label.
func WriteDOT(w io.Writer, g *Graph) error {
	bw := &errWriter{w: w}
	bw.printf("digraph flows {\n")
	bw.printf("  node [shape=circle, style=filled, fixedsize=true];\n")
	bw.printf("  edge [arrowsize=0.5];\n")

	for _, n := range g.Nodes() {
		label := ""
		if n.Role.Labelled() {
			label = n.Label
		}
		size := nodeSize(g.Degree(n.Address))
		bw.printf("  %q [label=%q, fillcolor=%q, width=%.2f, height=%.2f];\n",
			n.Address, label, nodeColor(n.Role), size, size)
	}
	for _, e := range g.Edges() {
		bw.printf("  %q -> %q [label=%q];\n", e.From, e.To, e.Value.String())
	}
	bw.printf("}\n")
	return bw.err
}

type jsonNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Group Role   `json:"group"`
	Color string `json:"color"`
	Value int    `json:"value"`
	Title string `json:"title"`
}

type jsonEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Value  string `json:"value"`
	Count  int    `json:"count"`
	Arrows string `json:"arrows"`
}

type jsonDoc struct {
	Nodes []jsonNode `json:"nodes"`
	Edges []jsonEdge `json:"edges"`
}

// WriteJSON writes g as a {"nodes": [...], "edges": [...]} document that a
// vis-network page can load directly. Edge values are decimal strings.
func WriteJSON(w io.Writer, g *Graph) error {
	doc := jsonDoc{
		Nodes: make([]jsonNode, 0, g.NodeCount()),
		Edges: make([]jsonEdge, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		label := ""
		if n.Role.Labelled() {
			label = n.Label
		}
		doc.Nodes = append(doc.Nodes, jsonNode{
			ID:    n.Address,
			Label: label,
			Group: n.Role,
			Color: nodeColor(n.Role),
			Value: g.Degree(n.Address),
			Title: fmt.Sprintf("%s (in %s, out %s)", n.Address, g.InFlow(n.Address), g.OutFlow(n.Address)),
		})
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, jsonEdge{
			From:   e.From,
			To:     e.To,
			Value:  e.Value.String(),
			Count:  e.Transfers,
			Arrows: "to",
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("graph: encode json: %w", err)
	}
	return nil
}

// SaveDOT writes the DOT rendering of g to path atomically.
func SaveDOT(path string, g *Graph) error {
	if err := atomicfile.WriteFunc(path, func(w io.Writer) error { return WriteDOT(w, g) }); err != nil {
		return fmt.Errorf("graph: save dot: %w", err)
	}
	log.Info().Str("path", path).Int("nodes", g.NodeCount()).Msg("graph: dot exported")
	return nil
}

// SaveJSON writes the JSON rendering of g to path atomically.
func SaveJSON(path string, g *Graph) error {
	if err := atomicfile.WriteFunc(path, func(w io.Writer) error { return WriteJSON(w, g) }); err != nil {
		return fmt.Errorf("graph: save json: %w", err)
	}
	log.Info().Str("path", path).Int("nodes", g.NodeCount()).Msg("graph: json exported")
	return nil
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
