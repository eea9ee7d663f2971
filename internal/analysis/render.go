package analysis

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xarxa-labs/xarxa/internal/graph"
)

// Render writes the human-readable report.
func Render(w io.Writer, r *Report) error {
	ew := &errWriter{w: w}

	ew.line("=== Flow network report ===")
	ew.line("Nodes: %d", r.Nodes)
	ew.line("Edges: %d", r.Edges)
	ew.line("Roles: %s", formatRoles(r.Roles))
	ew.line("Total flow: %s", r.TotalFlow.String())
	ew.line("")

	ew.line("Weakly connected components: %d", r.Components)
	ew.line("Largest component size: %d", r.LargestComponent)
	ew.line("Average degree: %s", r.AverageDegree.Format(4, PlaceholderUndefined))
	ew.line("Diameter (largest component): %s", r.Diameter.Format(0, PlaceholderNotComputable))
	ew.line("")

	ew.line("Assortativity by role: %s", r.RoleAssortativity)
	ew.line("Assortativity by degree: %s", r.DegreeAssortativity)
	ew.line("Assortativity by betweenness: %s", r.BetweennessAssortativity)
	ew.line("")

	ew.ranking("Top nodes by degree", r.TopDegree, 0)
	ew.ranking("Top nodes by weighted degree", r.TopWeightedDegree, -1)
	title := "Top nodes by betweenness"
	if r.Weighted {
		title += " (flow-weighted)"
	}
	ew.ranking(title, r.TopBetweenness, 4)

	ew.line("Bridge nodes: %d", len(r.Bridges))
	for _, b := range r.Bridges {
		ew.line("  %s  flow=%s  entities=%s", b.Address, b.Flow.String(), strings.Join(b.Entities, ","))
	}
	if r.TopBridge != nil {
		ew.line("Top bridge: %s (flow %s, %d labelled neighbours)",
			r.TopBridge.Address, r.TopBridge.Flow.String(), len(r.TopBridge.Labelled))
	} else {
		ew.line("Top bridge: none")
	}

	if len(r.Entities) > 0 {
		ew.line("")
		ew.line("Entities:")
		for _, e := range r.Entities {
			ew.line("  %-12s wallets=%d degree=%d in=%s out=%s",
				e.Name, e.Wallets, e.Degree, e.InFlow.String(), e.OutFlow.String())
		}
	}
	return ew.err
}

// RenderBalance writes one address's flow position.
func RenderBalance(w io.Writer, b Balance) error {
	_, err := fmt.Fprintf(w, "%s  in=%s  out=%s  net=%s\n", b.Address, b.In.String(), b.Out.String(), b.Net.String())
	return err
}

func formatRoles(counts map[graph.Role]int) string {
	if len(counts) == 0 {
		return "none"
	}
	roles := make([]string, 0, len(counts))
	for r := range counts {
		roles = append(roles, string(r))
	}
	sort.Strings(roles)
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = fmt.Sprintf("%s=%d", r, counts[graph.Role(r)])
	}
	return strings.Join(parts, " ")
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) line(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format+"\n", args...)
}

// ranking prints entries; prec < 0 prints the exact decimal.
func (ew *errWriter) ranking(title string, entries []Ranked, prec int32) {
	ew.line("%s:", title)
	if len(entries) == 0 {
		ew.line("  (none)")
	}
	for i, e := range entries {
		v := e.Value.String()
		if prec >= 0 {
			v = e.Value.StringFixed(prec)
		}
		label := ""
		if e.Label != "" {
			label = " [" + e.Label + "]"
		}
		ew.line("  %d. %s%s  %s", i+1, e.Address, label, v)
	}
	ew.line("")
}
