package network

import (
	"fmt"
	"sort"
	"strings"
)

// edge is a deduplicated (input, tech, output) drawing element: vintages
// collapse to one representative edge.
type edge struct {
	input  string
	tech   string
	output string
}

// WriteDOT renders one bucket's network as a Graphviz digraph, drawn from
// the pre-pruning technology copy so removed edges stay visible. Demand
// orphans are red, other orphans yellow, synthetic links blue. Commodity
// ranks: sources, then physical, then demands.
func (m *Manager) WriteDOT(rp RegionPeriod) (string, error) {
	if !m.analyzed {
		return "", ErrNotAnalyzed
	}

	colors := map[edge]string{}
	for t := range m.demandOrphans[rp] {
		colors[edge{t.Input, t.Name, t.Output}] = "red"
	}
	for t := range m.otherOrphans[rp] {
		colors[edge{t.Input, t.Name, t.Output}] = "yellow"
	}
	for t := range m.syntheticLinks[rp] {
		colors[edge{t.Input, t.Name, t.Output}] = "blue"
	}

	all := map[edge]struct{}{}
	for t := range m.origTechs[rp] {
		all[edge{t.Input, t.Name, t.Output}] = struct{}{}
	}
	for t := range m.syntheticLinks[rp] {
		all[edge{t.Input, t.Name, t.Output}] = struct{}{}
	}
	edges := make([]edge, 0, len(all))
	for e := range all {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.tech != b.tech {
			return a.tech < b.tech
		}
		if a.input != b.input {
			return a.input < b.input
		}
		return a.output < b.output
	})

	demands := m.data.DemandCommodities[rp]
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", fmt.Sprintf("%s_%d", rp.Region, rp.Period))
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=ellipse];\n")
	for _, c := range m.commoditiesIn(edges) {
		switch {
		case m.data.SourceCommodities.Has(c):
			fmt.Fprintf(&b, "  %q [rank=source, style=filled, fillcolor=palegreen];\n", c)
		case demands != nil && demands.Has(c):
			fmt.Fprintf(&b, "  %q [rank=sink, style=filled, fillcolor=lightblue];\n", c)
		default:
			fmt.Fprintf(&b, "  %q;\n", c)
		}
	}
	for _, e := range edges {
		color := colors[e]
		if color == "" {
			fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", e.input, e.output, e.tech)
		} else {
			fmt.Fprintf(&b, "  %q -> %q [label=%q, color=%s, penwidth=2];\n", e.input, e.output, e.tech, color)
		}
	}
	b.WriteString("}\n")
	return b.String(), nil
}

func (m *Manager) commoditiesIn(edges []edge) []string {
	seen := StringSet{}
	for _, e := range edges {
		seen.Add(e.input)
		seen.Add(e.output)
	}
	return seen.Sorted()
}
