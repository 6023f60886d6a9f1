package network

import (
	"fmt"
	"strings"
)

// Report renders the analysis outcome as stable, sorted text: surviving
// techs, orphans by classification, synthetic links, and unsupported
// demands per (region, period). The output is what `temoa check` prints and
// what the golden tests pin down.
func (m *Manager) Report() (string, error) {
	if !m.analyzed {
		return "", ErrNotAnalyzed
	}
	var b strings.Builder
	fmt.Fprintf(&b, "network analysis: %d region(s), %d period(s)\n", len(m.regions), len(m.periods))
	unsupported, err := m.UnsupportedDemands()
	if err != nil {
		return "", err
	}
	for _, rp := range m.data.Buckets() {
		if isExchangeRegion(rp.Region) {
			continue
		}
		fmt.Fprintf(&b, "\n[%s, %d]\n", rp.Region, rp.Period)
		fmt.Fprintf(&b, "  valid techs: %d\n", len(m.data.AvailableTechs(rp)))
		for _, t := range m.demandOrphans[rp].Sorted() {
			fmt.Fprintf(&b, "  demand orphan: %s|%s|%d|%s\n", t.Input, t.Name, t.Vintage, t.Output)
		}
		for _, t := range m.otherOrphans[rp].Sorted() {
			fmt.Fprintf(&b, "  other orphan:  %s|%s|%d|%s\n", t.Input, t.Name, t.Vintage, t.Output)
		}
		for _, t := range m.syntheticLinks[rp].Sorted() {
			fmt.Fprintf(&b, "  synthetic:     %s|%s|%d|%s\n", t.Input, t.Name, t.Vintage, t.Output)
		}
		for _, d := range unsupported[rp] {
			fmt.Fprintf(&b, "  unsupported demand: %s\n", d)
		}
	}
	return b.String(), nil
}
