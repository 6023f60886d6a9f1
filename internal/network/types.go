// Package network holds the commodity/technology dependency graph and the
// feasibility analysis that prunes it. A model is partitioned into
// (region, period) buckets of technologies; the analyzer removes entries
// that cannot operate (no reachable supply, or no reachable demand) and
// derives the index filters downstream data loading consumes.
package network

import (
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Tech is one technology edge in the commodity graph: it consumes Input and
// produces Output, for a single region and construction vintage. A logical
// technology (Region, Name) commonly appears many times with different
// vintages and input/output pairs.
type Tech struct {
	Region  string
	Input   string
	Name    string
	Vintage int
	Output  string
}

func (t Tech) String() string {
	return fmt.Sprintf("Tech(region=%s, input=%s, name=%s, vintage=%d, output=%s)",
		t.Region, t.Input, t.Name, t.Vintage, t.Output)
}

// LinkedTech records a constrained co-dispatch pair: the driven technology
// is forced to operate in proportion to the driver's emission output.
type LinkedTech struct {
	Region   string
	Driver   string
	Emission string
	Driven   string
}

// RegionPeriod keys the per-bucket collections.
type RegionPeriod struct {
	Region string
	Period int
}

// TechSet is a set of technologies.
type TechSet map[Tech]struct{}

// Add inserts t into the set.
func (s TechSet) Add(t Tech) { s[t] = struct{}{} }

// Has reports membership.
func (s TechSet) Has(t Tech) bool {
	_, ok := s[t]
	return ok
}

// Remove deletes every member of other from s.
func (s TechSet) Remove(other TechSet) {
	for t := range other {
		delete(s, t)
	}
}

// Union adds every member of other to s.
func (s TechSet) Union(other TechSet) {
	for t := range other {
		s[t] = struct{}{}
	}
}

// Clone returns an independent copy.
func (s TechSet) Clone() TechSet {
	out := make(TechSet, len(s))
	for t := range s {
		out[t] = struct{}{}
	}
	return out
}

// Sorted returns the members ordered by (region, name, vintage, input,
// output), for stable logging and reports.
func (s TechSet) Sorted() []Tech {
	out := make([]Tech, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Vintage != b.Vintage {
			return a.Vintage < b.Vintage
		}
		if a.Input != b.Input {
			return a.Input < b.Input
		}
		return a.Output < b.Output
	})
	return out
}

// StringSet is a set of commodity or technology names.
type StringSet map[string]struct{}

// Add inserts s into the set.
func (c StringSet) Add(s string) { c[s] = struct{}{} }

// Has reports membership.
func (c StringSet) Has(s string) bool {
	_, ok := c[s]
	return ok
}

// Sorted returns the members in lexical order.
func (c StringSet) Sorted() []string {
	out := make([]string, 0, len(c))
	for s := range c {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Normalize returns the NFC form of a commodity or technology name. All
// names pass through here on ingest so that set membership never depends on
// the Unicode composition of the source data.
func Normalize(name string) string {
	return norm.NFC.String(name)
}

// NewTech builds a Tech with all names NFC-normalized.
func NewTech(region, input, name string, vintage int, output string) Tech {
	return Tech{
		Region:  Normalize(region),
		Input:   Normalize(input),
		Name:    Normalize(name),
		Vintage: vintage,
		Output:  Normalize(output),
	}
}

// ModelData is the in-memory graph model the analyzer consumes: commodity
// sets plus technologies bucketed by (region, period). It performs no I/O;
// builders (the store loader, test fixtures) hand it fully materialized.
type ModelData struct {
	AllCommodities    StringSet
	SourceCommodities StringSet
	DemandCommodities map[RegionPeriod]StringSet
	LinkedTechs       map[LinkedTech]struct{}

	availableTechs map[RegionPeriod]TechSet
}

// NewModelData validates and assembles a graph model. Every technology must
// carry the region of the bucket it sits in.
func NewModelData(
	all, sources StringSet,
	demands map[RegionPeriod]StringSet,
	techs map[RegionPeriod]TechSet,
	linked map[LinkedTech]struct{},
) (*ModelData, error) {
	for rp, bucket := range techs {
		for t := range bucket {
			if t.Region != rp.Region {
				return nil, fmt.Errorf("network: tech %s filed under region %s", t, rp.Region)
			}
		}
	}
	if demands == nil {
		demands = map[RegionPeriod]StringSet{}
	}
	if linked == nil {
		linked = map[LinkedTech]struct{}{}
	}
	return &ModelData{
		AllCommodities:    all,
		SourceCommodities: sources,
		DemandCommodities: demands,
		LinkedTechs:       linked,
		availableTechs:    techs,
	}, nil
}

// AvailableTechs returns the technology bucket for rp. The returned set is
// live; the analyzer mutates it during pruning.
func (m *ModelData) AvailableTechs(rp RegionPeriod) TechSet {
	return m.availableTechs[rp]
}

// Buckets returns every (region, period) key, sorted.
func (m *ModelData) Buckets() []RegionPeriod {
	out := make([]RegionPeriod, 0, len(m.availableTechs))
	for rp := range m.availableTechs {
		out = append(out, rp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		return out[i].Period < out[j].Period
	})
	return out
}

// Periods returns the sorted distinct periods present across all buckets.
func (m *ModelData) Periods() []int {
	seen := map[int]struct{}{}
	for rp := range m.availableTechs {
		seen[rp.Period] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// TechCount returns the total number of technology entries across buckets.
func (m *ModelData) TechCount() int {
	n := 0
	for _, bucket := range m.availableTechs {
		n += len(bucket)
	}
	return n
}

func (m *ModelData) String() string {
	return fmt.Sprintf("all commodities: %d, demand buckets: %d, source commodities: %d, available techs: %d, linked techs: %d",
		len(m.AllCommodities), len(m.DemandCommodities), len(m.SourceCommodities), m.TechCount(), len(m.LinkedTechs))
}
