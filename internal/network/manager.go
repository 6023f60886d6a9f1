package network

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
)

// ErrNotAnalyzed is returned when filter or report accessors are called
// before Analyze has run. Hitting it is a coding error, not a data problem.
var ErrNotAnalyzed = errors.New("network: analysis has not been run")

// Manager runs the orphan-removal convergence loop over every region of a
// model and keeps the per-(region, period) records of what was removed.
//
// Regions whose name contains the exchange marker '-' join two real regions
// and are excluded from analysis entirely: exchange technologies are never
// screened.
type Manager struct {
	data    *ModelData
	periods []int
	log     *slog.Logger

	analyzed bool
	regions  []string

	// origTechs is a copy of every bucket taken before pruning, kept for
	// graph export once the live sets have been whittled down.
	origTechs map[RegionPeriod]TechSet

	demandOrphans  map[RegionPeriod]TechSet
	otherOrphans   map[RegionPeriod]TechSet
	syntheticLinks map[RegionPeriod]TechSet
}

// NewManager prepares an analysis over the model's buckets. The logger may
// be nil.
func NewManager(data *ModelData, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	orig := make(map[RegionPeriod]TechSet, len(data.availableTechs))
	for rp, bucket := range data.availableTechs {
		orig[rp] = bucket.Clone()
	}
	return &Manager{
		data:           data,
		periods:        data.Periods(),
		log:            logger,
		origTechs:      orig,
		demandOrphans:  map[RegionPeriod]TechSet{},
		otherOrphans:   map[RegionPeriod]TechSet{},
		syntheticLinks: map[RegionPeriod]TechSet{},
	}
}

// Analyze prunes every non-exchange region to its fixed point, then screens
// the linked-tech pairs against the surviving technology names. Orphan
// removal is logged per technology at warning level.
func (m *Manager) Analyze() {
	regionSet := StringSet{}
	for rp := range m.data.availableTechs {
		if !isExchangeRegion(rp.Region) {
			regionSet.Add(rp.Region)
		}
	}
	m.regions = regionSet.Sorted()
	for _, region := range m.regions {
		m.log.Debug("starting network analysis", "region", region)
		m.analyzeRegion(region)
	}
	m.screenLinkedTechs()
	m.collectSyntheticLinks()
	m.analyzed = true
}

// analyzeRegion whittles at one region until a full pass over all its
// periods turns up zero new orphans. Orphans found in any period of a pass
// are stripped from every period of the region: a technology that cannot
// operate in one period is treated as suspect everywhere, which over-prunes
// in some models but matches the screening contract.
func (m *Manager) analyzeRegion(region string) {
	passCount := 0
	for {
		passCount++
		demandThisPass := TechSet{}
		otherThisPass := TechSet{}
		for _, period := range m.periods {
			rp := RegionPeriod{Region: region, Period: period}
			if m.data.AvailableTechs(rp) == nil {
				continue
			}
			cn := newCommodityNetwork(rp, m.data)
			cn.analyze()

			newDemand := cn.demandSideOrphans()
			newOther := cn.allOtherOrphans()

			m.record(m.demandOrphans, rp, newDemand)
			m.record(m.otherOrphans, rp, newOther)

			demandThisPass.Union(newDemand)
			otherThisPass.Union(newOther)
		}
		for _, period := range m.periods {
			rp := RegionPeriod{Region: region, Period: period}
			if bucket := m.data.AvailableTechs(rp); bucket != nil {
				bucket.Remove(demandThisPass)
				bucket.Remove(otherThisPass)
			}
		}
		m.log.Debug("finished orphan removal pass",
			"region", region,
			"pass", passCount,
			"removed", len(demandThisPass)+len(otherThisPass))
		for _, orphan := range demandThisPass.Sorted() {
			m.log.Warn("removed demand-side orphan", "tech", orphan.String())
		}
		for _, orphan := range otherThisPass.Sorted() {
			m.log.Warn("removed other orphan", "tech", orphan.String())
		}
		if len(demandThisPass) == 0 && len(otherThisPass) == 0 {
			return
		}
	}
}

func (m *Manager) record(dst map[RegionPeriod]TechSet, rp RegionPeriod, found TechSet) {
	if len(found) == 0 {
		return
	}
	if dst[rp] == nil {
		dst[rp] = TechSet{}
	}
	dst[rp].Union(found)
}

// screenLinkedTechs drops co-dispatch pairs whose driver or driven
// technology no longer appears anywhere in the pair's region.
func (m *Manager) screenLinkedTechs() {
	living := map[string]StringSet{}
	for rp, bucket := range m.data.availableTechs {
		names := living[rp.Region]
		if names == nil {
			names = StringSet{}
			living[rp.Region] = names
		}
		for t := range bucket {
			names.Add(t.Name)
		}
	}
	for pair := range m.data.LinkedTechs {
		names := living[pair.Region]
		if names != nil && names.Has(pair.Driver) && names.Has(pair.Driven) {
			continue
		}
		m.log.Warn("dropped linked-tech pair, at least one side pruned",
			"region", pair.Region, "driver", pair.Driver, "driven", pair.Driven)
		delete(m.data.LinkedTechs, pair)
	}
}

// techIdentity names one technology instance independent of its
// input/output combination.
type techIdentity struct {
	name    string
	vintage int
}

// collectSyntheticLinks records, per bucket, the surviving input/output
// combinations of technology instances that had some other combination
// removed as an orphan. They exist for graph export only and never
// reinstate a removed technology.
func (m *Manager) collectSyntheticLinks() {
	for rp, bucket := range m.data.availableTechs {
		orphaned := map[techIdentity]struct{}{}
		for t := range m.demandOrphans[rp] {
			orphaned[techIdentity{t.Name, t.Vintage}] = struct{}{}
		}
		for t := range m.otherOrphans[rp] {
			orphaned[techIdentity{t.Name, t.Vintage}] = struct{}{}
		}
		if len(orphaned) == 0 {
			continue
		}
		links := TechSet{}
		for t := range bucket {
			if _, ok := orphaned[techIdentity{t.Name, t.Vintage}]; ok {
				links.Add(t)
			}
		}
		if len(links) > 0 {
			m.syntheticLinks[rp] = links
		}
	}
}

// Analyzed reports whether Analyze has completed.
func (m *Manager) Analyzed() bool { return m.analyzed }

// Regions returns the analyzed (non-exchange) regions, sorted.
func (m *Manager) Regions() []string { return m.regions }

// DemandOrphans returns the accumulated demand-side orphans for a bucket.
func (m *Manager) DemandOrphans(rp RegionPeriod) TechSet { return m.demandOrphans[rp] }

// OtherOrphans returns the accumulated supply-side orphans for a bucket.
func (m *Manager) OtherOrphans(rp RegionPeriod) TechSet { return m.otherOrphans[rp] }

// SyntheticLinks returns the valid leftover combinations of partially
// orphaned technologies for a bucket.
func (m *Manager) SyntheticLinks(rp RegionPeriod) TechSet { return m.syntheticLinks[rp] }

// UnsupportedDemands returns, per analyzed bucket, the demand commodities no
// surviving technology produces. Callable only after Analyze.
func (m *Manager) UnsupportedDemands() (map[RegionPeriod][]string, error) {
	if !m.analyzed {
		return nil, ErrNotAnalyzed
	}
	out := map[RegionPeriod][]string{}
	for rp, demands := range m.data.DemandCommodities {
		if isExchangeRegion(rp.Region) {
			continue
		}
		produced := StringSet{}
		for t := range m.data.AvailableTechs(rp) {
			produced.Add(t.Output)
		}
		var missing []string
		for _, d := range demands.Sorted() {
			if !produced.Has(d) {
				missing = append(missing, d)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			out[rp] = missing
		}
	}
	return out, nil
}

// OrphanCount returns the total number of recorded orphan entries.
func (m *Manager) OrphanCount() int {
	n := 0
	for _, s := range m.demandOrphans {
		n += len(s)
	}
	for _, s := range m.otherOrphans {
		n += len(s)
	}
	return n
}

func isExchangeRegion(region string) bool {
	return strings.Contains(region, "-")
}
