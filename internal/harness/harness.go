package harness

import (
	"fmt"
	"log/slog"

	"github.com/jeff-ws/temoa/internal/network"
)

// Result is the outcome of running one scenario: the pruned graph, the
// manager holding the orphan records, and the rendered report.
type Result struct {
	Data    *network.ModelData
	Manager *network.Manager
	Report  string
}

// Build assembles the analyzer input graph from the scenario. All names
// pass through network normalization, the same as data loaded from a
// store.
func (s *Scenario) Build() (*network.ModelData, error) {
	all := network.StringSet{}
	sources := network.StringSet{}
	for _, c := range s.Sources {
		c = network.Normalize(c)
		sources.Add(c)
		all.Add(c)
	}

	demands := map[network.RegionPeriod]network.StringSet{}
	for _, d := range s.Demands {
		rp := network.RegionPeriod{Region: network.Normalize(d.Region), Period: d.Period}
		set := demands[rp]
		if set == nil {
			set = network.StringSet{}
			demands[rp] = set
		}
		for _, c := range d.Commodities {
			c = network.Normalize(c)
			set.Add(c)
			all.Add(c)
		}
	}

	techs := map[network.RegionPeriod]network.TechSet{}
	for _, p := range s.Processes {
		t := network.NewTech(p.Region, p.Input, p.Tech, p.Vintage, p.Output)
		all.Add(t.Input)
		all.Add(t.Output)
		for _, period := range p.Periods {
			rp := network.RegionPeriod{Region: t.Region, Period: period}
			bucket := techs[rp]
			if bucket == nil {
				bucket = network.TechSet{}
				techs[rp] = bucket
			}
			bucket.Add(t)
		}
	}

	linked := map[network.LinkedTech]struct{}{}
	for _, l := range s.LinkedTechs {
		linked[network.LinkedTech{
			Region:   network.Normalize(l.Region),
			Driver:   network.Normalize(l.Driver),
			Emission: network.Normalize(l.Emission),
			Driven:   network.Normalize(l.Driven),
		}] = struct{}{}
	}

	return network.NewModelData(all, sources, demands, techs, linked)
}

// Run builds the scenario's graph, analyzes it, and renders the report.
func Run(s *Scenario, logger *slog.Logger) (*Result, error) {
	data, err := s.Build()
	if err != nil {
		return nil, err
	}
	m := network.NewManager(data, logger)
	m.Analyze()
	report, err := m.Report()
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, Manager: m, Report: report}, nil
}

// Verify checks the scenario's expect block against a completed run and
// returns one error per mismatch. A scenario without an expect block
// verifies trivially.
func (s *Scenario) Verify(res *Result) []error {
	if s.Expect == nil {
		return nil
	}
	var errs []error

	if got := res.Manager.OrphanCount(); got != s.Expect.Orphans {
		errs = append(errs, fmt.Errorf("%s: %d orphan entries, expected %d", s.Name, got, s.Expect.Orphans))
	}

	unsupported, err := res.Manager.UnsupportedDemands()
	if err != nil {
		return append(errs, err)
	}
	total := 0
	for _, missing := range unsupported {
		total += len(missing)
	}
	if total != s.Expect.Unsupported {
		errs = append(errs, fmt.Errorf("%s: %d unsupported demands, expected %d", s.Name, total, s.Expect.Unsupported))
	}

	for _, want := range s.Expect.Survivors {
		rp := network.RegionPeriod{Region: network.Normalize(want.Region), Period: want.Period}
		if got := len(res.Data.AvailableTechs(rp)); got != want.Count {
			errs = append(errs, fmt.Errorf("%s: bucket [%s, %d] kept %d techs, expected %d",
				s.Name, rp.Region, rp.Period, got, want.Count))
		}
	}

	if s.Expect.LinkedPairs != nil {
		if got := len(res.Data.LinkedTechs); got != *s.Expect.LinkedPairs {
			errs = append(errs, fmt.Errorf("%s: %d linked pairs survived screening, expected %d",
				s.Name, got, *s.Expect.LinkedPairs))
		}
	}
	return errs
}
