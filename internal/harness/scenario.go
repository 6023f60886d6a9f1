package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is one network fixture: the commodity graph of a small model
// plus the outcome its analysis is expected to produce.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario pins down.
	Description string `yaml:"description"`

	// Sources lists the source commodities, available in every bucket.
	Sources []string `yaml:"source_commodities"`

	// Demands lists the demand commodities per (region, period) bucket.
	Demands []DemandBlock `yaml:"demand_commodities"`

	// Processes lists the technology edges and the periods they serve.
	Processes []Process `yaml:"processes"`

	// LinkedTechs lists co-dispatch pairs, screened after pruning.
	LinkedTechs []LinkedPair `yaml:"linked_techs,omitempty"`

	// Expect holds the machine-checked outcome. The golden report pins
	// the rest.
	Expect *Expect `yaml:"expect,omitempty"`
}

// DemandBlock declares the demand commodities of one bucket.
type DemandBlock struct {
	Region      string   `yaml:"region"`
	Period      int      `yaml:"period"`
	Commodities []string `yaml:"commodities"`
}

// Process is one technology edge and its availability.
type Process struct {
	Region  string `yaml:"region"`
	Input   string `yaml:"input"`
	Tech    string `yaml:"tech"`
	Vintage int    `yaml:"vintage"`
	Output  string `yaml:"output"`
	Periods []int  `yaml:"periods"`
}

// LinkedPair is a driver/driven co-dispatch constraint.
type LinkedPair struct {
	Region   string `yaml:"region"`
	Driver   string `yaml:"driver"`
	Emission string `yaml:"emission"`
	Driven   string `yaml:"driven"`
}

// Expect is the checkable outcome of an analysis run. Counts cover all
// buckets; Survivors checks individual buckets. LinkedPairs, when set,
// checks how many co-dispatch pairs outlive the screening.
type Expect struct {
	Orphans     int             `yaml:"orphans"`
	Unsupported int             `yaml:"unsupported_demands"`
	Survivors   []SurvivorCount `yaml:"survivors,omitempty"`
	LinkedPairs *int            `yaml:"linked_pairs,omitempty"`
}

// SurvivorCount pins the post-pruning size of one bucket.
type SurvivorCount struct {
	Region string `yaml:"region"`
	Period int    `yaml:"period"`
	Count  int    `yaml:"count"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, so a typo fails the load instead of silently dropping a
// fixture section.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	out := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Processes) == 0 {
		return fmt.Errorf("processes list is required and must be non-empty")
	}

	covered := map[string]map[int]bool{}
	for i, p := range s.Processes {
		switch {
		case p.Region == "":
			return fmt.Errorf("processes[%d]: region is required", i)
		case p.Input == "":
			return fmt.Errorf("processes[%d]: input is required", i)
		case p.Tech == "":
			return fmt.Errorf("processes[%d]: tech is required", i)
		case p.Output == "":
			return fmt.Errorf("processes[%d]: output is required", i)
		case p.Vintage == 0:
			return fmt.Errorf("processes[%d]: vintage is required", i)
		case len(p.Periods) == 0:
			return fmt.Errorf("processes[%d]: periods list is required", i)
		}
		if covered[p.Region] == nil {
			covered[p.Region] = map[int]bool{}
		}
		for _, period := range p.Periods {
			covered[p.Region][period] = true
		}
	}

	for i, d := range s.Demands {
		if d.Region == "" {
			return fmt.Errorf("demand_commodities[%d]: region is required", i)
		}
		if d.Period == 0 {
			return fmt.Errorf("demand_commodities[%d]: period is required", i)
		}
		if len(d.Commodities) == 0 {
			return fmt.Errorf("demand_commodities[%d]: commodities list is required", i)
		}
		// A demand bucket with no processes would be invisible to the
		// report; the fixture is underspecified rather than infeasible.
		if !covered[d.Region][d.Period] {
			return fmt.Errorf("demand_commodities[%d]: bucket [%s, %d] has no processes", i, d.Region, d.Period)
		}
	}

	for i, l := range s.LinkedTechs {
		if l.Region == "" || l.Driver == "" || l.Driven == "" {
			return fmt.Errorf("linked_techs[%d]: region, driver, and driven are required", i)
		}
	}

	if s.Expect != nil {
		if s.Expect.Orphans < 0 || s.Expect.Unsupported < 0 {
			return fmt.Errorf("expect: counts must be non-negative")
		}
		for i, sc := range s.Expect.Survivors {
			if sc.Region == "" || sc.Period == 0 {
				return fmt.Errorf("expect.survivors[%d]: region and period are required", i)
			}
		}
	}
	return nil
}
