// Package results defines the containers a solved run hands back for
// persistence: typed flow and emission indices, itemized costs, capacity
// rows, and the compacted Record that travels from worker to writer in
// place of a full model instance.
package results

import "fmt"

// Epsilon is the reporting floor. Values with magnitude below it are noise
// from the solver and are dropped when a Record is built.
const Epsilon = 1e-5

// FI indexes one commodity flow in full resolution.
type FI struct {
	Region  string
	Period  int
	Season  string
	TOD     string
	Input   string
	Tech    string
	Vintage int
	Output  string
}

// EI indexes one emission flow.
type EI struct {
	Region   string
	Period   int
	Tech     string
	Vintage  int
	Emission string
}

// CostIndex identifies the process a cost row belongs to.
type CostIndex struct {
	Region  string
	Period  int
	Tech    string
	Vintage int
}

// FlowType classifies the direction or disposition of a flow value.
type FlowType int

const (
	FlowIn FlowType = iota + 1
	FlowOut
	FlowCurtail
	FlowFlex
	FlowLost
)

// String returns a human-readable flow type name.
func (ft FlowType) String() string {
	switch ft {
	case FlowIn:
		return "in"
	case FlowOut:
		return "out"
	case FlowCurtail:
		return "curtail"
	case FlowFlex:
		return "flex"
	case FlowLost:
		return "lost"
	default:
		return fmt.Sprintf("FlowType(%d)", int(ft))
	}
}

// CostType classifies one component of a process's cost. Each component
// exists in an undiscounted and a discounted form; the output table carries
// both side by side.
type CostType int

const (
	CostInvest CostType = iota + 1
	CostFixed
	CostVariable
	CostEmission
	CostInvestDiscounted
	CostFixedDiscounted
	CostVariableDiscounted
	CostEmissionDiscounted
)

// String returns a human-readable cost type name.
func (ct CostType) String() string {
	switch ct {
	case CostInvest:
		return "invest"
	case CostFixed:
		return "fixed"
	case CostVariable:
		return "variable"
	case CostEmission:
		return "emission"
	case CostInvestDiscounted:
		return "d_invest"
	case CostFixedDiscounted:
		return "d_fixed"
	case CostVariableDiscounted:
		return "d_variable"
	case CostEmissionDiscounted:
		return "d_emission"
	default:
		return fmt.Sprintf("CostType(%d)", int(ct))
	}
}

// FlowMap holds the flow values of one FI by type. Absent types read as 0.
type FlowMap map[FlowType]float64

// Costs holds the cost components of one process. Absent types read as 0.
type Costs map[CostType]float64

// Add accumulates a component.
func (c Costs) Add(t CostType, v float64) { c[t] += v }

// BuiltRow is one new-capacity result: capacity built in the vintage year.
type BuiltRow struct {
	Region   string
	Tech     string
	Vintage  int
	Capacity float64
}

// CapacityRow is one period-resolved capacity result, used for both net
// available and retired capacity.
type CapacityRow struct {
	Region   string
	Period   int
	Tech     string
	Vintage  int
	Capacity float64
}

// CapData bundles the three capacity result sets of a solve.
type CapData struct {
	Built   []BuiltRow
	Net     []CapacityRow
	Retired []CapacityRow
}

// ObjectiveRow is one named objective value.
type ObjectiveRow struct {
	Name  string
	Value float64
}

// Raw is the unfiltered extraction from a solved instance, as an engine
// reports it. NewRecord compacts it for transport.
type Raw struct {
	Objectives    []ObjectiveRow
	Flows         map[FI]FlowMap
	EmissionFlows map[EI]float64
	RegularCosts  map[CostIndex]Costs
	ExchangeCosts map[CostIndex]Costs
	EmissionCosts map[CostIndex]Costs
	Capacity      CapData
	Duals         map[string]float64
}

// Record is the compacted result of one solved run: everything the writer
// needs and nothing else. Values below Epsilon are gone by construction.
type Record struct {
	Name          string
	Objectives    []ObjectiveRow
	Flows         map[FI]FlowMap
	EmissionFlows map[EI]float64
	RegularCosts  map[CostIndex]Costs
	ExchangeCosts map[CostIndex]Costs
	EmissionCosts map[CostIndex]Costs
	Capacity      CapData
	Duals         map[string]float64
}

// NewRecord compacts a raw extraction under the given run label. Flow,
// emission, cost, and capacity values below Epsilon are dropped, and any
// index left with no values disappears with them. Objectives and duals are
// carried as-is.
func NewRecord(name string, raw *Raw) *Record {
	rec := &Record{
		Name:          name,
		Objectives:    append([]ObjectiveRow(nil), raw.Objectives...),
		Flows:         map[FI]FlowMap{},
		EmissionFlows: map[EI]float64{},
		RegularCosts:  compactCosts(raw.RegularCosts),
		ExchangeCosts: compactCosts(raw.ExchangeCosts),
		EmissionCosts: compactCosts(raw.EmissionCosts),
		Duals:         map[string]float64{},
	}
	for fi, fm := range raw.Flows {
		kept := FlowMap{}
		for ft, v := range fm {
			if !negligible(v) {
				kept[ft] = v
			}
		}
		if len(kept) > 0 {
			rec.Flows[fi] = kept
		}
	}
	for ei, v := range raw.EmissionFlows {
		if !negligible(v) {
			rec.EmissionFlows[ei] = v
		}
	}
	for _, row := range raw.Capacity.Built {
		if !negligible(row.Capacity) {
			rec.Capacity.Built = append(rec.Capacity.Built, row)
		}
	}
	for _, row := range raw.Capacity.Net {
		if !negligible(row.Capacity) {
			rec.Capacity.Net = append(rec.Capacity.Net, row)
		}
	}
	for _, row := range raw.Capacity.Retired {
		if !negligible(row.Capacity) {
			rec.Capacity.Retired = append(rec.Capacity.Retired, row)
		}
	}
	for constraint, v := range raw.Duals {
		rec.Duals[constraint] = v
	}
	return rec
}

func compactCosts(src map[CostIndex]Costs) map[CostIndex]Costs {
	out := map[CostIndex]Costs{}
	for idx, costs := range src {
		kept := Costs{}
		for ct, v := range costs {
			if !negligible(v) {
				kept[ct] = v
			}
		}
		if len(kept) > 0 {
			out[idx] = kept
		}
	}
	return out
}

func negligible(v float64) bool {
	return v < Epsilon && v > -Epsilon
}

// OutFlowSummary sums the record's out-flows across season and time-of-day,
// keyed by (region, period, input, tech, vintage, output). Sums that land
// below Epsilon are dropped. This is the shape of the flow summary table.
func (r *Record) OutFlowSummary() map[SummaryIndex]float64 {
	out := map[SummaryIndex]float64{}
	for fi, fm := range r.Flows {
		v, ok := fm[FlowOut]
		if !ok {
			continue
		}
		idx := SummaryIndex{
			Region:  fi.Region,
			Period:  fi.Period,
			Input:   fi.Input,
			Tech:    fi.Tech,
			Vintage: fi.Vintage,
			Output:  fi.Output,
		}
		out[idx] += v
	}
	for idx, v := range out {
		if negligible(v) {
			delete(out, idx)
		}
	}
	return out
}

// SummaryIndex identifies one season/TOD-aggregated out-flow.
type SummaryIndex struct {
	Region  string
	Period  int
	Input   string
	Tech    string
	Vintage int
	Output  string
}
