package myopic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeff-ws/temoa/internal/dataset"
	"github.com/jeff-ws/temoa/internal/results"
	"github.com/jeff-ws/temoa/internal/solve"
	"github.com/jeff-ws/temoa/internal/store"
	"github.com/jeff-ws/temoa/internal/testutil"
)

// windowScript scripts one solution per window, in call order, and
// captures every screened snapshot the stepper hands the engine.
type windowScript struct {
	solutions []*solve.Solution
	snaps     []*dataset.Snapshot
}

func (w *windowScript) solver() *testutil.ScriptedSolver {
	return testutil.NewScriptedSolver("windowed", func(inst *solve.Instance) (*solve.Solution, error) {
		call := len(w.snaps)
		w.snaps = append(w.snaps, inst.Data)
		if call >= len(w.solutions) {
			return nil, fmt.Errorf("unscripted solve call %d", call)
		}
		return w.solutions[call], nil
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openSeededStore loads the sequence fixture: an ethos-fed mine feeding a
// power plant, plus an unlimited-capacity tech, with demand over
// 2020-2030 and a 2035 horizon boundary. The 2015 power vintage retires
// after 20 years.
func openSeededStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "model.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	stmts := []string{
		`INSERT INTO Region (region) VALUES ('R1')`,
		`INSERT INTO TimePeriod (period, flag, sequence) VALUES
			(2015, 'e', 1), (2020, 'f', 2), (2025, 'f', 3), (2030, 'f', 4), (2035, 'f', 5)`,
		`INSERT INTO Commodity (name, flag) VALUES ('ethos', 's'), ('coal', 'p'), ('elc', 'd')`,
		`INSERT INTO Technology (tech, flag, sector, unlim_cap) VALUES
			('mine', 'r', 'supply', 0), ('power', 'p', 'electric', 0), ('free', 'p', NULL, 1)`,
		`INSERT INTO Efficiency (region, input_comm, tech, vintage, output_comm, efficiency) VALUES
			('R1', 'ethos', 'mine', 2020, 'coal', 1.0),
			('R1', 'coal', 'power', 2015, 'elc', 0.35),
			('R1', 'coal', 'power', 2020, 'elc', 0.40),
			('R1', 'coal', 'power', 2030, 'elc', 0.45),
			('R1', 'ethos', 'free', 2020, 'elc', 1.0)`,
		`INSERT INTO LifetimeProcess (region, tech, vintage, lifetime) VALUES ('R1', 'power', 2015, 20)`,
		`INSERT INTO Demand (region, period, commodity, demand) VALUES
			('R1', 2020, 'elc', 10), ('R1', 2025, 'elc', 12), ('R1', 2030, 'elc', 14)`,
		`INSERT INTO ExistingCapacity (region, tech, vintage, capacity) VALUES ('R1', 'power', 2015, 5)`,
	}
	for _, stmt := range stmts {
		_, err := s.DB().Exec(stmt)
		require.NoError(t, err)
	}
	return s
}

func countRows(t *testing.T, s *store.Store, table, where string, args ...any) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	require.NoError(t, s.DB().QueryRow(query, args...).Scan(&n))
	return n
}

func net(period int, tech string, vintage int, capacity float64) results.CapacityRow {
	return results.CapacityRow{Region: "R1", Period: period, Tech: tech, Vintage: vintage, Capacity: capacity}
}

func optimal(raw results.Raw) *solve.Solution {
	return &solve.Solution{Status: solve.StatusOptimal, Raw: raw}
}

// TestStepper_Run drives three single-period windows and checks that
// capacity decisions thread forward: what window one builds is existing
// capacity for window two, and a vintage window two stops carrying is
// gone from window three entirely.
func TestStepper_Run(t *testing.T) {
	s := openSeededStore(t)
	script := &windowScript{solutions: []*solve.Solution{
		optimal(results.Raw{
			Objectives: []results.ObjectiveRow{{Name: "TotalCost", Value: 100}},
			Capacity: results.CapData{Net: []results.CapacityRow{
				net(2020, "mine", 2020, 1),
				net(2020, "power", 2015, 5),
				net(2020, "power", 2020, 2),
			}},
			Flows: map[results.FI]results.FlowMap{
				{Region: "R1", Period: 2020, Season: "summer", TOD: "day",
					Input: "coal", Tech: "power", Vintage: 2015, Output: "elc"}: {results.FlowOut: 6},
			},
			Duals: map[string]float64{"demand_2020": 0.5},
		}),
		optimal(results.Raw{
			Objectives: []results.ObjectiveRow{{Name: "TotalCost", Value: 110}},
			Capacity: results.CapData{Net: []results.CapacityRow{
				net(2025, "mine", 2020, 1),
				net(2025, "power", 2020, 4),
			}},
			Duals: map[string]float64{"demand_2025": 0.7},
		}),
		optimal(results.Raw{
			Objectives: []results.ObjectiveRow{{Name: "TotalCost", Value: 120}},
			Capacity: results.CapData{Net: []results.CapacityRow{
				net(2030, "power", 2030, 3),
			}},
			Duals: map[string]float64{"demand_2030": 0.9},
		}),
	}}
	solver := script.solver()

	st, err := NewStepper(Config{
		Store: s, Solver: solver, Scenario: "demo",
		StepSize: 1, ViewDepth: 1, SaveDuals: true,
		Logger: discardLogger(), Quiet: true,
	})
	require.NoError(t, err)
	require.NoError(t, st.Run(context.Background()))

	// The horizon boundary 2035 never becomes a base.
	require.Len(t, script.snaps, 3)
	assert.Equal(t, []string{"demo", "demo", "demo"}, solver.Labels())

	// Each window sees only its own demand.
	for i, want := range []struct {
		key   dataset.Key
		value float64
	}{
		{dataset.KeyOf("R1", "2020", "elc"), 10},
		{dataset.KeyOf("R1", "2025", "elc"), 12},
		{dataset.KeyOf("R1", "2030", "elc"), 14},
	} {
		tbl, ok := script.snaps[i].Table("Demand")
		require.True(t, ok, "window %d has no Demand", i)
		assert.Len(t, tbl, 1, "window %d demand rows", i)
		got, ok := script.snaps[i].Get("Demand", want.key)
		require.True(t, ok, "window %d missing %s", i, want.key)
		assert.Equal(t, want.value, got)
	}

	// Window two inherits window one's net capacity alongside the seeded
	// existing capacity.
	cap1, ok := script.snaps[1].Table("ExistingCapacity")
	require.True(t, ok)
	assert.Len(t, cap1, 3)
	got, ok := script.snaps[1].Get("ExistingCapacity", dataset.KeyOf("R1", "power", "2020"))
	require.True(t, ok)
	assert.Equal(t, 2.0, got)

	// Window two dropped the 2015 vintage, so window three must not see
	// it anywhere.
	eff2, ok := script.snaps[2].Table("Efficiency")
	require.True(t, ok)
	assert.Len(t, eff2, 4)
	_, ok = script.snaps[2].Get("Efficiency", dataset.KeyOf("R1", "coal", "power", "2015", "elc"))
	assert.False(t, ok, "retired vintage leaked into window three")
	cap2, ok := script.snaps[2].Table("ExistingCapacity")
	require.True(t, ok)
	assert.Len(t, cap2, 2)
	_, ok = script.snaps[2].Get("ExistingCapacity", dataset.KeyOf("R1", "power", "2015"))
	assert.False(t, ok)
	got, ok = script.snaps[2].Get("ExistingCapacity", dataset.KeyOf("R1", "power", "2020"))
	require.True(t, ok)
	assert.Equal(t, 4.0, got)

	// Committed results: one net capacity row set per window, appended.
	assert.Equal(t, 3, countRows(t, s, "OutputNetCapacity", "scenario = ? AND period = ?", "demo", 2020))
	assert.Equal(t, 2, countRows(t, s, "OutputNetCapacity", "scenario = ? AND period = ?", "demo", 2025))
	assert.Equal(t, 1, countRows(t, s, "OutputNetCapacity", "scenario = ? AND period = ?", "demo", 2030))
	assert.Equal(t, 1, countRows(t, s, "OutputFlowOut", "scenario = ?", "demo"))

	// Per-window objectives are cleared once the sequence lands.
	assert.Equal(t, 0, countRows(t, s, "OutputObjective", ""))

	// Duals carry per-window labels.
	for _, label := range []string{"demo-2020", "demo-2025", "demo-2030"} {
		assert.Equal(t, 1, countRows(t, s, "OutputDualVariable", "scenario = ?", label))
	}

	// The efficiency table ends clear of the retired vintage.
	assert.Equal(t, 4, countRows(t, s, "MyopicEfficiency", ""))
	assert.Equal(t, 0, countRows(t, s, "MyopicEfficiency", "tech = ? AND vintage = ?", "power", 2015))
}

func TestStepper_NonOptimalAborts(t *testing.T) {
	s := openSeededStore(t)
	script := &windowScript{solutions: []*solve.Solution{
		optimal(results.Raw{
			Objectives: []results.ObjectiveRow{{Name: "TotalCost", Value: 100}},
			Capacity: results.CapData{Net: []results.CapacityRow{
				net(2020, "power", 2015, 5),
				net(2020, "power", 2020, 2),
				net(2020, "mine", 2020, 1),
			}},
		}),
		{Status: solve.StatusInfeasible},
	}}
	solver := script.solver()

	st, err := NewStepper(Config{
		Store: s, Solver: solver, Scenario: "demo",
		StepSize: 1, ViewDepth: 1,
		Logger: discardLogger(), Quiet: true,
	})
	require.NoError(t, err)

	err = st.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ended infeasible")
	assert.Len(t, script.snaps, 2, "sequence must stop at the failed window")

	// Window one's results were already committed, objective included.
	assert.Equal(t, 3, countRows(t, s, "OutputNetCapacity", "scenario = ? AND period = ?", "demo", 2020))
	assert.Equal(t, 0, countRows(t, s, "OutputNetCapacity", "scenario = ? AND period = ?", "demo", 2025))
	assert.Equal(t, 1, countRows(t, s, "OutputObjective", ""))
}

func TestStepper_Progress(t *testing.T) {
	s := openSeededStore(t)
	script := &windowScript{solutions: []*solve.Solution{
		optimal(results.Raw{}), optimal(results.Raw{}), optimal(results.Raw{}),
	}}
	solver := script.solver()

	var out bytes.Buffer
	st, err := NewStepper(Config{
		Store: s, Solver: solver, Scenario: "demo",
		StepSize: 1, ViewDepth: 1,
		Logger: discardLogger(), Stdout: &out,
	})
	require.NoError(t, err)
	require.NoError(t, st.Run(context.Background()))

	assert.Contains(t, out.String(), "myopic run demo: 3 windows over 2020..2035")
	assert.Contains(t, out.String(), "  2020: load check solve report\n")
	assert.Contains(t, out.String(), "  2030: load check solve report\n")
}

func TestNewStepper_Validation(t *testing.T) {
	s := openSeededStore(t)
	solver := (&windowScript{}).solver()

	_, err := NewStepper(Config{Solver: solver, Scenario: "demo"})
	assert.Error(t, err, "a stepper needs a store")
	_, err = NewStepper(Config{Store: s, Scenario: "demo"})
	assert.Error(t, err, "a stepper needs a solver")
	_, err = NewStepper(Config{Store: s, Solver: solver})
	assert.Error(t, err, "a stepper needs a scenario")

	// Step and depth are checked when the run characterizes itself.
	st, err := NewStepper(Config{
		Store: s, Solver: solver, Scenario: "demo",
		StepSize: 0, ViewDepth: 3,
		Logger: discardLogger(), Quiet: true,
	})
	require.NoError(t, err)
	err = st.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step size")
}
