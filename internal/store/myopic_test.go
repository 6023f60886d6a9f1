package store

import (
	"context"
	"sort"
	"testing"
)

// myopicRow is the identifying slice of a MyopicEfficiency row.
type myopicRow struct {
	baseYear int
	tech     string
	vintage  int
}

func readMyopicRows(t *testing.T, s *Store) []myopicRow {
	t.Helper()
	rows, err := s.db.Query(`SELECT base_year, tech, vintage FROM MyopicEfficiency`)
	if err != nil {
		t.Fatalf("query MyopicEfficiency failed: %v", err)
	}
	defer rows.Close()
	var out []myopicRow
	for rows.Next() {
		var r myopicRow
		if err := rows.Scan(&r.baseYear, &r.tech, &r.vintage); err != nil {
			t.Fatalf("scan MyopicEfficiency failed: %v", err)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].tech != out[j].tech {
			return out[i].tech < out[j].tech
		}
		return out[i].vintage < out[j].vintage
	})
	return out
}

func TestInitMyopicEfficiency(t *testing.T) {
	s := createTestStore(t)
	seedBaseModel(t, s)
	ctx := context.Background()

	if err := s.InitMyopicEfficiency(ctx); err != nil {
		t.Fatalf("InitMyopicEfficiency() failed: %v", err)
	}

	// Only the 2015 power vintage exists before the horizon.
	got := readMyopicRows(t, s)
	if len(got) != 1 || got[0] != (myopicRow{baseYear: -1, tech: "power", vintage: 2015}) {
		t.Fatalf("seeded rows = %v, expected one existing power/2015 row", got)
	}

	var lifetime float64
	err := s.db.QueryRow(`SELECT lifetime FROM MyopicEfficiency WHERE tech = 'power' AND vintage = 2015`).Scan(&lifetime)
	if err != nil {
		t.Fatalf("query lifetime failed: %v", err)
	}
	if lifetime != 20 {
		t.Errorf("seeded lifetime = %g, expected the 20-year process lifetime", lifetime)
	}

	// Re-initialization starts from scratch.
	if err := s.InitMyopicEfficiency(ctx); err != nil {
		t.Fatalf("second InitMyopicEfficiency() failed: %v", err)
	}
	if n := countRows(t, s, "MyopicEfficiency", ""); n != 1 {
		t.Errorf("rows after re-init = %d, expected 1", n)
	}
}

func TestUpdateMyopicEfficiency_WindowLifecycle(t *testing.T) {
	s := createTestStore(t)
	seedBaseModel(t, s)
	ctx := context.Background()

	if err := s.InitMyopicEfficiency(ctx); err != nil {
		t.Fatalf("InitMyopicEfficiency() failed: %v", err)
	}

	// First window: prior period is existing, so nothing is pruned and
	// the 2020 vintages come into view.
	if err := s.UpdateMyopicEfficiency(ctx, "test", PeriodSpan{Base: 2020, LastDemandYear: 2025}); err != nil {
		t.Fatalf("first UpdateMyopicEfficiency() failed: %v", err)
	}
	want := []myopicRow{
		{2020, "free", 2020},
		{2020, "mine", 2020},
		{-1, "power", 2015},
		{2020, "power", 2020},
	}
	sortMyopicRows(want)
	if got := readMyopicRows(t, s); !equalMyopicRows(got, want) {
		t.Fatalf("rows after first window = %v, expected %v", got, want)
	}

	// The first solve kept capacity only for the 2020 power vintage.
	mustExec(t, s, `
		INSERT INTO OutputNetCapacity (scenario, region, sector, period, tech, vintage, capacity)
		VALUES ('test', 'R1', 'electric', 2025, 'power', 2020, 3)`)

	// Second window: the seeded 2015 vintage and the unbuilt mine are
	// pruned; the unlimited-capacity tech survives without capacity rows.
	if err := s.UpdateMyopicEfficiency(ctx, "test", PeriodSpan{Base: 2030, LastDemandYear: 2030}); err != nil {
		t.Fatalf("second UpdateMyopicEfficiency() failed: %v", err)
	}
	want = []myopicRow{
		{2020, "free", 2020},
		{2020, "power", 2020},
		{2030, "power", 2030},
	}
	sortMyopicRows(want)
	if got := readMyopicRows(t, s); !equalMyopicRows(got, want) {
		t.Fatalf("rows after second window = %v, expected %v", got, want)
	}
}

func TestUpdateMyopicEfficiency_Rerun(t *testing.T) {
	s := createTestStore(t)
	seedBaseModel(t, s)
	ctx := context.Background()

	if err := s.InitMyopicEfficiency(ctx); err != nil {
		t.Fatalf("InitMyopicEfficiency() failed: %v", err)
	}
	span := PeriodSpan{Base: 2020, LastDemandYear: 2025}
	for i := 0; i < 2; i++ {
		if err := s.UpdateMyopicEfficiency(ctx, "test", span); err != nil {
			t.Fatalf("UpdateMyopicEfficiency() pass %d failed: %v", i, err)
		}
	}
	// The base-forward delete makes the update safe to repeat; a second
	// pass would otherwise violate the primary key.
	if n := countRows(t, s, "MyopicEfficiency", ""); n != 4 {
		t.Errorf("rows after rerun = %d, expected 4", n)
	}
}

func TestClearResultsAfter(t *testing.T) {
	s := createTestStore(t)
	seedBaseModel(t, s)
	ctx := context.Background()

	for _, period := range []int{2020, 2025, 2030} {
		mustExec(t, s, `
			INSERT INTO OutputNetCapacity (scenario, region, sector, period, tech, vintage, capacity)
			VALUES ('test', 'R1', 'electric', ?, 'power', 2020, 1)`, period)
	}
	mustExec(t, s, `
		INSERT INTO OutputNetCapacity (scenario, region, sector, period, tech, vintage, capacity)
		VALUES ('other', 'R1', 'electric', 2030, 'power', 2020, 1)`)
	mustExec(t, s, `INSERT INTO OutputCost (scenario, region, period, tech, vintage) VALUES ('test', 'R1', 2020, 'power', 2020)`)
	mustExec(t, s, `INSERT INTO OutputCost (scenario, region, period, tech, vintage) VALUES ('test', 'R1', 2030, 'power', 2020)`)
	mustExec(t, s, `INSERT INTO OutputBuiltCapacity (scenario, region, sector, tech, vintage, capacity) VALUES ('test', 'R1', 'electric', 'power', 2020, 1)`)
	mustExec(t, s, `INSERT INTO OutputBuiltCapacity (scenario, region, sector, tech, vintage, capacity) VALUES ('test', 'R1', 'electric', 'power', 2030, 1)`)

	if err := s.ClearResultsAfter(ctx, "test", 2025); err != nil {
		t.Fatalf("ClearResultsAfter() failed: %v", err)
	}

	if n := countRows(t, s, "OutputNetCapacity", "scenario = 'test'"); n != 1 {
		t.Errorf("test net capacity rows = %d, expected only the 2020 row", n)
	}
	if n := countRows(t, s, "OutputNetCapacity", "scenario = 'other'"); n != 1 {
		t.Errorf("other scenario rows = %d, expected untouched", n)
	}
	if n := countRows(t, s, "OutputCost", "scenario = 'test'"); n != 1 {
		t.Errorf("cost rows = %d, expected only the 2020 row", n)
	}
	// Built capacity clears by vintage, not period.
	if n := countRows(t, s, "OutputBuiltCapacity", "scenario = 'test' AND vintage = 2020"); n != 1 {
		t.Error("2020-vintage built capacity should survive")
	}
	if n := countRows(t, s, "OutputBuiltCapacity", "scenario = 'test' AND vintage = 2030"); n != 0 {
		t.Error("2030-vintage built capacity should be cleared")
	}
}

func TestClearMyopicResults(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustExec(t, s, `INSERT INTO OutputObjective (scenario, objective_name, total_system_cost) VALUES ('demo', 'TotalCost', 1)`)
	mustExec(t, s, `INSERT INTO OutputObjective (scenario, objective_name, total_system_cost) VALUES ('demo-2020', 'TotalCost', 1)`)
	mustExec(t, s, `INSERT INTO OutputObjective (scenario, objective_name, total_system_cost) VALUES ('other', 'TotalCost', 1)`)
	mustExec(t, s, `INSERT INTO OutputNetCapacity (scenario, region, sector, period, tech, vintage, capacity) VALUES ('demo-2025', 'R1', NULL, 2025, 'power', 2020, 1)`)

	if err := s.ClearMyopicResults(ctx, "demo"); err != nil {
		t.Fatalf("ClearMyopicResults() failed: %v", err)
	}

	if n := countRows(t, s, "OutputObjective", ""); n != 1 {
		t.Errorf("objective rows = %d, expected only 'other'", n)
	}
	var scenario string
	if err := s.db.QueryRow(`SELECT scenario FROM OutputObjective`).Scan(&scenario); err != nil {
		t.Fatalf("query survivor failed: %v", err)
	}
	if scenario != "other" {
		t.Errorf("survivor = %q, expected other", scenario)
	}
	if n := countRows(t, s, "OutputNetCapacity", ""); n != 0 {
		t.Errorf("windowed net capacity rows = %d, expected cleared", n)
	}
}

func TestClearObjectives(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustExec(t, s, `INSERT INTO OutputObjective (scenario, objective_name, total_system_cost) VALUES ('demo', 'TotalCost', 1)`)
	mustExec(t, s, `INSERT INTO OutputObjective (scenario, objective_name, total_system_cost) VALUES ('demo-2020', 'TotalCost', 2)`)
	mustExec(t, s, `INSERT INTO OutputObjective (scenario, objective_name, total_system_cost) VALUES ('other', 'TotalCost', 3)`)

	if err := s.ClearObjectives(ctx, "demo"); err != nil {
		t.Fatalf("ClearObjectives() failed: %v", err)
	}
	if n := countRows(t, s, "OutputObjective", ""); n != 1 {
		t.Errorf("objective rows = %d, expected 1", n)
	}
	if n := countRows(t, s, "OutputObjective", "scenario = 'other'"); n != 1 {
		t.Error("unrelated scenario should survive")
	}
}

func sortMyopicRows(rows []myopicRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].tech != rows[j].tech {
			return rows[i].tech < rows[j].tech
		}
		return rows[i].vintage < rows[j].vintage
	})
}

func equalMyopicRows(a, b []myopicRow) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
