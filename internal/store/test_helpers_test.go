package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a fresh database in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustExec(t *testing.T, s *Store, query string, args ...any) {
	t.Helper()
	if _, err := s.db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q failed: %v", query, err)
	}
}

// countRows returns the number of rows matching the condition, or the
// whole table when where is empty.
func countRows(t *testing.T, s *Store, table, where string, args ...any) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	return n
}

// seedBaseModel loads a one-region model: ethos feeds a mine, the mine
// feeds a power plant, the plant serves electric demand over 2020-2030
// with a 2035 horizon boundary. An unlimited-capacity tech and a linked
// tech pair with a never-built driven tech round out the edge cases.
func seedBaseModel(t *testing.T, s *Store) {
	t.Helper()
	mustExec(t, s, `INSERT INTO Region (region) VALUES ('R1')`)
	for _, row := range []struct {
		period int
		flag   string
		seq    int
	}{
		{2015, "e", 1}, {2020, "f", 2}, {2025, "f", 3}, {2030, "f", 4}, {2035, "f", 5},
	} {
		mustExec(t, s, `INSERT INTO TimePeriod (period, flag, sequence) VALUES (?, ?, ?)`,
			row.period, row.flag, row.seq)
	}
	for _, row := range [][2]string{
		{"ethos", "s"}, {"coal", "p"}, {"elc", "d"}, {"co2", "e"},
	} {
		mustExec(t, s, `INSERT INTO Commodity (name, flag) VALUES (?, ?)`, row[0], row[1])
	}
	mustExec(t, s, `INSERT INTO Technology (tech, flag, sector, unlim_cap) VALUES ('mine', 'r', 'supply', 0)`)
	mustExec(t, s, `INSERT INTO Technology (tech, flag, sector, unlim_cap) VALUES ('power', 'p', 'electric', 0)`)
	mustExec(t, s, `INSERT INTO Technology (tech, flag, sector, unlim_cap) VALUES ('free', 'p', NULL, 1)`)
	mustExec(t, s, `INSERT INTO Technology (tech, flag, sector, unlim_cap) VALUES ('ccs', 'p', 'electric', 0)`)

	effs := []struct {
		input   string
		tech    string
		vintage int
		output  string
		eff     float64
	}{
		{"ethos", "mine", 2020, "coal", 1.0},
		{"coal", "power", 2015, "elc", 0.35},
		{"coal", "power", 2020, "elc", 0.40},
		{"coal", "power", 2030, "elc", 0.45},
		{"ethos", "free", 2020, "elc", 1.0},
	}
	for _, e := range effs {
		mustExec(t, s, `
			INSERT INTO Efficiency (region, input_comm, tech, vintage, output_comm, efficiency)
			VALUES ('R1', ?, ?, ?, ?, ?)`,
			e.input, e.tech, e.vintage, e.output, e.eff)
	}

	// The 2015 power vintage retires after 20 years; later vintages use
	// the tech lifetime.
	mustExec(t, s, `INSERT INTO LifetimeProcess (region, tech, vintage, lifetime) VALUES ('R1', 'power', 2015, 20)`)
	mustExec(t, s, `INSERT INTO LifetimeTech (region, tech, lifetime) VALUES ('R1', 'power', 40)`)

	for _, d := range []struct {
		period int
		demand float64
	}{
		{2020, 10}, {2025, 12}, {2030, 14},
	} {
		mustExec(t, s, `INSERT INTO Demand (region, period, commodity, demand) VALUES ('R1', ?, 'elc', ?)`,
			d.period, d.demand)
	}

	mustExec(t, s, `INSERT INTO LinkedTech (primary_region, primary_tech, emis_comm, driven_tech) VALUES ('R1', 'power', 'co2', 'ccs')`)
	mustExec(t, s, `INSERT INTO ExistingCapacity (region, tech, vintage, capacity) VALUES ('R1', 'power', 2015, 5)`)

	mustExec(t, s, `INSERT INTO CostInvest (region, tech, vintage, cost) VALUES ('R1', 'mine', 2020, 100)`)
	mustExec(t, s, `INSERT INTO CostInvest (region, tech, vintage, cost) VALUES ('R1', 'power', 2020, 1000)`)
	mustExec(t, s, `INSERT INTO CostInvest (region, tech, vintage, cost) VALUES ('R1', 'power', 2030, 900)`)
	for _, c := range []struct {
		period  int
		vintage int
		cost    float64
	}{
		{2020, 2015, 30}, {2020, 2020, 25}, {2025, 2020, 25}, {2030, 2030, 20},
	} {
		mustExec(t, s, `INSERT INTO CostFixed (region, period, tech, vintage, cost) VALUES ('R1', ?, 'power', ?, ?)`,
			c.period, c.vintage, c.cost)
	}
	mustExec(t, s, `INSERT INTO CostVariable (region, period, tech, vintage, cost) VALUES ('R1', 2020, 'power', 2015, 5)`)
	mustExec(t, s, `INSERT INTO CostVariable (region, period, tech, vintage, cost) VALUES ('R1', 2025, 'power', 2020, 4)`)
}
