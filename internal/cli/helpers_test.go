package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeff-ws/temoa/internal/store"
)

// writeConfig writes a configuration file into dir and returns its path.
func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// touch creates an empty file for settings that only check existence.
func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

// seedModelDB creates a model database under dir: an ethos-fed mine
// feeding a power plant, plus an unlimited-capacity tech, with electric
// demand over 2020-2030 and a 2035 horizon boundary. The 2015 power
// vintage retires after 20 years.
func seedModelDB(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "model.db")
	s, err := store.Open(path)
	require.NoError(t, err)

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
		`INSERT INTO CostInvest (region, tech, vintage, cost) VALUES
			('R1', 'power', 2020, 1000), ('R1', 'power', 2030, 900)`,
	}
	for _, stmt := range stmts {
		_, err := s.DB().Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())
	return path
}

// countRows reopens the database and counts rows matching the condition.
func countRows(t *testing.T, path, table, where string, args ...any) int {
	t.Helper()
	s, err := store.Open(path)
	require.NoError(t, err)
	defer s.Close()
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	require.NoError(t, s.DB().QueryRow(query, args...).Scan(&n))
	return n
}
