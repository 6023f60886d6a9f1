package harness

import (
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden runs a scenario and compares the rendered report against
// testdata/golden/<name>.golden. The golden files are the source of truth
// for pruning behavior; regenerate them with:
//
//	go test ./internal/harness -update
//
// Returns the run result so callers can layer further checks on top.
func RunWithGolden(t *testing.T, s *Scenario, logger *slog.Logger) (*Result, error) {
	t.Helper()

	res, err := Run(s, logger)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, []byte(res.Report))
	return res, nil
}
