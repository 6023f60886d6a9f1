package myopic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/jeff-ws/temoa/internal/network"
	"github.com/jeff-ws/temoa/internal/results"
	"github.com/jeff-ws/temoa/internal/run"
	"github.com/jeff-ws/temoa/internal/solve"
	"github.com/jeff-ws/temoa/internal/store"
)

// Config wires a Stepper. Store must be both the data source and the
// result target: the windows communicate through it.
type Config struct {
	Store    *store.Store
	Solver   solve.Solver
	Scenario string

	// StepSize is how many periods each window advances; ViewDepth is how
	// many periods a window sees ahead. ViewDepth must be at least
	// StepSize or some periods would never be solved.
	StepSize  int
	ViewDepth int

	// SaveDuals writes each window's dual values under a per-window label.
	SaveDuals bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Quiet suppresses the per-window progress prints.
	Quiet bool

	// Stdout is where progress prints go. Defaults to os.Stdout.
	Stdout io.Writer
}

// Stepper drives one myopic sequence over a single store. A Stepper is
// single-use.
type Stepper struct {
	store     *store.Store
	solver    solve.Solver
	scenario  string
	stepSize  int
	viewDepth int
	saveDuals bool
	log       *slog.Logger
	quiet     bool
	stdout    io.Writer
}

// NewStepper validates the wiring and builds a Stepper. Step size and view
// depth are checked later, by CharacterizeRun.
func NewStepper(cfg Config) (*Stepper, error) {
	if cfg.Store == nil {
		return nil, errors.New("myopic: stepper needs a store")
	}
	if cfg.Solver == nil {
		return nil, errors.New("myopic: stepper needs a solver")
	}
	if cfg.Scenario == "" {
		return nil, errors.New("myopic: stepper needs a scenario name")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Stepper{
		store:     cfg.Store,
		solver:    cfg.Solver,
		scenario:  cfg.Scenario,
		stepSize:  cfg.StepSize,
		viewDepth: cfg.ViewDepth,
		saveDuals: cfg.SaveDuals,
		log:       log,
		quiet:     cfg.Quiet,
		stdout:    stdout,
	}, nil
}

// Run executes the full window sequence. Results land incrementally: each
// window clears its own periods and appends, so a window that ends
// non-optimal aborts the sequence with everything before it already
// committed. Rerunning the scenario starts from a clean slate.
func (st *Stepper) Run(ctx context.Context) error {
	periods, err := st.store.FuturePeriods(ctx)
	if err != nil {
		return err
	}
	windows, err := CharacterizeRun(periods, st.stepSize, st.viewDepth)
	if err != nil {
		return err
	}
	st.log.Info("myopic sequence characterized",
		"scenario", st.scenario, "windows", windows.Len(), "periods", len(periods))

	if err := st.store.ClearMyopicResults(ctx, st.scenario); err != nil {
		return err
	}
	if err := st.store.InitMyopicEfficiency(ctx); err != nil {
		return err
	}

	writer := store.NewWriter(st.store, st.scenario)
	if !st.quiet {
		fmt.Fprintf(st.stdout, "myopic run %s: %d windows over %d..%d\n",
			st.scenario, windows.Len(), periods[0], periods[len(periods)-1])
	}

	prevBase := -1
	for windows.Len() > 0 {
		win := windows.PopBack()
		if prevBase < 0 {
			prevBase = win.BaseYear
		}
		if err := st.runWindow(ctx, writer, win, prevBase); err != nil {
			return err
		}
		prevBase = win.BaseYear
	}

	// Each window wrote an objective for its own partial horizon. The
	// values are not comparable to anything, so none of them are kept.
	if err := st.store.ClearObjectives(ctx, st.scenario); err != nil {
		return err
	}
	if err := st.store.Vacuum(ctx); err != nil {
		return err
	}
	st.log.Info("myopic sequence complete", "scenario", st.scenario)
	return nil
}

func (st *Stepper) runWindow(ctx context.Context, writer *store.Writer, win Window, prevBase int) error {
	st.log.Info("processing myopic window", "window", win)
	if !st.quiet {
		fmt.Fprintf(st.stdout, "%6d:", win.BaseYear)
		defer fmt.Fprintln(st.stdout)
	}

	st.stage("load")
	st.log.Debug("advancing efficiency window", "base", win.BaseYear, "prev_base", prevBase)
	if err := st.store.UpdateMyopicEfficiency(ctx, st.scenario, win.Span()); err != nil {
		return err
	}
	data, err := st.store.LoadWindowModelData(ctx, win.Span())
	if err != nil {
		return err
	}
	snap, err := st.store.LoadWindowSnapshot(ctx, st.scenario, win.Span())
	if err != nil {
		return err
	}

	st.stage("check")
	mgr := network.NewManager(data, st.log)
	mgr.Analyze()
	if n := mgr.OrphanCount(); n > 0 {
		st.log.Warn("source trace pruned orphan processes", "window", win, "count", n)
	}
	if err := st.warnUnsupportedDemands(mgr, win); err != nil {
		return err
	}
	filters, err := mgr.BuildFilters()
	if err != nil {
		return err
	}
	store.ScreenSnapshot(snap, filters)

	st.stage("solve")
	sol, err := st.solver.Solve(ctx, &solve.Instance{Label: st.scenario, Data: snap})
	if err != nil {
		return fmt.Errorf("myopic window %s: %w", win, err)
	}
	if sol.Status != solve.StatusOptimal {
		return fmt.Errorf("myopic window %s ended %s; aborting the sequence", win, sol.Status)
	}

	st.stage("report")
	rec := results.NewRecord(st.scenario, &sol.Raw)
	if err := st.store.ClearResultsAfter(ctx, st.scenario, win.BaseYear); err != nil {
		return err
	}
	if err := writer.WriteResults(ctx, rec); err != nil {
		return err
	}
	if st.saveDuals {
		if err := writer.WriteDuals(ctx, run.Label(st.scenario, win.BaseYear), rec.Duals); err != nil {
			return err
		}
	}
	st.log.Info("completed myopic window", "window", win, "elapsed", sol.Elapsed)
	return nil
}

// stage appends one progress mark to the current window's line.
func (st *Stepper) stage(name string) {
	if !st.quiet {
		fmt.Fprintf(st.stdout, " %s", name)
	}
}

func (st *Stepper) warnUnsupportedDemands(mgr *network.Manager, win Window) error {
	unsupported, err := mgr.UnsupportedDemands()
	if err != nil {
		return err
	}
	rps := make([]network.RegionPeriod, 0, len(unsupported))
	for rp := range unsupported {
		rps = append(rps, rp)
	}
	sort.Slice(rps, func(i, j int) bool {
		if rps[i].Region != rps[j].Region {
			return rps[i].Region < rps[j].Region
		}
		return rps[i].Period < rps[j].Period
	})
	for _, rp := range rps {
		st.log.Warn("demand commodity has no supply path",
			"window", win, "region", rp.Region, "period", rp.Period,
			"commodities", unsupported[rp])
	}
	return nil
}
