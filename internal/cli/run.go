package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jeff-ws/temoa/internal/config"
	"github.com/jeff-ws/temoa/internal/mc"
	"github.com/jeff-ws/temoa/internal/network"
	"github.com/jeff-ws/temoa/internal/run"
	"github.com/jeff-ws/temoa/internal/solve"
	"github.com/jeff-ws/temoa/internal/store"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a Monte Carlo batch over the solver pool",
		Long: `Run executes the Monte Carlo batch described by the run-settings file:
each run perturbs the base data per its tweak rows and solves on a pool
of num_workers engines. Accepted results and the perturbation trail
land in the output database under "<scenario>-<run>" labels; prior
results for the scenario are cleared first. A run that fails to solve
is logged and skipped, never retried.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // don't print usage on errors
		SilenceErrors: true, // main prints the error once, with its exit code
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonteCarlo(rootOpts, cmd)
		},
	}

	return cmd
}

func runMonteCarlo(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts, config.ModeMonteCarlo)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	in, err := store.Open(cfg.InputDatabase)
	if err != nil {
		return WrapExitError(ExitCommandError, "open input database", err)
	}
	defer in.Close()
	out := in
	if cfg.OutputDatabase != cfg.InputDatabase {
		out, err = store.Open(cfg.OutputDatabase)
		if err != nil {
			return WrapExitError(ExitCommandError, "open output database", err)
		}
		defer out.Close()
	}
	if err := out.EnsureIterativeTables(ctx); err != nil {
		return WrapExitError(ExitFailure, "prepare output tables", err)
	}

	gen, err := buildGenerator(ctx, in, cfg)
	if err != nil {
		return WrapExitError(ExitFailure, "build monte carlo runs", err)
	}

	writer := store.NewWriter(out, cfg.Scenario)
	if err := writer.ClearScenario(ctx); err != nil {
		return WrapExitError(ExitFailure, "clear prior results", err)
	}

	// One engine handle per worker; each worker owns its handle
	// exclusively for the whole batch.
	solvers := make([]solve.Solver, cfg.MonteCarlo.NumWorkers)
	for i := range solvers {
		s, err := solve.New(cfg.SolverName, cfg.OptionsFor(cfg.SolverName))
		if err != nil {
			return WrapExitError(ExitCommandError, "configure solver", err)
		}
		solvers[i] = s
	}

	coord, err := run.NewCoordinator(run.Config{
		Solvers: solvers,
		Sink:    writer,
		Quiet:   opts.Quiet,
		Stdout:  cmd.OutOrStdout(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "configure coordinator", err)
	}
	if err := coord.Run(ctx, gen); err != nil {
		return WrapExitError(ExitFailure, "monte carlo run", err)
	}

	stats := coord.Stats()
	if !opts.Quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "monte carlo complete: %d of %d runs collected\n",
			stats.Collected, stats.Dispatched)
	}
	return nil
}

// buildGenerator assembles the Monte Carlo run sequence: load the model,
// prune it to the feasible network, screen the base snapshot down to the
// surviving processes, then validate the run settings against it.
func buildGenerator(ctx context.Context, st *store.Store, cfg *config.Config) (*mc.Generator, error) {
	data, err := st.LoadModelData(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := st.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	mgr := network.NewManager(data, slog.Default())
	mgr.Analyze()
	if n := mgr.OrphanCount(); n > 0 {
		slog.Warn("pruned orphan processes from the base model", "count", n)
	}
	filters, err := mgr.BuildFilters()
	if err != nil {
		return nil, err
	}
	store.ScreenSnapshot(snap, filters)

	settings, err := mc.LoadSettings(cfg.MonteCarlo.RunSettings, snap)
	if err != nil {
		return nil, err
	}
	return mc.NewGenerator(cfg.Scenario, snap, settings)
}
