package cli

import (
	"github.com/spf13/cobra"

	"github.com/jeff-ws/temoa/internal/config"
	"github.com/jeff-ws/temoa/internal/myopic"
	"github.com/jeff-ws/temoa/internal/solve"
	"github.com/jeff-ws/temoa/internal/store"
)

// NewMyopicCommand creates the myopic command.
func NewMyopicCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "myopic",
		Short: "Solve the horizon window by window with limited foresight",
		Long: `Myopic solves the model as a sequence of overlapping windows. Each
window sees view_depth future periods, advances step_size of them, and
threads its capacity decisions into the next window through the
database. Results land in the same database the model is read from.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // don't print usage on errors
		SilenceErrors: true, // main prints the error once, with its exit code
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMyopic(rootOpts, cmd)
		},
	}

	return cmd
}

func runMyopic(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts, config.ModeMyopic)
	if err != nil {
		return err
	}
	solver, err := solve.New(cfg.SolverName, cfg.OptionsFor(cfg.SolverName))
	if err != nil {
		return WrapExitError(ExitCommandError, "configure solver", err)
	}
	st, err := store.Open(cfg.InputDatabase)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	stepper, err := myopic.NewStepper(myopic.Config{
		Store:     st,
		Solver:    solver,
		Scenario:  cfg.Scenario,
		StepSize:  cfg.Myopic.StepSize,
		ViewDepth: cfg.Myopic.ViewDepth,
		SaveDuals: cfg.SaveDuals,
		Quiet:     opts.Quiet,
		Stdout:    cmd.OutOrStdout(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "configure myopic run", err)
	}
	if err := stepper.Run(cmd.Context()); err != nil {
		return WrapExitError(ExitFailure, "myopic run", err)
	}
	return nil
}
