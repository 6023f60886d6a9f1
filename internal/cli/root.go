// Package cli implements the temoa command tree: configuration
// validation, network feasibility checks, Monte Carlo batches, and
// myopic sequences, all driven by one TOML configuration file.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jeff-ws/temoa/internal/config"
)

// RootOptions holds the global flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	Quiet      bool
	Debug      bool
}

// NewRootCommand creates the root command for the temoa CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "temoa",
		Short: "Tools for energy model optimization and analysis",
		Long: `Temoa builds and evaluates variants of an energy-system optimization
model: commodity-network feasibility checks, Monte Carlo batches over a
solver pool, and myopic sequences with limited foresight. Every command
reads its settings from one TOML configuration file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Quiet && opts.Debug {
				return NewExitError(ExitCommandError, "--quiet and --debug are mutually exclusive")
			}
			installLogger(cmd, opts)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "config.toml", "path to the TOML run configuration")
	cmd.PersistentFlags().BoolVar(&opts.Quiet, "quiet", false, "suppress progress output and informational logs")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "enable debug logging")

	// Flag misuse is a usage error, not a runtime failure.
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid invocation", err)
	})

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewMyopicCommand(opts))

	return cmd
}

// installLogger sets the process default logger. The coordinator's relay,
// the network analyzer, and the stepper all log through slog.Default.
func installLogger(cmd *cobra.Command, opts *RootOptions) {
	level := slog.LevelInfo
	switch {
	case opts.Debug:
		level = slog.LevelDebug
	case opts.Quiet:
		level = slog.LevelWarn
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadConfig loads the run configuration and enforces the mode the
// command implements. A mode mismatch means the wrong file was passed,
// so it maps to a command error rather than a runtime failure.
func loadConfig(opts *RootOptions, want config.Mode) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}
	if want != "" && cfg.Mode != want {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("configuration mode is %q; this command runs mode %q", cfg.Mode, want))
	}
	return cfg, nil
}
