package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeff-ws/temoa/internal/config"
	"github.com/jeff-ws/temoa/internal/network"
	"github.com/jeff-ws/temoa/internal/store"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var dotDir string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Analyze commodity-network feasibility and report orphans",
		Long: `Check loads the model from the input database and prunes, per (region,
period), every technology that cannot trace back to a source commodity
or forward to a demand. The report lists the orphans, the synthetic
links they leave behind, and any demand commodity left without a supply
path. Exchange regions appear only through the links they carry.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // don't print usage on errors
		SilenceErrors: true, // main prints the error once, with its exit code
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, dotDir, cmd)
		},
	}
	cmd.Flags().StringVar(&dotDir, "dot-dir", "", "write one Graphviz file per (region, period) into this directory")

	return cmd
}

func runCheck(opts *RootOptions, dotDir string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts, config.ModeCheck)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.InputDatabase)
	if err != nil {
		return WrapExitError(ExitCommandError, "open input database", err)
	}
	defer st.Close()

	data, err := st.LoadModelData(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "load model data", err)
	}
	mgr := network.NewManager(data, slog.Default())
	mgr.Analyze()

	report, err := mgr.Report()
	if err != nil {
		return WrapExitError(ExitFailure, "build report", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), report)

	if dotDir != "" {
		n, err := writeDOTFiles(mgr, data, dotDir)
		if err != nil {
			return WrapExitError(ExitFailure, "write graph files", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nwrote %d graph file(s) to %s\n", n, dotDir)
	}
	return nil
}

// writeDOTFiles renders every bucket of the analyzed model, orphans and
// all, into dir as network_<region>_<period>.dot.
func writeDOTFiles(mgr *network.Manager, data *network.ModelData, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	written := 0
	for _, rp := range data.Buckets() {
		dot, err := mgr.WriteDOT(rp)
		if err != nil {
			return written, err
		}
		name := fmt.Sprintf("network_%s_%d.dot", rp.Region, rp.Period)
		if err := os.WriteFile(filepath.Join(dir, name), []byte(dot), 0o644); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
