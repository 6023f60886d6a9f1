package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the run configuration without executing anything",
		Long: `Validate checks the TOML configuration against the embedded schema,
resolves its file paths, and prints the effective settings. No database
is opened and no solver is touched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // don't print usage on errors
		SilenceErrors: true, // main prints the error once, with its exit code
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	// Any mode validates; this command checks the file, not the run.
	cfg, err := loadConfig(opts, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configuration %s is valid\n\n", opts.ConfigPath)
	fmt.Fprint(cmd.OutOrStdout(), cfg.Summary())
	return nil
}
