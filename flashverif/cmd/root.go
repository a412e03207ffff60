// Package cmd provides the command-line interface of flashverif.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// NewRootCmd creates the flashverif command with all its subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flashverif",
		Short: "flashverif verifies a serial-flash controller in simulation.",
		Long: `flashverif drives a serial-flash controller model through ` +
			`directed and random scenarios, checks every read against a ` +
			`scoreboard, and reports functional coverage.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd(), newListCmd(), newReportCmd())

	return rootCmd
}

// Execute runs the root command and exits. Exit handlers, such as the ones
// that flush result databases, run before the process ends.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
