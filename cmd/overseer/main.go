// Command overseer runs a demo supervision tree with an introspection server.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information, set at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "overseer",
		Short: "overseer - supervision trees for Go services",
		Long: `overseer runs a tree of supervised children and restarts them according
to their restart policy and the supervisor strategy.

The run command starts a demo tree with flaky workers and serves its state,
recent events and metrics over HTTP.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: overseer.yaml or $OVERSEER_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the demo supervision tree",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), configFile)
			},
		},
		&cobra.Command{
			Use:   "config",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printConfig(cmd.OutOrStdout(), configFile)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "overseer %s\n", Version)
				fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
				fmt.Fprintf(out, "  Go Version: %s\n", runtime.Version())
			},
		},
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
