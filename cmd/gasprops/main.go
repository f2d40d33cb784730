package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gasprops",
		Short: "Gas properties - 2D diffusion of two gases",
		Long: `gasprops simulates two species of hard-disc gas in a box split by a
removable divider.

It steps the particles with elastic collisions, reports macroscopic
observables (counts, centers of mass, temperatures, flow rates) and keeps
a history of runs in a local SQLite database.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newConfigCmd(),
		newHistoryCmd(),
		newRenderCmd(),
		newServeCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
