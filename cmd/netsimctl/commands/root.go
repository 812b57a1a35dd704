// Package commands implements the netsimctl cobra command tree: run,
// topology, and calibrate.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the top-level cobra command for netsimctl.
var rootCmd = &cobra.Command{
	Use:   "netsimctl",
	Short: "Drive discrete-event network simulation scenarios",
	Long:  "netsimctl loads a scenario file describing a topology and a run, drives it through the simulator, and reports results.",

	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(topologyCmd())
	rootCmd.AddCommand(calibrateCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
