// Package cmd contains CLI command definitions
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "perfgate",
		Short: "Perfgate - statistical regression gate for workload measurements",
		Long: `Perfgate runs repeated workloads, reduces the sampled measurements into
statistics, and gates them against pass criteria or recorded baselines.

Use "perfgate run" to execute a suite file directly, or "perfgate interactive"
for a menu-driven mode.`,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
