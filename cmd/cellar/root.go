package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cellar",
	Short: "Cellar - ordering recommendation engine for bar and retail inventory",
	Long: `Cellar turns weekly inventory counts into a reviewed order sheet.

It computes usage features from count history, applies ordering rules with
confidence grades, enforces budget and item-count constraints, and rebalances
fixed-size keg orders across draft vendors:
  - Rolling usage averages with trend and data-quality detection
  - Rule-based recommendations (stockout risk, below target, trending up)
  - Budget, max-item, and vendor minimum/maximum constraints
  - Keg truck rebalancing toward the slowest-moving taps
  - Run history with operator approvals and CSV export`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
