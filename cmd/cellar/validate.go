package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tapline-hq/cellar/pkg/config"
	"tapline-hq/cellar/pkg/prefs"
)

var validateFlags struct {
	prefs string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and preference files",
	Long: `Validate configuration and preference files without running anything.

Examples:
  # Validate the config file
  cellar validate --config config.yaml

  # Also check a preferences file
  cellar validate --config config.yaml --prefs prefs.yaml`,
	RunE: validateFiles,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.prefs, "prefs", "p", "", "preferences YAML file to validate")
}

func validateFiles(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %s valid\n", cfgFile)

	prefsPath := validateFlags.prefs
	if prefsPath == "" {
		prefsPath = cfg.Prefs.File
	}

	p, err := prefs.LoadFile(prefsPath)
	if err != nil {
		return err
	}
	if err := validatePrefs(p); err != nil {
		return fmt.Errorf("%s: %w", prefsPath, err)
	}
	fmt.Printf("✓ %s valid\n", prefsPath)
	return nil
}

// validatePrefs checks a preferences document for values the engine would
// reject or silently ignore.
func validatePrefs(p *prefs.Preferences) error {
	if p.Targets.DefaultWeeks < 0 {
		return fmt.Errorf("targets.default_weeks must not be negative")
	}
	for category, weeks := range p.Targets.ByCategory {
		if weeks <= 0 {
			return fmt.Errorf("targets.by_category[%q] must be positive", category)
		}
	}
	for item, weeks := range p.Targets.ItemOverrides {
		if weeks <= 0 {
			return fmt.Errorf("targets.item_overrides[%q] must be positive", item)
		}
	}
	if p.Constraints.MaxTotalSpend < 0 {
		return fmt.Errorf("constraints.max_total_spend must not be negative")
	}
	if p.Constraints.MaxTotalItems < 0 {
		return fmt.Errorf("constraints.max_total_items must not be negative")
	}
	for vendor, cap := range p.Constraints.VendorKegMaxOrder {
		if cap <= 0 {
			return fmt.Errorf("constraints.vendor_keg_max_order[%q] must be positive", vendor)
		}
	}
	if p.Constraints.KegRebalanceThreshold < 0 {
		return fmt.Errorf("constraints.keg_rebalance_threshold must not be negative")
	}
	return nil
}
