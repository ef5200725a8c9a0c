package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tapline-hq/cellar/pkg/export"
	"tapline-hq/cellar/pkg/inventory"
	"tapline-hq/cellar/pkg/ordering"
)

var runFlags struct {
	snapshot string
	catalog  string
	prefs    string
	output   string
	asJSON   bool
	noSave   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a recommendation pass over CSV inventory data",
	Long: `Run a recommendation pass over CSV inventory data.

The snapshot CSV holds weekly counts (item_id, week_date, on_hand, usage).
The catalog CSV holds item detail (item_id, name, category, vendor,
unit_cost, case_size). Targets and constraints come from the preferences
file, with per-item overrides from the preference store when configured.

Examples:
  # Run with the configured preferences
  cellar run --catalog items.csv --snapshot counts.csv

  # Use a different preferences file
  cellar run --catalog items.csv --snapshot counts.csv --prefs summer.yaml

  # Write the order sheet directly
  cellar run --catalog items.csv --snapshot counts.csv --output order.csv`,
	RunE: runRecommendation,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.snapshot, "snapshot", "s", "", "weekly counts CSV (required)")
	runCmd.Flags().StringVar(&runFlags.catalog, "catalog", "", "item catalog CSV (required)")
	runCmd.Flags().StringVarP(&runFlags.prefs, "prefs", "p", "", "preferences YAML file (overrides config)")
	runCmd.Flags().StringVarP(&runFlags.output, "output", "o", "", "write CSV order sheet to file")
	runCmd.Flags().BoolVar(&runFlags.asJSON, "json", false, "print the full run as JSON")
	runCmd.Flags().BoolVar(&runFlags.noSave, "no-save", false, "do not persist the run")
	_ = runCmd.MarkFlagRequired("snapshot")
	_ = runCmd.MarkFlagRequired("catalog")
}

func runRecommendation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	dataset, err := inventory.LoadDataset(runFlags.catalog, runFlags.snapshot)
	if err != nil {
		return err
	}

	prefsMgr, itemStore, err := openPrefs(cfg, runFlags.prefs)
	if err != nil {
		return err
	}
	if itemStore != nil {
		defer itemStore.Close()
	}

	targets, err := prefsMgr.EffectiveTargets(cmd.Context())
	if err != nil {
		return err
	}
	constraints := prefsMgr.Constraints()

	engine := ordering.NewEngine(ordering.WithFeatureConfig(featureConfigFrom(cfg)))
	run, err := engine.Run(cmd.Context(), dataset, targets, constraints)
	if err != nil {
		return err
	}

	if !runFlags.noSave {
		store, err := openRunStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SaveRun(cmd.Context(), run); err != nil {
			return fmt.Errorf("failed to persist run: %w", err)
		}
	}

	if runFlags.output != "" {
		f, err := os.Create(runFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		if err := export.NewCSVExporter().Export(run, f); err != nil {
			return err
		}
		fmt.Printf("Order sheet written to %s\n", runFlags.output)
	}

	if runFlags.asJSON {
		return export.NewJSONExporter().Export(run, os.Stdout)
	}

	printRun(run)
	return nil
}

// printRun writes a human-readable order summary to stdout.
func printRun(run *ordering.RecommendationRun) {
	fmt.Printf("Run %s (%s)\n", run.RunID, run.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("Items to order: %d    Total spend: $%.2f\n\n", run.Summary.TotalItems, run.Summary.TotalSpend)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tNAME\tVENDOR\tQTY\tCOST\tREASON\tCONFIDENCE")
	for _, rec := range run.Recommendations {
		if rec.Quantity == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t$%.2f\t%s\t%s\n",
			rec.ItemID, rec.Name, rec.Vendor,
			rec.Quantity, rec.TotalCost, rec.Reason, rec.Confidence)
	}
	w.Flush()

	if len(run.Warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, warn := range run.Warnings {
			if warn.ItemID != "" {
				fmt.Printf("  [%s] %s\n", warn.ItemID, warn.Message)
			} else if warn.Vendor != "" {
				fmt.Printf("  [vendor %s] %s\n", warn.Vendor, warn.Message)
			} else {
				fmt.Printf("  %s\n", warn.Message)
			}
		}
	}

	if len(run.Recounts) > 0 {
		fmt.Printf("\nRecount suggested for %d item(s); see run detail for expected counts.\n", len(run.Recounts))
	}
}
