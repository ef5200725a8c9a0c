package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tapline-hq/cellar/pkg/export"
)

var exportFlags struct {
	output string
	format string
	all    bool
}

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a stored run as an order sheet",
	Long: `Export a stored run as an order sheet.

By default only lines with a nonzero quantity are exported, grouped by
vendor, as CSV.

Examples:
  # CSV order sheet to stdout
  cellar export run_abc123

  # Write to a file
  cellar export run_abc123 --output order.csv

  # Full run detail as JSON
  cellar export run_abc123 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: exportRun,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVarP(&exportFlags.format, "format", "f", "csv", "output format (csv or json)")
	exportCmd.Flags().BoolVar(&exportFlags.all, "all", false, "include zero-quantity lines")
}

func exportRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	store, err := openRunStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := os.Stdout
	if exportFlags.output != "" {
		f, err := os.Create(exportFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch exportFlags.format {
	case "csv":
		exporter := export.NewCSVExporter()
		exporter.OnlyOrdered = !exportFlags.all
		if err := exporter.Export(run, out); err != nil {
			return err
		}
	case "json":
		if err := export.NewJSONExporter().Export(run, out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q: use csv or json", exportFlags.format)
	}

	if exportFlags.output != "" {
		fmt.Printf("Run %s exported to %s\n", run.RunID, exportFlags.output)
	}
	return nil
}
