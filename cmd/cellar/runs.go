package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tapline-hq/cellar/pkg/export"
	"tapline-hq/cellar/pkg/storage"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and approve stored recommendation runs",
}

var runsListFlags struct {
	limit int
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE:  listRuns,
}

var runsShowFlags struct {
	asJSON bool
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a stored run in full",
	Args:  cobra.ExactArgs(1),
	RunE:  showRun,
}

var runsApproveFlags struct {
	approve []string
	reject  []string
}

var runsApproveCmd = &cobra.Command{
	Use:   "approve <run-id>",
	Short: "Record operator approvals for a run",
	Long: `Record operator approvals for a run.

Approved lines are named by item ID, optionally with a quantity override
using item=qty syntax.

Examples:
  # Approve two lines, reject one
  cellar runs approve run_abc123 --approve IPA-001,STOUT-002 --reject GIN-009

  # Approve with a quantity override
  cellar runs approve run_abc123 --approve IPA-001=10`,
	Args: cobra.ExactArgs(1),
	RunE: approveRun,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsApproveCmd)

	runsListCmd.Flags().IntVarP(&runsListFlags.limit, "limit", "n", 20, "maximum runs to list")
	runsShowCmd.Flags().BoolVar(&runsShowFlags.asJSON, "json", false, "print the run as JSON")
	runsApproveCmd.Flags().StringSliceVar(&runsApproveFlags.approve, "approve", nil, "item IDs to approve (item or item=qty)")
	runsApproveCmd.Flags().StringSliceVar(&runsApproveFlags.reject, "reject", nil, "item IDs to reject")
}

func listRuns(cmd *cobra.Command, args []string) error {
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

	headers, err := store.ListRuns(cmd.Context(), storage.RunFilter{Limit: runsListFlags.limit})
	if err != nil {
		return err
	}
	if len(headers) == 0 {
		fmt.Println("No stored runs.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tCREATED\tDATASET\tITEMS\tSPEND")
	for _, h := range headers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t$%.2f\n",
			h.RunID, h.CreatedAt.Format("2006-01-02 15:04"), h.DatasetID,
			h.TotalItems, h.TotalSpend)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
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

	if runsShowFlags.asJSON {
		return export.NewJSONExporter().Export(run, os.Stdout)
	}

	printRun(run)

	approvals, err := store.GetApprovals(cmd.Context(), run.RunID)
	if err != nil {
		return err
	}
	if len(approvals) > 0 {
		fmt.Printf("\nApprovals:\n")
		for _, a := range approvals {
			status := "rejected"
			if a.Approved {
				status = "approved"
			}
			line := fmt.Sprintf("  %s: %s", a.ItemID, status)
			if a.QuantityOverride != nil {
				line += fmt.Sprintf(" (qty %d)", *a.QuantityOverride)
			}
			fmt.Println(line)
		}
	}
	return nil
}

func approveRun(cmd *cobra.Command, args []string) error {
	if len(runsApproveFlags.approve) == 0 && len(runsApproveFlags.reject) == 0 {
		return fmt.Errorf("nothing to record: pass --approve and/or --reject")
	}

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

	runID := args[0]
	var approvals []storage.Approval

	for _, spec := range runsApproveFlags.approve {
		a := storage.Approval{RunID: runID, Approved: true}
		if item, qty, ok := strings.Cut(spec, "="); ok {
			n, err := strconv.Atoi(qty)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid quantity override %q", spec)
			}
			a.ItemID = item
			a.QuantityOverride = &n
		} else {
			a.ItemID = spec
		}
		approvals = append(approvals, a)
	}
	for _, item := range runsApproveFlags.reject {
		approvals = append(approvals, storage.Approval{RunID: runID, ItemID: item, Approved: false})
	}

	if err := store.SaveApprovals(cmd.Context(), runID, approvals); err != nil {
		return err
	}

	fmt.Printf("Recorded %d approval(s) for %s\n", len(approvals), runID)
	return nil
}
