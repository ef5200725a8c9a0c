// Package export writes recommendation runs to order-sheet formats an
// operator can hand to a vendor or open in a spreadsheet.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"tapline-hq/cellar/pkg/ordering"
)

// CSVExporter writes a run's recommendations as a CSV order sheet.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool

	// OnlyOrdered drops rows with a zero quantity, producing a sheet that
	// contains only lines to actually order.
	OnlyOrdered bool

	// GroupByVendor sorts rows by vendor before item ID so each vendor's
	// lines are contiguous.
	GroupByVendor bool
}

// NewCSVExporter creates a CSV exporter with the common order-sheet
// settings: header row, ordered lines only, grouped by vendor.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{
		IncludeHeader: true,
		OnlyOrdered:   true,
		GroupByVendor: true,
	}
}

// Export writes the run's recommendations to w in CSV format.
func (e *CSVExporter) Export(run *ordering.RecommendationRun, w io.Writer) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(headerRow()); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
	}

	rows := make([]ordering.Recommendation, 0, len(run.Recommendations))
	for _, rec := range run.Recommendations {
		if e.OnlyOrdered && rec.Quantity == 0 {
			continue
		}
		rows = append(rows, rec)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if e.GroupByVendor && rows[i].Vendor != rows[j].Vendor {
			return rows[i].Vendor < rows[j].Vendor
		}
		return rows[i].ItemID < rows[j].ItemID
	})

	for _, rec := range rows {
		if err := writer.Write(recordToRow(rec)); err != nil {
			return fmt.Errorf("failed to write csv row for %q: %w", rec.ItemID, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func headerRow() []string {
	return []string{
		"item_id", "name", "category", "vendor",
		"quantity", "unit_cost", "total_cost",
		"on_hand", "weeks_on_hand",
		"reason", "confidence", "adjustments", "warnings",
	}
}

func recordToRow(rec ordering.Recommendation) []string {
	return []string{
		rec.ItemID,
		rec.Name,
		rec.Category,
		rec.Vendor,
		strconv.Itoa(rec.Quantity),
		formatCost(rec.UnitCost),
		formatCost(rec.TotalCost),
		strconv.FormatFloat(rec.OnHand, 'f', -1, 64),
		strconv.FormatFloat(rec.WeeksOnHand, 'f', 2, 64),
		string(rec.Reason),
		string(rec.Confidence),
		strings.Join(rec.Adjustments, "; "),
		strings.Join(rec.Warnings, "; "),
	}
}

func formatCost(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
