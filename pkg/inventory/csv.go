package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Snapshot CSV columns. Header names are matched case-insensitively.
const (
	colItemID   = "item_id"
	colWeekDate = "week_date"
	colOnHand   = "on_hand"
	colUsage    = "usage"
)

// ReadSnapshotCSV parses weekly usage records from r.
//
// Expected columns: item_id, week_date (2006-01-02), on_hand, usage.
// Extra columns are ignored. Negative usage values are kept as-is; they are
// flagged downstream, not rejected here.
func ReadSnapshotCSV(r io.Reader, dataset *Dataset) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("failed to read snapshot header: %w", err)
	}
	idx, err := columnIndex(header, colItemID, colWeekDate, colOnHand, colUsage)
	if err != nil {
		return err
	}

	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read snapshot row: %w", err)
		}
		line++

		week, err := time.Parse("2006-01-02", row[idx[colWeekDate]])
		if err != nil {
			return fmt.Errorf("line %d: invalid week_date %q: %w", line, row[idx[colWeekDate]], err)
		}
		onHand, err := parseFloat(row[idx[colOnHand]])
		if err != nil {
			return fmt.Errorf("line %d: invalid on_hand: %w", line, err)
		}
		usage, err := parseFloat(row[idx[colUsage]])
		if err != nil {
			return fmt.Errorf("line %d: invalid usage: %w", line, err)
		}

		dataset.AddRecord(UsageRecord{
			ItemID:   row[idx[colItemID]],
			WeekDate: week,
			OnHand:   onHand,
			Usage:    usage,
		})
	}
	return nil
}

// ReadCatalogCSV parses the item catalog from r.
//
// Expected columns: item_id, name, category, vendor, unit_cost, case_size.
// name, category, vendor, and case_size may be empty.
func ReadCatalogCSV(r io.Reader, dataset *Dataset) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("failed to read catalog header: %w", err)
	}
	idx, err := columnIndex(header, colItemID, "name", "category", "vendor", "unit_cost", "case_size")
	if err != nil {
		// Only item_id and unit_cost are strictly required.
		idx, err = columnIndex(header, colItemID, "unit_cost")
		if err != nil {
			return err
		}
	}

	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read catalog row: %w", err)
		}
		line++

		item := Item{ID: row[idx[colItemID]]}
		if i, ok := idx["name"]; ok {
			item.Name = row[i]
		}
		if item.Name == "" {
			item.Name = item.ID
		}
		if i, ok := idx["category"]; ok {
			item.Category = row[i]
		}
		if i, ok := idx["vendor"]; ok {
			item.Vendor = row[i]
		}
		if i, ok := idx["unit_cost"]; ok && row[i] != "" {
			cost, err := parseFloat(row[i])
			if err != nil {
				return fmt.Errorf("line %d: invalid unit_cost: %w", line, err)
			}
			item.UnitCost = cost
		}
		if i, ok := idx["case_size"]; ok && row[i] != "" {
			size, err := strconv.Atoi(strings.TrimSpace(row[i]))
			if err != nil {
				return fmt.Errorf("line %d: invalid case_size: %w", line, err)
			}
			item.CaseSize = size
		}

		dataset.AddItem(item)
	}
	return nil
}

// LoadDataset reads a catalog file and a snapshot file into a new Dataset.
// The dataset ID is derived from the snapshot file name.
func LoadDataset(catalogPath, snapshotPath string) (*Dataset, error) {
	id := strings.TrimSuffix(baseName(snapshotPath), ".csv")
	dataset := NewDataset(id)

	if catalogPath != "" {
		f, err := os.Open(catalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open catalog %q: %w", catalogPath, err)
		}
		err = ReadCatalogCSV(f, dataset)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse catalog %q: %w", catalogPath, err)
		}
	}

	f, err := os.Open(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %q: %w", snapshotPath, err)
	}
	defer f.Close()
	if err := ReadSnapshotCSV(f, dataset); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %q: %w", snapshotPath, err)
	}
	return dataset, nil
}

func columnIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return idx, nil
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
