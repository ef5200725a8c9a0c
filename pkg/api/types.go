package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tapline-hq/cellar/pkg/inventory"
	"tapline-hq/cellar/pkg/ordering"
	"tapline-hq/cellar/pkg/ordering/policy"
)

// weekDateFormat is the wire format for week dates.
const weekDateFormat = "2006-01-02"

// runRequest is the payload for POST /v1/runs. Targets and constraints are
// optional; when omitted the server's preferences apply.
type runRequest struct {
	DatasetID string          `json:"dataset_id"`
	Items     []itemPayload   `json:"items"`
	Records   []recordPayload `json:"records"`

	Targets     *policy.Targets       `json:"targets,omitempty"`
	Constraints *ordering.Constraints `json:"constraints,omitempty"`
}

type itemPayload struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Category string  `json:"category,omitempty"`
	Vendor   string  `json:"vendor,omitempty"`
	UnitCost float64 `json:"unit_cost"`
	CaseSize int     `json:"case_size,omitempty"`
}

type recordPayload struct {
	ItemID   string  `json:"item_id"`
	WeekDate string  `json:"week_date"`
	OnHand   float64 `json:"on_hand"`
	Usage    float64 `json:"usage"`
}

// toDataset converts the request payload to an inventory dataset.
func (req *runRequest) toDataset() (*inventory.Dataset, error) {
	id := req.DatasetID
	if id == "" {
		id = "api"
	}
	ds := inventory.NewDataset(id)

	for _, it := range req.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("item with empty id")
		}
		ds.AddItem(inventory.Item{
			ID:       it.ID,
			Name:     it.Name,
			Category: it.Category,
			Vendor:   it.Vendor,
			UnitCost: it.UnitCost,
			CaseSize: it.CaseSize,
		})
	}

	for i, rec := range req.Records {
		if rec.ItemID == "" {
			return nil, fmt.Errorf("record %d has empty item_id", i)
		}
		week, err := time.Parse(weekDateFormat, rec.WeekDate)
		if err != nil {
			return nil, fmt.Errorf("record %d has invalid week_date %q: %w", i, rec.WeekDate, err)
		}
		ds.AddRecord(inventory.UsageRecord{
			ItemID:   rec.ItemID,
			WeekDate: week,
			OnHand:   rec.OnHand,
			Usage:    rec.Usage,
		})
	}

	return ds, nil
}

// apiError is the JSON error detail returned to clients.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}
