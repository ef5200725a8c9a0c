package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tapline-hq/cellar/pkg/ordering"
	"tapline-hq/cellar/pkg/ordering/policy"
	"tapline-hq/cellar/pkg/prefs"
	"tapline-hq/cellar/pkg/storage"
)

func newTestMux(t *testing.T) (*http.ServeMux, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	itemPrefs, err := prefs.OpenStore(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { itemPrefs.Close() })

	handler := NewHandler(ordering.NewEngine(), store, nil, itemPrefs)
	mux := http.NewServeMux()
	handler.Register(mux)
	return mux, store
}

func runPayload() string {
	return `{
		"dataset_id": "week-35",
		"items": [
			{"id": "ipa", "name": "House IPA", "category": "draft", "vendor": "Crescent", "unit_cost": 115}
		],
		"records": [
			{"item_id": "ipa", "week_date": "2026-06-01", "on_hand": 18, "usage": 4},
			{"item_id": "ipa", "week_date": "2026-06-08", "on_hand": 14, "usage": 4},
			{"item_id": "ipa", "week_date": "2026-06-15", "on_hand": 10, "usage": 4},
			{"item_id": "ipa", "week_date": "2026-06-22", "on_hand": 6, "usage": 4},
			{"item_id": "ipa", "week_date": "2026-06-29", "on_hand": 2, "usage": 4}
		],
		"targets": {"default_weeks": 4}
	}`
}

func decodeError(t *testing.T, body *bytes.Buffer) apiError {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(body.Bytes(), &resp); err != nil {
		t.Fatalf("error body not JSON: %v (%s)", err, body.String())
	}
	return resp.Error
}

// ============================================================================
// Run Creation Tests
// ============================================================================

func TestHandleCreateRun(t *testing.T) {
	mux, store := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(runPayload()))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var run ordering.RecommendationRun
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatalf("body not a run: %v", err)
	}
	if !strings.HasPrefix(run.RunID, "run_") {
		t.Errorf("RunID = %q", run.RunID)
	}
	if len(run.Recommendations) != 1 {
		t.Fatalf("len(Recommendations) = %d, want 1", len(run.Recommendations))
	}
	rec := run.Recommendations[0]
	if rec.Reason != policy.ReasonStockoutRisk || rec.Quantity != 14 {
		t.Errorf("rec = %q qty %d, want STOCKOUT_RISK qty 14", rec.Reason, rec.Quantity)
	}

	// The run is persisted under its returned ID.
	if _, err := store.GetRun(context.Background(), run.RunID); err != nil {
		t.Errorf("run not persisted: %v", err)
	}
}

func TestHandleCreateRun_InvalidBody(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if e := decodeError(t, w.Body); e.Code != "invalid_request" {
		t.Errorf("error code = %q", e.Code)
	}
}

func TestHandleCreateRun_EmptyDataset(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(`{"dataset_id": "empty"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if e := decodeError(t, w.Body); e.Code != "empty_dataset" {
		t.Errorf("error code = %q, want empty_dataset", e.Code)
	}
}

func TestHandleCreateRun_BadWeekDate(t *testing.T) {
	mux, _ := newTestMux(t)

	body := `{"records": [{"item_id": "ipa", "week_date": "June 1", "on_hand": 1, "usage": 1}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ============================================================================
// Run Retrieval Tests
// ============================================================================

func savedRun(t *testing.T, store *storage.MemoryStore) *ordering.RecommendationRun {
	t.Helper()
	run := &ordering.RecommendationRun{
		RunID:     "run_test01",
		DatasetID: "week-35",
		CreatedAt: time.Now().UTC(),
		Recommendations: []ordering.Recommendation{
			{ItemID: "ipa", Name: "House IPA", Vendor: "Crescent", Quantity: 14, UnitCost: 115, TotalCost: 1610,
				Reason: policy.ReasonStockoutRisk, Confidence: policy.ConfidenceHigh},
			{ItemID: "gin", Name: "Well Gin", Vendor: "Archway", Quantity: 0,
				Reason: policy.ReasonNoOrder, Confidence: policy.ConfidenceHigh},
		},
		Summary: ordering.RunSummary{TotalItems: 1, TotalSpend: 1610},
	}
	if err := store.SaveRun(context.Background(), run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	return run
}

func TestHandleGetRun(t *testing.T) {
	mux, store := newTestMux(t)
	savedRun(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run_test01", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var run ordering.RecommendationRun
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatalf("body not a run: %v", err)
	}
	if run.RunID != "run_test01" || len(run.Recommendations) != 2 {
		t.Errorf("run = %q with %d recs", run.RunID, len(run.Recommendations))
	}
}

func TestHandleGetRun_NotFound(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run_missing", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if e := decodeError(t, w.Body); e.Code != "run_not_found" {
		t.Errorf("error code = %q", e.Code)
	}
}

func TestHandleListRuns(t *testing.T) {
	mux, store := newTestMux(t)
	savedRun(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?limit=10", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Runs []storage.RunHeader `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body not a listing: %v", err)
	}
	if len(resp.Runs) != 1 || resp.Runs[0].RunID != "run_test01" {
		t.Errorf("runs = %v", resp.Runs)
	}
}

func TestHandleListRuns_BadLimit(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?limit=many", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ============================================================================
// Export Tests
// ============================================================================

func TestHandleExportRun_CSV(t *testing.T) {
	mux, store := newTestMux(t)
	savedRun(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run_test01/export", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "run_test01.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body := w.Body.String()
	if !strings.Contains(body, "ipa") {
		t.Errorf("csv missing ordered line: %s", body)
	}
	if strings.Contains(body, "gin") {
		t.Errorf("csv should omit zero-quantity lines by default: %s", body)
	}
}

func TestHandleExportRun_CSVAll(t *testing.T) {
	mux, store := newTestMux(t)
	savedRun(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run_test01/export?all=true", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), "gin") {
		t.Error("all=true should include zero-quantity lines")
	}
}

func TestHandleExportRun_JSON(t *testing.T) {
	mux, store := newTestMux(t)
	savedRun(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run_test01/export?format=json", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var run ordering.RecommendationRun
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatalf("body not a run: %v", err)
	}
}

func TestHandleExportRun_BadFormat(t *testing.T) {
	mux, store := newTestMux(t)
	savedRun(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run_test01/export?format=xml", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ============================================================================
// Approval Tests
// ============================================================================

func TestHandleApprovals(t *testing.T) {
	mux, store := newTestMux(t)
	savedRun(t, store)

	body := `{"approvals": [
		{"item_id": "ipa", "approved": true, "quantity_override": 10},
		{"item_id": "gin", "approved": false, "note": "skip this week"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/runs/run_test01/approvals", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/runs/run_test01/approvals", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var resp struct {
		Approvals []storage.Approval `json:"approvals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body not approvals: %v", err)
	}
	if len(resp.Approvals) != 2 {
		t.Fatalf("len = %d, want 2", len(resp.Approvals))
	}
	for _, a := range resp.Approvals {
		if a.RunID != "run_test01" {
			t.Errorf("approval run_id = %q, want set from the path", a.RunID)
		}
	}
}

func TestHandleApprovals_UnknownRun(t *testing.T) {
	mux, _ := newTestMux(t)

	body := `{"approvals": [{"item_id": "ipa", "approved": true}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/runs/run_missing/approvals", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandleApprovals_EmptyItemID(t *testing.T) {
	mux, store := newTestMux(t)
	savedRun(t, store)

	body := `{"approvals": [{"approved": true}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/runs/run_test01/approvals", strings.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ============================================================================
// Item Preference Tests
// ============================================================================

func TestHandleItemPrefs(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPut, "/v1/items/ipa/prefs", strings.NewReader(`{"target_weeks": 6}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/items/prefs", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
	var resp struct {
		Items []prefs.ItemPref `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body not a listing: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ItemID != "ipa" {
		t.Fatalf("items = %v", resp.Items)
	}
	if resp.Items[0].TargetWeeks == nil || *resp.Items[0].TargetWeeks != 6 {
		t.Errorf("TargetWeeks = %v, want 6", resp.Items[0].TargetWeeks)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/items/ipa/prefs", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", w.Code)
	}
}

func TestHandleSetItemPref_InvalidTarget(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPut, "/v1/items/ipa/prefs", strings.NewReader(`{"target_weeks": -1}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ============================================================================
// Dependency Gating Tests
// ============================================================================

func TestHandlers_DisabledDependencies(t *testing.T) {
	handler := NewHandler(ordering.NewEngine(), nil, nil, nil)
	mux := http.NewServeMux()
	handler.Register(mux)

	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/v1/runs"},
		{http.MethodGet, "/v1/runs/run_x"},
		{http.MethodGet, "/v1/runs/run_x/approvals"},
		{http.MethodGet, "/v1/items/prefs"},
		{http.MethodPut, "/v1/items/x/prefs"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}"))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: status = %d, want 503", tt.method, tt.path, w.Code)
		}
	}
}

func TestHandleHealth(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ok") {
		t.Errorf("body = %s", w.Body.String())
	}
}
