package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tapline-hq/cellar/pkg/export"
	"tapline-hq/cellar/pkg/inventory"
	"tapline-hq/cellar/pkg/ordering"
	"tapline-hq/cellar/pkg/ordering/policy"
	"tapline-hq/cellar/pkg/prefs"
	"tapline-hq/cellar/pkg/storage"
)

// Runner executes a recommendation run. It is implemented by
// ordering.Engine.
type Runner interface {
	Run(ctx context.Context, dataset *inventory.Dataset, targets policy.Targets, constraints ordering.Constraints) (*ordering.RecommendationRun, error)
}

// Handler serves the recommendation API. The store and preference manager
// are optional; endpoints that need a missing dependency return 503.
type Handler struct {
	runner    Runner
	store     storage.Store
	prefsMgr  *prefs.Manager
	itemPrefs *prefs.Store
	logger    *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(runner Runner, store storage.Store, prefsMgr *prefs.Manager, itemPrefs *prefs.Store) *Handler {
	return &Handler{
		runner:    runner,
		store:     store,
		prefsMgr:  prefsMgr,
		itemPrefs: itemPrefs,
		logger:    slog.Default().With("component", "api"),
	}
}

// Register registers all API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/runs", h.handleCreateRun)
	mux.HandleFunc("GET /v1/runs", h.handleListRuns)
	mux.HandleFunc("GET /v1/runs/{id}", h.handleGetRun)
	mux.HandleFunc("GET /v1/runs/{id}/export", h.handleExportRun)
	mux.HandleFunc("POST /v1/runs/{id}/approvals", h.handleSaveApprovals)
	mux.HandleFunc("GET /v1/runs/{id}/approvals", h.handleGetApprovals)
	mux.HandleFunc("GET /v1/items/prefs", h.handleListItemPrefs)
	mux.HandleFunc("PUT /v1/items/{id}/prefs", h.handleSetItemPref)
	mux.HandleFunc("DELETE /v1/items/{id}/prefs", h.handleDeleteItemPref)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	dataset, err := req.toDataset()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	targets, constraints, err := h.resolvePreferences(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to resolve preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to resolve preferences")
		return
	}

	run, err := h.runner.Run(r.Context(), dataset, targets, constraints)
	if err != nil {
		if errors.Is(err, ordering.ErrEmptyDataset) {
			writeError(w, http.StatusBadRequest, "empty_dataset", "dataset contains no usage records")
			return
		}
		h.logger.Error("run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "run failed")
		return
	}

	if h.store != nil {
		if err := h.store.SaveRun(r.Context(), run); err != nil {
			// The run succeeded; persistence failure should not hide
			// the result from the caller.
			h.logger.Error("failed to persist run", "run_id", run.RunID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, run)
}

// resolvePreferences picks targets and constraints for a run: explicit
// request values win, otherwise the server preferences apply.
func (h *Handler) resolvePreferences(ctx context.Context, req *runRequest) (policy.Targets, ordering.Constraints, error) {
	var targets policy.Targets
	var constraints ordering.Constraints

	if h.prefsMgr != nil {
		var err error
		targets, err = h.prefsMgr.EffectiveTargets(ctx)
		if err != nil {
			return targets, constraints, err
		}
		constraints = h.prefsMgr.Constraints()
	}

	if req.Targets != nil {
		targets = *req.Targets
	}
	if req.Constraints != nil {
		constraints = *req.Constraints
	}
	return targets, constraints, nil
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage_disabled", "run storage is not configured")
		return
	}

	var filter storage.RunFilter
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = since
	}

	headers, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list runs")
		return
	}
	if headers == nil {
		headers = []storage.RunHeader{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": headers})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) handleExportRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "csv":
		exporter := export.NewCSVExporter()
		if r.URL.Query().Get("all") == "true" {
			exporter.OnlyOrdered = false
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", run.RunID+".csv"))
		if err := exporter.Export(run, w); err != nil {
			h.logger.Error("csv export failed", "run_id", run.RunID, "error", err)
		}
	case "json":
		w.Header().Set("Content-Type", "application/json")
		if err := export.NewJSONExporter().Export(run, w); err != nil {
			h.logger.Error("json export failed", "run_id", run.RunID, "error", err)
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "format must be csv or json")
	}
}

func (h *Handler) handleSaveApprovals(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage_disabled", "run storage is not configured")
		return
	}
	runID := r.PathValue("id")

	var req struct {
		Approvals []storage.Approval `json:"approvals"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	for i := range req.Approvals {
		req.Approvals[i].RunID = runID
		if req.Approvals[i].ItemID == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "approval with empty item_id")
			return
		}
	}

	if err := h.store.SaveApprovals(r.Context(), runID, req.Approvals); err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run_not_found", fmt.Sprintf("run %q not found", runID))
			return
		}
		h.logger.Error("failed to save approvals", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save approvals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "saved": len(req.Approvals)})
}

func (h *Handler) handleGetApprovals(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage_disabled", "run storage is not configured")
		return
	}
	runID := r.PathValue("id")

	approvals, err := h.store.GetApprovals(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to load approvals", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load approvals")
		return
	}
	if approvals == nil {
		approvals = []storage.Approval{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "approvals": approvals})
}

func (h *Handler) handleListItemPrefs(w http.ResponseWriter, r *http.Request) {
	if h.itemPrefs == nil {
		writeError(w, http.StatusServiceUnavailable, "prefs_disabled", "per-item preferences are not configured")
		return
	}

	list, err := h.itemPrefs.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list item preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list item preferences")
		return
	}
	if list == nil {
		list = []prefs.ItemPref{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (h *Handler) handleSetItemPref(w http.ResponseWriter, r *http.Request) {
	if h.itemPrefs == nil {
		writeError(w, http.StatusServiceUnavailable, "prefs_disabled", "per-item preferences are not configured")
		return
	}
	itemID := r.PathValue("id")

	var req struct {
		TargetWeeks *float64 `json:"target_weeks,omitempty"`
		NeverOrder  bool     `json:"never_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	if req.TargetWeeks != nil && *req.TargetWeeks <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "target_weeks must be positive")
		return
	}

	pref := prefs.ItemPref{
		ItemID:      itemID,
		TargetWeeks: req.TargetWeeks,
		NeverOrder:  req.NeverOrder,
	}
	if err := h.itemPrefs.Set(r.Context(), pref); err != nil {
		h.logger.Error("failed to save item preference", "item_id", itemID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save item preference")
		return
	}

	writeJSON(w, http.StatusOK, pref)
}

func (h *Handler) handleDeleteItemPref(w http.ResponseWriter, r *http.Request) {
	if h.itemPrefs == nil {
		writeError(w, http.StatusServiceUnavailable, "prefs_disabled", "per-item preferences are not configured")
		return
	}
	itemID := r.PathValue("id")

	if err := h.itemPrefs.Delete(r.Context(), itemID); err != nil {
		h.logger.Error("failed to delete item preference", "item_id", itemID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete item preference")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loadRun fetches the run named in the path, writing the error response
// itself when the lookup fails.
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*ordering.RecommendationRun, bool) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage_disabled", "run storage is not configured")
		return nil, false
	}
	runID := r.PathValue("id")

	run, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run_not_found", fmt.Sprintf("run %q not found", runID))
			return nil, false
		}
		h.logger.Error("failed to load run", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load run")
		return nil, false
	}
	return run, true
}
