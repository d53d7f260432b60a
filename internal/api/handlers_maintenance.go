package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/ids"
)

type maintenanceWindowRequest struct {
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// CreateMaintenanceWindow handles POST /api/v1/monitors/:id/maintenance,
// manage_key-gated. Open windows suppress incident creation for the
// monitor.
func (h *MonitorHandler) CreateMaintenanceWindow(w http.ResponseWriter, r *http.Request) {
	monitorID := chi.URLParam(r, "id")
	var req maintenanceWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "malformed JSON body")
		return
	}
	if req.StartsAt.IsZero() || req.EndsAt.IsZero() {
		writeValidation(w, "starts_at and ends_at are required")
		return
	}
	if !req.EndsAt.After(req.StartsAt) {
		writeValidation(w, "ends_at must be after starts_at")
		return
	}

	window := db.MaintenanceWindow{
		ID:        ids.New(),
		MonitorID: monitorID,
		Title:     req.Title,
		StartsAt:  req.StartsAt.UTC(),
		EndsAt:    req.EndsAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateMaintenanceWindow(r.Context(), window); err != nil {
		writeInternal(w)
		return
	}
	h.sched.Notify()
	writeJSON(w, http.StatusCreated, window)
}

// ListMaintenanceWindows handles GET /api/v1/monitors/:id/maintenance
// (public read).
func (h *MonitorHandler) ListMaintenanceWindows(w http.ResponseWriter, r *http.Request) {
	windows, err := h.store.ListMaintenanceWindows(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeInternal(w)
		return
	}
	if windows == nil {
		windows = []db.MaintenanceWindow{}
	}
	writeJSON(w, http.StatusOK, windows)
}

// DeleteMaintenanceWindow handles DELETE
// /api/v1/monitors/:id/maintenance/:windowId, manage_key-gated.
func (h *MonitorHandler) DeleteMaintenanceWindow(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteMaintenanceWindow(r.Context(), chi.URLParam(r, "windowId")); err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "maintenance window")
			return
		}
		writeInternal(w)
		return
	}
	h.sched.Notify()
	w.WriteHeader(http.StatusNoContent)
}
