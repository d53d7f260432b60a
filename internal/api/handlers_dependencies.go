package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchpost/watchpost/internal/db"
)

type dependencyRequest struct {
	DependsOnID string `json:"depends_on_id"`
}

// AddDependency handles POST /api/v1/monitors/:id/dependencies, gated by
// manage_key. Self-dependency and cycles are rejected.
func (h *MonitorHandler) AddDependency(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dependencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DependsOnID == "" {
		writeValidation(w, "depends_on_id is required")
		return
	}

	if _, err := h.store.GetMonitor(r.Context(), req.DependsOnID); err != nil {
		if err == db.ErrNotFound {
			writeValidation(w, "depends_on_id does not reference an existing monitor")
			return
		}
		writeInternal(w)
		return
	}

	if err := h.store.AddDependency(r.Context(), id, req.DependsOnID, time.Now().UTC()); err != nil {
		if err == db.ErrDependencyCycle {
			writeConflict(w, "this dependency would create a cycle")
			return
		}
		writeInternal(w)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *MonitorHandler) ListDependencies(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deps, err := h.store.DependenciesOf(r.Context(), id)
	if err != nil {
		writeInternal(w)
		return
	}
	if deps == nil {
		deps = []string{}
	}
	writeJSON(w, http.StatusOK, deps)
}

func (h *MonitorHandler) RemoveDependency(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dependsOnID := chi.URLParam(r, "dependsOnId")
	if err := h.store.RemoveDependency(r.Context(), id, dependsOnID); err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "dependency")
			return
		}
		writeInternal(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
