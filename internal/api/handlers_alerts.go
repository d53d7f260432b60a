package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/watchpost/watchpost/internal/db"
)

type alertRuleRequest struct {
	RepeatIntervalMinutes  int `json:"repeat_interval_minutes"`
	MaxRepeats             int `json:"max_repeats"`
	EscalationAfterMinutes int `json:"escalation_after_minutes"`
}

// GetAlertRule handles GET /api/v1/monitors/:id/alert-rule.
func (h *MonitorHandler) GetAlertRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rule, err := h.store.GetAlertRule(r.Context(), id)
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "alert rule")
			return
		}
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// PutAlertRule handles PUT /api/v1/monitors/:id/alert-rule, manage_key-gated.
func (h *MonitorHandler) PutAlertRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req alertRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "malformed JSON body")
		return
	}
	if req.RepeatIntervalMinutes < 0 || (req.RepeatIntervalMinutes > 0 && req.RepeatIntervalMinutes < 5) {
		writeValidation(w, "repeat_interval_minutes must be 0 (disabled) or >= 5")
		return
	}
	if req.MaxRepeats < 0 || req.MaxRepeats > 100 {
		writeValidation(w, "max_repeats must be between 0 and 100")
		return
	}
	if req.EscalationAfterMinutes < 0 || (req.EscalationAfterMinutes > 0 && req.EscalationAfterMinutes < 5) {
		writeValidation(w, "escalation_after_minutes must be 0 (disabled) or >= 5")
		return
	}

	rule := db.AlertRule{
		MonitorID:              id,
		RepeatIntervalMinutes:  req.RepeatIntervalMinutes,
		MaxRepeats:             req.MaxRepeats,
		EscalationAfterMinutes: req.EscalationAfterMinutes,
	}
	if err := h.store.UpsertAlertRule(r.Context(), rule); err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *MonitorHandler) DeleteAlertRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteAlertRule(r.Context(), id); err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "alert rule")
			return
		}
		writeInternal(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AlertLog handles GET /api/v1/incidents/:id/alert-log.
func (h *IncidentHandler) AlertLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListAlertLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeInternal(w)
		return
	}
	if entries == nil {
		entries = []db.AlertLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// WebhookDeliveries handles GET /api/v1/monitors/:id/webhook-deliveries,
// manage_key-gated. Returns the newest deliveries first, up to ?limit=;
// ?after= is not applied, so older deliveries beyond the limit are not
// reachable through this endpoint.
func (h *MonitorHandler) WebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, limit := cursorParams(r, 50, 200)
	deliveries, err := h.store.ListWebhookDeliveries(r.Context(), id, limit)
	if err != nil {
		writeInternal(w)
		return
	}
	if deliveries == nil {
		deliveries = []db.WebhookDelivery{}
	}
	writeJSON(w, http.StatusOK, deliveries)
}
