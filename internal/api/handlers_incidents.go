package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/ids"
	"github.com/watchpost/watchpost/internal/incident"
)

// IncidentHandler covers the incident acknowledge/notes surface, gated
// by the owning monitor's manage_key.
type IncidentHandler struct {
	store    *db.Store
	incident *incident.Manager
	log      zerolog.Logger
}

func NewIncidentHandler(store *db.Store, incidentMgr *incident.Manager, log zerolog.Logger) *IncidentHandler {
	return &IncidentHandler{store: store, incident: incidentMgr, log: log}
}

func (h *IncidentHandler) Get(w http.ResponseWriter, r *http.Request) {
	inc, err := h.store.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "incident")
			return
		}
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, toIncidentDTO(*inc))
}

type ackRequest struct {
	Actor string `json:"actor"`
}

// Acknowledge handles POST /api/v1/incidents/:id/acknowledge, gated by the
// owning monitor's manage_key (resolved by monitorIDForIncident in the
// router).
func (h *IncidentHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ackRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	acked, err := h.incident.Acknowledge(r.Context(), id, req.Actor)
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "incident")
			return
		}
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"acknowledged": acked})
}

type noteRequest struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

// AddNote handles POST /api/v1/incidents/:id/notes.
func (h *IncidentHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "malformed JSON body")
		return
	}
	if req.Body == "" {
		writeValidation(w, "body is required")
		return
	}

	note := db.IncidentNote{
		ID: ids.New(), IncidentID: id, Author: req.Author, Body: req.Body, CreatedAt: time.Now().UTC(),
	}
	if err := h.store.AddIncidentNote(r.Context(), note); err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *IncidentHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.store.ListIncidentNotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeInternal(w)
		return
	}
	if notes == nil {
		notes = []db.IncidentNote{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// monitorIDForIncident resolves the owning monitor of an incident — used
// by the router to apply manage_key auth to incident write endpoints
// without duplicating the lookup inside every handler.
func monitorIDForIncident(store *db.Store, r *http.Request) (string, error) {
	inc, err := store.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return "", err
	}
	return inc.MonitorID, nil
}
