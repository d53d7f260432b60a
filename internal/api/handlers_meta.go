package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/api/docs"
	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/sla"
)

// MetaHandler covers the small cross-cutting surface: settings, the
// system-wide aggregates, and the agent/machine discovery documents.
type MetaHandler struct {
	store *db.Store
	log   zerolog.Logger
}

func NewMetaHandler(store *db.Store, log zerolog.Logger) *MetaHandler {
	return &MetaHandler{store: store, log: log}
}

func (h *MetaHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	set, err := h.store.GetSettings(r.Context())
	if err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(set))
}

type settingsRequest struct {
	BrandName    string `json:"brand_name"`
	BrandLogoURL string `json:"brand_logo_url"`
}

// UpdateSettings handles PATCH /api/v1/settings, admin_key-gated.
func (h *MetaHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	existing, err := h.store.GetSettings(r.Context())
	if err != nil {
		writeInternal(w)
		return
	}
	req := settingsRequest{BrandName: existing.BrandName, BrandLogoURL: existing.BrandLogoURL}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "malformed JSON body")
		return
	}
	set := db.Settings{BrandName: req.BrandName, BrandLogoURL: req.BrandLogoURL}
	if err := h.store.UpdateSettings(r.Context(), set); err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(set))
}

// Status handles GET /api/v1/status: a terse system-wide rollup an agent
// can poll without walking the full monitor list.
func (h *MetaHandler) Status(w http.ResponseWriter, r *http.Request) {
	monitors, err := h.store.ListMonitors(r.Context(), db.ListMonitorsFilter{PublicOnly: true})
	if err != nil {
		writeInternal(w)
		return
	}

	counts := map[string]int{db.StatusUp: 0, db.StatusDown: 0, db.StatusDegraded: 0, "unknown": 0}
	openIncidents := 0
	for _, m := range monitors {
		status, err := h.currentStatus(r, m)
		if err != nil {
			writeInternal(w)
			return
		}
		counts[status]++

		incidents, err := h.store.ListIncidents(r.Context(), m.ID, true, 1)
		if err != nil {
			writeInternal(w)
			return
		}
		if len(incidents) > 0 {
			openIncidents++
		}
	}

	overall := db.StatusUp
	if counts[db.StatusDown] > 0 {
		overall = db.StatusDown
	} else if counts[db.StatusDegraded] > 0 {
		overall = db.StatusDegraded
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"overall_status": overall,
		"monitor_counts": counts,
		"open_incidents": openIncidents,
		"generated_at":   time.Now().UTC(),
	})
}

// Dashboard handles GET /api/v1/dashboard: the fuller aggregate behind an
// operator (or agent) landing view — every public monitor with its live
// status, SLA snapshot, and open incident, plus check-location health.
func (h *MetaHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	monitors, err := h.store.ListMonitors(r.Context(), db.ListMonitorsFilter{PublicOnly: true})
	if err != nil {
		writeInternal(w)
		return
	}

	now := time.Now().UTC()
	type monitorSummary struct {
		Monitor      monitorDTO   `json:"monitor"`
		Status       string       `json:"status"`
		OpenIncident *incidentDTO `json:"open_incident,omitempty"`
		SLAStatus    string       `json:"sla_status,omitempty"`
	}

	summaries := make([]monitorSummary, 0, len(monitors))
	for _, m := range monitors {
		status, err := h.currentStatus(r, m)
		if err != nil {
			writeInternal(w)
			return
		}
		summary := monitorSummary{Monitor: toMonitorDTO(m), Status: status}

		incidents, err := h.store.ListIncidents(r.Context(), m.ID, true, 1)
		if err != nil {
			writeInternal(w)
			return
		}
		if len(incidents) > 0 {
			dto := toIncidentDTO(incidents[0])
			summary.OpenIncident = &dto
		}

		if report, ok, err := sla.Compute(r.Context(), h.store, m, now); err == nil && ok {
			summary.SLAStatus = report.Status
		}

		summaries = append(summaries, summary)
	}

	locations, err := h.store.ListCheckLocations(r.Context())
	if err != nil {
		writeInternal(w)
		return
	}
	maxInterval := 10 * time.Minute
	for _, m := range monitors {
		if d := time.Duration(m.IntervalSeconds) * time.Second; d > maxInterval {
			maxInterval = d
		}
	}
	locationDTOs := make([]locationDTO, 0, len(locations))
	for _, l := range locations {
		locationDTOs = append(locationDTOs, toLocationDTO(l, maxInterval, now))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"monitors":  summaries,
		"locations": locationDTOs,
	})
}

// currentStatus derives a monitor's live status from its most recent
// heartbeat, matching MonitorHandler.currentStatus — duplicated rather
// than shared because the two handlers are otherwise independent and the
// logic is a one-liner lookup.
func (h *MetaHandler) currentStatus(r *http.Request, m db.Monitor) (string, error) {
	hbs, err := h.store.LastHeartbeats(r.Context(), m.ID, 1)
	if err != nil {
		return "", err
	}
	if len(hbs) == 0 {
		return "unknown", nil
	}
	return hbs[0].Status, nil
}

// LLMsTxt handles GET /api/v1/llms.txt: a plain-text discovery document
// aimed at LLM agents consuming this API directly.
func (h *MetaHandler) LLMsTxt(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(llmsTxtBody))
}

const llmsTxtBody = `# Watchpost

Watchpost is an uptime monitoring service designed to be driven directly
by software agents as well as humans.

## API

- Base path: /api/v1
- OpenAPI document: /api/v1/openapi.json
- Authentication: per-resource keys. Present a credential as
  "Authorization: Bearer <key>", "X-API-Key: <key>", or "?key=<key>".
- POST /api/v1/monitors creates a monitor and returns a one-shot
  manage_key; keep it, it is never shown again.
- GET /api/v1/monitors/:id/heartbeats is cursor-paginated via
  ?after=<seq>&limit=<n>. GET /api/v1/monitors/:id/incidents returns the
  newest incidents first, up to ?limit=<n>; it does not accept a cursor.
- GET /api/v1/(events|monitors/:id/events) are Server-Sent Events streams.
- GET /api/v1/status and /api/v1/dashboard give aggregate views suited to
  a single polling call.
`

// OpenAPI handles GET /api/v1/openapi.json.
func (h *MetaHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := docs.SwaggerInfo.ReadDoc()
	if err != nil {
		writeInternal(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}
