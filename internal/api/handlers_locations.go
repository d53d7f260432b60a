package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/ids"
	"github.com/watchpost/watchpost/internal/incident"
	"github.com/watchpost/watchpost/internal/probe"
	"github.com/watchpost/watchpost/internal/secrets"
	"github.com/watchpost/watchpost/internal/statuseval"
)

// LocationHandler covers check-location CRUD (admin_key-gated) and the
// remote probe ingest endpoint (probe_key-gated).
type LocationHandler struct {
	store    *db.Store
	incident *incident.Manager
	cfg      config.Config
	log      zerolog.Logger
}

func NewLocationHandler(store *db.Store, incidentMgr *incident.Manager, cfg config.Config, log zerolog.Logger) *LocationHandler {
	return &LocationHandler{store: store, incident: incidentMgr, cfg: cfg, log: log}
}

type locationRequest struct {
	Name   string `json:"name"`
	Region string `json:"region"`
}

// Create handles POST /api/v1/locations, admin_key-gated. Returns the
// location plus a one-shot probe_key.
func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeValidation(w, "name is required")
		return
	}

	key, err := secrets.Generate("wp_")
	if err != nil {
		writeInternal(w)
		return
	}
	hash, err := secrets.Hash(key)
	if err != nil {
		writeInternal(w)
		return
	}

	loc := db.CheckLocation{
		ID: ids.New(), Name: req.Name, Region: req.Region, ProbeKeyHash: hash,
		IsDisabled: false, CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateCheckLocation(r.Context(), loc); err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"location": toLocationDTO(loc, 0, time.Now().UTC()), "probe_key": key})
}

func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	locs, err := h.store.ListCheckLocations(r.Context())
	if err != nil {
		writeInternal(w)
		return
	}
	maxInterval, err := h.maxMonitorInterval(r)
	if err != nil {
		writeInternal(w)
		return
	}
	now := time.Now().UTC()
	out := make([]locationDTO, 0, len(locs))
	for _, l := range locs {
		out = append(out, toLocationDTO(l, maxInterval, now))
	}
	writeJSON(w, http.StatusOK, out)
}

// maxMonitorInterval returns the longest configured interval_seconds
// across all monitors, the reference duration used to bucket a check
// location's liveness.
func (h *LocationHandler) maxMonitorInterval(r *http.Request) (time.Duration, error) {
	monitors, err := h.store.ListMonitors(r.Context(), db.ListMonitorsFilter{IncludePaused: true})
	if err != nil {
		return 0, err
	}
	maxSeconds := 600
	for _, m := range monitors {
		if m.IntervalSeconds > maxSeconds {
			maxSeconds = m.IntervalSeconds
		}
	}
	return time.Duration(maxSeconds) * time.Second, nil
}

func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteCheckLocation(r.Context(), chi.URLParam(r, "id")); err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "location")
			return
		}
		writeInternal(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// probeResult mirrors the wire shape of one submitted ProbeOutcome.
type probeResult struct {
	MonitorID      string `json:"monitor_id"`
	CheckedAt      string `json:"checked_at"`
	Error          string `json:"error"`
	StatusCode     int    `json:"status_code"`
	ResponseTimeMS int64  `json:"response_time_ms"`
	Body           string `json:"body"`
	DNSAnswer      string `json:"dns_answer"`
}

type probeIngestRequest struct {
	Results []probeResult `json:"results"`
}

type probeIngestError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Ingest handles POST /api/v1/probe, probe_key-gated, accepting up to 100
// results per call. Rejected entries (unknown monitor, clock skew beyond
// config.RemoteProbeMaxSkew, malformed) are reported but do not fail the
// batch.
func (h *LocationHandler) Ingest(w http.ResponseWriter, r *http.Request, locationID string) {
	var req probeIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "malformed JSON body")
		return
	}
	if len(req.Results) > 100 {
		writeValidation(w, "at most 100 results per call")
		return
	}

	now := time.Now().UTC()
	accepted := 0
	var errs []probeIngestError

	for i, res := range req.Results {
		if err := h.ingestOne(r, locationID, res, now); err != nil {
			h.log.Warn().Str("location_id", locationID).Str("monitor_id", sanitizeLog(res.MonitorID)).
				Err(err).Msg("rejected remote probe result")
			errs = append(errs, probeIngestError{Index: i, Error: err.Error()})
			continue
		}
		accepted++
	}

	if accepted > 0 {
		if err := h.store.TouchCheckLocation(r.Context(), locationID, now); err != nil {
			h.log.Error().Err(err).Str("location_id", locationID).Msg("failed to touch check location")
		}
	}
	if errs == nil {
		errs = []probeIngestError{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
		"rejected": len(errs),
		"errors":   errs,
	})
}

func (h *LocationHandler) ingestOne(r *http.Request, locationID string, res probeResult, now time.Time) error {
	if res.MonitorID == "" {
		return errValidation("monitor_id is required")
	}
	checkedAt, err := time.Parse(time.RFC3339, res.CheckedAt)
	if err != nil {
		return errValidation("checked_at must be RFC3339")
	}
	skew := checkedAt.Sub(now)
	if skew < 0 {
		skew = -skew
	}
	if skew > h.cfg.RemoteProbeMaxSkew {
		return errValidation("checked_at outside the allowed clock skew")
	}

	mon, err := h.store.GetMonitor(r.Context(), res.MonitorID)
	if err != nil {
		if err == db.ErrNotFound {
			return errValidation("unknown monitor_id")
		}
		return err
	}

	windows, err := h.store.ActiveMaintenanceWindows(r.Context(), checkedAt)
	if err != nil {
		return err
	}
	maintenanceActive := false
	for _, wdw := range windows {
		if wdw.MonitorID == mon.ID {
			maintenanceActive = true
			break
		}
	}

	outcome := probe.Outcome{
		Error: res.Error, ResponseTimeMS: res.ResponseTimeMS, StatusCode: res.StatusCode,
		Body: res.Body, DNSAnswer: res.DNSAnswer,
	}
	status := statuseval.Evaluate(outcome, *mon, maintenanceActive)

	locID := locationID
	hb := db.Heartbeat{
		ID: ids.New(), MonitorID: mon.ID, Status: status, ResponseTimeMS: res.ResponseTimeMS,
		CheckedAt: checkedAt, LocationID: &locID,
	}
	if res.Error != "" {
		hb.ErrorMessage = res.Error
	}
	if mon.MonitorType == db.MonitorTypeHTTP && res.StatusCode != 0 {
		sc := res.StatusCode
		hb.StatusCode = &sc
	}

	if _, err := h.store.InsertHeartbeat(r.Context(), hb); err != nil {
		return err
	}
	effective := h.effectiveHeartbeat(r, *mon, hb)
	if err := h.incident.Observe(r.Context(), *mon, effective); err != nil {
		h.log.Error().Err(err).Str("monitor_id", mon.ID).Msg("incident observe failed for remote probe")
	}
	return nil
}

// effectiveHeartbeat reduces a monitor's fresh per-location heartbeats to
// the single effective status the incident manager acts on. Monitors
// without a consensus_threshold, and any heartbeat already carrying a
// maintenance status (monitor-wide and deterministic, not per-location),
// pass through unchanged.
func (h *LocationHandler) effectiveHeartbeat(r *http.Request, mon db.Monitor, hb db.Heartbeat) db.Heartbeat {
	if mon.ConsensusThreshold == nil || hb.Status == db.StatusMaintenance {
		return hb
	}
	since := hb.CheckedAt.Add(-statuseval.FreshnessWindow(mon.IntervalSeconds))
	reports, err := h.store.LastHeartbeatPerLocation(r.Context(), mon.ID, since)
	if err != nil {
		h.log.Error().Err(err).Str("monitor_id", mon.ID).Msg("failed to load per-location heartbeats for consensus")
		return hb
	}
	hb.Status = statuseval.Consensus(statuseval.ReportsFromHeartbeats(reports), *mon.ConsensusThreshold)
	return hb
}
