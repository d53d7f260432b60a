package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/ids"
	"github.com/watchpost/watchpost/internal/scheduler"
	"github.com/watchpost/watchpost/internal/secrets"
	"github.com/watchpost/watchpost/internal/sla"
)

// MonitorHandler implements the monitor CRUD, lifecycle, and read-model
// surface.
type MonitorHandler struct {
	store *db.Store
	sched *scheduler.Scheduler
	cfg   config.Config
	log   zerolog.Logger
}

func NewMonitorHandler(store *db.Store, sched *scheduler.Scheduler, cfg config.Config, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{store: store, sched: sched, cfg: cfg, log: log}
}

// Create handles POST /api/v1/monitors.
// @Summary      Create monitor
// @Tags         monitors
// @Accept       json
// @Produce      json
// @Param        body body monitorInput true "Monitor definition"
// @Success      201  {object} map[string]any
// @Failure      400  {object} apiResponse
// @Router       /monitors [post]
func (h *MonitorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in monitorInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeValidation(w, "malformed JSON body")
		return
	}
	if err := validateMonitorInput(&in); err != nil {
		writeValidation(w, err.Error())
		return
	}

	m, manageKey, err := h.createOne(r, in)
	if err != nil {
		writeInternal(w)
		return
	}

	h.sched.Notify()
	writeJSON(w, http.StatusCreated, map[string]any{
		"monitor":    toMonitorDTO(*m),
		"manage_key": manageKey,
	})
}

func (h *MonitorHandler) createOne(r *http.Request, in monitorInput) (*db.Monitor, string, error) {
	rawKey, err := secrets.Generate("wm_")
	if err != nil {
		return nil, "", err
	}
	hash, err := secrets.Hash(rawKey)
	if err != nil {
		return nil, "", err
	}

	m := toMonitor(in)
	m.ID = ids.New()
	m.ManageKeyHash = hash
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	if err := h.store.CreateMonitor(r.Context(), m); err != nil {
		return nil, "", err
	}
	return &m, rawKey, nil
}

type bulkCreatedEntry struct {
	Monitor   monitorDTO `json:"monitor"`
	ManageKey string     `json:"manage_key"`
}

type bulkErrorEntry struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Bulk handles POST /api/v1/monitors/bulk: up to 50 monitors, partial
// success.
func (h *MonitorHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var ins []monitorInput
	if err := json.NewDecoder(r.Body).Decode(&ins); err != nil {
		writeValidation(w, "malformed JSON body")
		return
	}
	if len(ins) == 0 {
		writeValidation(w, "at least one monitor is required")
		return
	}
	if len(ins) > 50 {
		writeValidation(w, "at most 50 monitors per bulk request")
		return
	}

	var created []bulkCreatedEntry
	var errs []bulkErrorEntry
	for i, in := range ins {
		if err := validateMonitorInput(&in); err != nil {
			errs = append(errs, bulkErrorEntry{Index: i, Error: err.Error()})
			continue
		}
		m, manageKey, err := h.createOne(r, in)
		if err != nil {
			errs = append(errs, bulkErrorEntry{Index: i, Error: "failed to create monitor"})
			continue
		}
		created = append(created, bulkCreatedEntry{Monitor: toMonitorDTO(*m), ManageKey: manageKey})
	}

	if len(created) > 0 {
		h.sched.Notify()
	}
	if created == nil {
		created = []bulkCreatedEntry{}
	}
	if errs == nil {
		errs = []bulkErrorEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(ins),
		"succeeded": len(created),
		"failed":    len(errs),
		"created":   created,
		"errors":    errs,
	})
}

// List handles GET /api/v1/monitors — public monitors only, with optional
// search/status/tag filters.
func (h *MonitorHandler) List(w http.ResponseWriter, r *http.Request) {
	f := db.ListMonitorsFilter{
		PublicOnly: true,
		Search:     r.URL.Query().Get("search"),
		Tag:        r.URL.Query().Get("tag"),
	}
	monitors, err := h.store.ListMonitors(r.Context(), f)
	if err != nil {
		writeInternal(w)
		return
	}

	statusFilter := r.URL.Query().Get("status")
	out := make([]monitorDTO, 0, len(monitors))
	for _, m := range monitors {
		if statusFilter != "" {
			st, err := h.currentStatus(r, m)
			if err != nil || st != statusFilter {
				continue
			}
		}
		out = append(out, toMonitorDTO(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// currentStatus derives a monitor's live status from its most recent
// heartbeat, falling back to "unknown" when none exists yet.
func (h *MonitorHandler) currentStatus(r *http.Request, m db.Monitor) (string, error) {
	last, err := h.store.LastHeartbeats(r.Context(), m.ID, 1)
	if err != nil {
		return "", err
	}
	if len(last) == 0 {
		return "unknown", nil
	}
	return last[0].Status, nil
}

func (h *MonitorHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetMonitor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "monitor")
			return
		}
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, toMonitorDTO(*m))
}

// Patch handles PATCH /api/v1/monitors/:id, gated by manage_key.
func (h *MonitorHandler) Patch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := h.store.GetMonitor(r.Context(), id)
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "monitor")
			return
		}
		writeInternal(w)
		return
	}

	in := monitorInput{
		Name: existing.Name, Target: existing.Target, MonitorType: existing.MonitorType,
		Method: existing.Method, ExpectedStatus: existing.ExpectedStatus, BodyContains: existing.BodyContains,
		Headers: existing.Headers, DNSRecordType: existing.DNSRecordType, DNSExpected: existing.DNSExpected,
		IntervalSeconds: existing.IntervalSeconds, TimeoutMS: existing.TimeoutMS,
		ConfirmationThreshold: existing.ConfirmationThreshold, ResponseTimeThresholdMS: existing.ResponseTimeThresholdMS,
		GroupName: existing.GroupName, Tags: existing.Tags,
		SLATarget: existing.SLATarget, SLAPeriodDays: existing.SLAPeriodDays, ConsensusThreshold: existing.ConsensusThreshold,
	}
	followRedirects := existing.FollowRedirects
	in.FollowRedirects = &followRedirects
	isPublic := existing.IsPublic
	in.IsPublic = &isPublic

	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeValidation(w, "malformed JSON body")
		return
	}
	if err := validateMonitorInput(&in); err != nil {
		writeValidation(w, err.Error())
		return
	}

	updated := toMonitor(in)
	updated.ID = id
	updated.ManageKeyHash = existing.ManageKeyHash
	updated.IsPaused = existing.IsPaused
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	if err := h.store.UpdateMonitor(r.Context(), updated); err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "monitor")
			return
		}
		writeInternal(w)
		return
	}

	h.sched.Notify()
	writeJSON(w, http.StatusOK, toMonitorDTO(updated))
}

func (h *MonitorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteMonitor(r.Context(), id); err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "monitor")
			return
		}
		writeInternal(w)
		return
	}
	h.sched.Notify()
	w.WriteHeader(http.StatusNoContent)
}

func (h *MonitorHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

func (h *MonitorHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *MonitorHandler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	id := chi.URLParam(r, "id")
	if err := h.store.SetMonitorPaused(r.Context(), id, paused); err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "monitor")
			return
		}
		writeInternal(w)
		return
	}
	h.sched.Notify()
	writeJSON(w, http.StatusOK, map[string]any{"is_paused": paused})
}

// cursorParams parses the ?after=<seq>&limit=<n> pagination convention.
// Heartbeats use both values; the incidents and webhook-deliveries
// listings use only the limit.
func cursorParams(r *http.Request, defaultLimit, maxLimit int) (after int64, limit int) {
	after, _ = strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return after, limit
}

func (h *MonitorHandler) Heartbeats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	after, limit := cursorParams(r, 100, 1000)
	hbs, err := h.store.ListHeartbeats(r.Context(), id, after, limit)
	if err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, toHeartbeatDTOs(hbs))
}

func (h *MonitorHandler) Incidents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, limit := cursorParams(r, 50, 500)
	openOnly := r.URL.Query().Get("open") == "true"
	incidents, err := h.store.ListIncidents(r.Context(), id, openOnly, limit)
	if err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, toIncidentDTOs(incidents))
}

// Uptime handles GET /api/v1/monitors/:id/uptime — the fraction of
// heartbeats in the requested window that were successful.
func (h *MonitorHandler) Uptime(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	days := 30
	if v, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && v > 0 {
		days = v
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	hbs, err := h.store.LastHeartbeatsSince(r.Context(), id, since)
	if err != nil {
		writeInternal(w)
		return
	}
	if len(hbs) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"window_days": days, "uptime_pct": nil, "sample_count": 0})
		return
	}
	successful := 0
	for _, hb := range hbs {
		if hb.Status == db.StatusUp || hb.Status == db.StatusDegraded || hb.Status == db.StatusMaintenance {
			successful++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window_days":  days,
		"uptime_pct":   100 * float64(successful) / float64(len(hbs)),
		"sample_count": len(hbs),
	})
}

// UptimeHistory handles GET /api/v1/monitors/:id/uptime-history — daily
// uptime percentage buckets over the requested window, newest last.
func (h *MonitorHandler) UptimeHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	days := 90
	if v, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && v > 0 && v <= 365 {
		days = v
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	hbs, err := h.store.LastHeartbeatsSince(r.Context(), id, since)
	if err != nil {
		writeInternal(w)
		return
	}

	type bucket struct {
		total, successful int
	}
	buckets := make(map[string]*bucket)
	for _, hb := range hbs {
		key := hb.CheckedAt.UTC().Format("2006-01-02")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.total++
		if hb.Status == db.StatusUp || hb.Status == db.StatusDegraded || hb.Status == db.StatusMaintenance {
			b.successful++
		}
	}

	type dayPoint struct {
		Date      string   `json:"date"`
		UptimePct *float64 `json:"uptime_pct"`
	}
	out := make([]dayPoint, 0, days)
	for d := 0; d < days; d++ {
		date := since.AddDate(0, 0, d)
		key := date.Format("2006-01-02")
		p := dayPoint{Date: key}
		if b, ok := buckets[key]; ok && b.total > 0 {
			pct := 100 * float64(b.successful) / float64(b.total)
			p.UptimePct = &pct
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, out)
}

// SLA handles GET /api/v1/monitors/:id/sla.
func (h *MonitorHandler) SLA(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetMonitor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "monitor")
			return
		}
		writeInternal(w)
		return
	}

	report, ok, err := sla.Compute(r.Context(), h.store, *m, time.Now().UTC())
	if err != nil {
		writeInternal(w)
		return
	}
	if !ok {
		writeErr(w, http.StatusNotFound, codeSLANotSet, "monitor has no sla_target configured")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
