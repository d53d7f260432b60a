package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchpost/watchpost/internal/db"
)

// Badge SVG is a small, self-contained text template; no third-party
// surface is worth reaching for here.
const badgeTemplate = `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="20" role="img" aria-label="%s: %s">
<linearGradient id="s" x2="0" y2="100%%">
<stop offset="0" stop-color="#bbb" stop-opacity=".1"/>
<stop offset="1" stop-opacity=".1"/>
</linearGradient>
<clipPath id="r"><rect width="%d" height="20" rx="3" fill="#fff"/></clipPath>
<g clip-path="url(#r)">
<rect width="%d" height="20" fill="#555"/>
<rect x="%d" width="%d" height="20" fill="%s"/>
<rect width="%d" height="20" fill="url(#s)"/>
</g>
<g fill="#fff" text-anchor="middle" font-family="Verdana,Geneva,sans-serif" font-size="11">
<text x="%d" y="14">%s</text>
<text x="%d" y="14">%s</text>
</g>
</svg>`

func statusBadgeColor(status string) string {
	switch status {
	case db.StatusUp:
		return "#4c1"
	case db.StatusDegraded:
		return "#fe7d37"
	case db.StatusDown:
		return "#e05d44"
	default:
		return "#9f9f9f"
	}
}

func writeBadge(w http.ResponseWriter, label, value, color string) {
	labelWidth := 6*len(label) + 20
	valueWidth := 6*len(value) + 20
	total := labelWidth + valueWidth

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache, max-age=60")
	fmt.Fprintf(w, badgeTemplate,
		total, label, value,
		total, total, labelWidth, valueWidth, color, total,
		labelWidth/2, label, labelWidth+valueWidth/2, value,
	)
}

// StatusBadge handles GET /api/v1/monitors/:id/badge/status.
func (h *MonitorHandler) StatusBadge(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetMonitor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "monitor")
			return
		}
		writeInternal(w)
		return
	}
	status, err := h.currentStatus(r, *m)
	if err != nil {
		writeInternal(w)
		return
	}
	writeBadge(w, "status", status, statusBadgeColor(status))
}

// UptimeBadge handles GET /api/v1/monitors/:id/badge/uptime.
func (h *MonitorHandler) UptimeBadge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	since := time.Now().UTC().AddDate(0, 0, -30)
	hbs, err := h.store.LastHeartbeatsSince(r.Context(), id, since)
	if err != nil {
		writeInternal(w)
		return
	}
	if len(hbs) == 0 {
		writeBadge(w, "uptime", "unknown", "#9f9f9f")
		return
	}
	successful := 0
	for _, hb := range hbs {
		if hb.Status == db.StatusUp || hb.Status == db.StatusDegraded || hb.Status == db.StatusMaintenance {
			successful++
		}
	}
	pct := 100 * float64(successful) / float64(len(hbs))
	color := "#4c1"
	switch {
	case pct < 90:
		color = "#e05d44"
	case pct < 99:
		color = "#fe7d37"
	}
	writeBadge(w, "uptime", fmt.Sprintf("%.2f%%", pct), color)
}
