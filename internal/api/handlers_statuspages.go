package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/ids"
	"github.com/watchpost/watchpost/internal/secrets"
)

type StatusPageHandler struct {
	store *db.Store
}

func NewStatusPageHandler(store *db.Store) *StatusPageHandler {
	return &StatusPageHandler{store: store}
}

type statusPageRequest struct {
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	LogoURL      string `json:"logo_url"`
	CustomDomain string `json:"custom_domain"`
	IsPublic     *bool  `json:"is_public"`
}

// Create handles POST /api/v1/status-pages. Returns the page plus a
// one-shot manage_key.
func (h *StatusPageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req statusPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "malformed JSON body")
		return
	}
	if req.Slug == "" || req.Title == "" {
		writeValidation(w, "slug and title are required")
		return
	}

	key, err := secrets.Generate("wsp_")
	if err != nil {
		writeInternal(w)
		return
	}
	hash, err := secrets.Hash(key)
	if err != nil {
		writeInternal(w)
		return
	}

	public := true
	if req.IsPublic != nil {
		public = *req.IsPublic
	}
	now := time.Now().UTC()
	page := db.StatusPage{
		ID: ids.New(), Slug: req.Slug, Title: req.Title, Description: req.Description,
		LogoURL: req.LogoURL, CustomDomain: req.CustomDomain, IsPublic: public,
		ManageKeyHash: hash, CreatedAt: now, UpdatedAt: now,
	}
	if err := h.store.CreateStatusPage(r.Context(), page); err != nil {
		if err == db.ErrConflict {
			writeConflict(w, "slug already in use")
			return
		}
		writeInternal(w)
		return
	}
	dto := toStatusPageDTO(page)
	dto.ManageKey = key
	writeJSON(w, http.StatusCreated, dto)
}

// lookup resolves a status page by either its id or slug, whichever the
// path segment matches first.
func (h *StatusPageHandler) lookup(r *http.Request) (*db.StatusPage, error) {
	idOrSlug := chi.URLParam(r, "id")
	if p, err := h.store.GetStatusPage(r.Context(), idOrSlug); err == nil {
		return p, nil
	} else if err != db.ErrNotFound {
		return nil, err
	}
	return h.store.GetStatusPageBySlug(r.Context(), idOrSlug)
}

func (h *StatusPageHandler) Get(w http.ResponseWriter, r *http.Request) {
	page, err := h.lookup(r)
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "status page")
			return
		}
		writeInternal(w)
		return
	}
	monitors, err := h.store.StatusPageMonitors(r.Context(), page.ID)
	if err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page": toStatusPageDTO(*page), "monitors": toMonitorDTOs(monitors)})
}

func (h *StatusPageHandler) List(w http.ResponseWriter, r *http.Request) {
	pages, err := h.store.ListStatusPages(r.Context())
	if err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, toStatusPageDTOs(pages))
}

// Update handles PATCH /api/v1/status-pages/:id, manage_key-gated.
func (h *StatusPageHandler) Update(w http.ResponseWriter, r *http.Request) {
	page, err := h.lookup(r)
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "status page")
			return
		}
		writeInternal(w)
		return
	}

	req := statusPageRequest{
		Slug: page.Slug, Title: page.Title, Description: page.Description,
		LogoURL: page.LogoURL, CustomDomain: page.CustomDomain,
	}
	public := page.IsPublic
	req.IsPublic = &public
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "malformed JSON body")
		return
	}
	if req.Slug == "" || req.Title == "" {
		writeValidation(w, "slug and title are required")
		return
	}

	updated := db.StatusPage{
		ID: page.ID, Slug: req.Slug, Title: req.Title, Description: req.Description,
		LogoURL: req.LogoURL, CustomDomain: req.CustomDomain, IsPublic: *req.IsPublic,
		ManageKeyHash: page.ManageKeyHash, CreatedAt: page.CreatedAt, UpdatedAt: time.Now().UTC(),
	}
	if err := h.store.UpdateStatusPage(r.Context(), updated); err != nil {
		if err == db.ErrConflict {
			writeConflict(w, "slug already in use")
			return
		}
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, toStatusPageDTO(updated))
}

func (h *StatusPageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	page, err := h.lookup(r)
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "status page")
			return
		}
		writeInternal(w)
		return
	}
	if err := h.store.DeleteStatusPage(r.Context(), page.ID); err != nil {
		writeInternal(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusPageMonitorRequest struct {
	MonitorID string `json:"monitor_id"`
}

// AttachMonitor handles POST /api/v1/status-pages/:id/monitors.
func (h *StatusPageHandler) AttachMonitor(w http.ResponseWriter, r *http.Request) {
	page, err := h.lookup(r)
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "status page")
			return
		}
		writeInternal(w)
		return
	}
	var req statusPageMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MonitorID == "" {
		writeValidation(w, "monitor_id is required")
		return
	}
	if _, err := h.store.GetMonitor(r.Context(), req.MonitorID); err != nil {
		if err == db.ErrNotFound {
			writeValidation(w, "monitor_id does not reference an existing monitor")
			return
		}
		writeInternal(w)
		return
	}
	if err := h.store.AddStatusPageMonitor(r.Context(), page.ID, req.MonitorID); err != nil {
		writeInternal(w)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// DetachMonitor handles DELETE /api/v1/status-pages/:id/monitors/:monitorId.
func (h *StatusPageHandler) DetachMonitor(w http.ResponseWriter, r *http.Request) {
	page, err := h.lookup(r)
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "status page")
			return
		}
		writeInternal(w)
		return
	}
	if err := h.store.RemoveStatusPageMonitor(r.Context(), page.ID, chi.URLParam(r, "monitorId")); err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "attachment")
			return
		}
		writeInternal(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
