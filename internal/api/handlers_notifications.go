package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/ids"
)

type notificationChannelRequest struct {
	Name        string         `json:"name"`
	ChannelType string         `json:"channel_type"`
	Config      map[string]any `json:"config"`
	IsEnabled   *bool          `json:"is_enabled"`
}

func validateNotificationChannelRequest(req notificationChannelRequest) error {
	if req.Name == "" {
		return errValidation("name is required")
	}
	switch req.ChannelType {
	case db.ChannelTypeWebhook:
		if req.Config["url"] == nil || req.Config["url"] == "" {
			return errValidation("webhook channels require config.url")
		}
	case db.ChannelTypeEmail:
		if req.Config["address"] == nil || req.Config["address"] == "" {
			return errValidation("email channels require config.address")
		}
	default:
		return errValidation("channel_type must be one of: webhook, email")
	}
	return nil
}

// CreateNotificationChannel handles POST /api/v1/monitors/:id/notifications,
// manage_key-gated.
func (h *MonitorHandler) CreateNotificationChannel(w http.ResponseWriter, r *http.Request) {
	monitorID := chi.URLParam(r, "id")
	var req notificationChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "malformed JSON body")
		return
	}
	if err := validateNotificationChannelRequest(req); err != nil {
		writeValidation(w, err.Error())
		return
	}
	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}

	channel := db.NotificationChannel{
		ID: ids.New(), MonitorID: monitorID, Name: req.Name, ChannelType: req.ChannelType,
		Config: req.Config, IsEnabled: enabled, CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateNotificationChannel(r.Context(), channel); err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusCreated, channel)
}

// ListNotificationChannels handles GET /api/v1/monitors/:id/notifications.
func (h *MonitorHandler) ListNotificationChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.store.ListNotificationChannels(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		writeInternal(w)
		return
	}
	if channels == nil {
		channels = []db.NotificationChannel{}
	}
	writeJSON(w, http.StatusOK, channels)
}

// UpdateNotificationChannel handles PATCH
// /api/v1/notifications/:channelId, manage_key-gated (resolved via the
// channel's owning monitor).
func (h *MonitorHandler) UpdateNotificationChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "channelId")
	existing, err := h.store.GetNotificationChannel(r.Context(), id)
	if err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "notification channel")
			return
		}
		writeInternal(w)
		return
	}

	req := notificationChannelRequest{Name: existing.Name, ChannelType: existing.ChannelType, Config: existing.Config}
	enabled := existing.IsEnabled
	req.IsEnabled = &enabled
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "malformed JSON body")
		return
	}
	if err := validateNotificationChannelRequest(req); err != nil {
		writeValidation(w, err.Error())
		return
	}

	updated := db.NotificationChannel{
		ID: id, MonitorID: existing.MonitorID, Name: req.Name, ChannelType: req.ChannelType,
		Config: req.Config, IsEnabled: *req.IsEnabled,
	}
	if err := h.store.UpdateNotificationChannel(r.Context(), updated); err != nil {
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteNotificationChannel handles DELETE /api/v1/notifications/:channelId.
func (h *MonitorHandler) DeleteNotificationChannel(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteNotificationChannel(r.Context(), chi.URLParam(r, "channelId")); err != nil {
		if err == db.ErrNotFound {
			writeNotFound(w, "notification channel")
			return
		}
		writeInternal(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// monitorIDForNotificationChannel resolves the owning monitor of a
// notification channel — used by the router to apply manage_key auth to
// /notifications/:channelId routes.
func monitorIDForNotificationChannel(store *db.Store, r *http.Request) (string, error) {
	c, err := store.GetNotificationChannel(r.Context(), chi.URLParam(r, "channelId"))
	if err != nil {
		return "", err
	}
	return c.MonitorID, nil
}
