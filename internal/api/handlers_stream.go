package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/eventbus"
)

// StreamHandler serves the SSE feeds over the event bus: a
// global stream of public-monitor events and a per-monitor stream.
type StreamHandler struct {
	bus *eventbus.Bus
	log zerolog.Logger
}

func NewStreamHandler(bus *eventbus.Bus, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{bus: bus, log: log}
}

// Global handles GET /api/v1/events.
func (h *StreamHandler) Global(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, h.bus.SubscribeGlobal())
}

// ForMonitor handles GET /api/v1/monitors/:id/events.
func (h *StreamHandler) ForMonitor(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, h.bus.Subscribe(chi.URLParam(r, "id")))
}

func (h *StreamHandler) stream(w http.ResponseWriter, r *http.Request, sub *eventbus.Subscription) {
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeInternal(w)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt.Data)
			if err != nil {
				h.log.Error().Err(err).Str("event_type", evt.Type).Msg("failed to marshal SSE payload")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload)
			flusher.Flush()
		}
	}
}
