package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"golang.org/x/time/rate"

	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/eventbus"
	"github.com/watchpost/watchpost/internal/incident"
	"github.com/watchpost/watchpost/internal/scheduler"
)

// Deps bundles everything the router needs to wire handlers and
// middleware — one place to see the full dependency graph of the HTTP
// surface.
type Deps struct {
	Store       *db.Store
	Scheduler   *scheduler.Scheduler
	IncidentMgr *incident.Manager
	Bus         *eventbus.Bus
	Config      config.Config
	Log         zerolog.Logger
}

// NewRouter assembles the full REST + SSE surface: public reads,
// per-resource key-gated writes, the remote probe ingest path, and the
// agent-facing discovery documents.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	monitors := NewMonitorHandler(d.Store, d.Scheduler, d.Config, d.Log)
	incidents := NewIncidentHandler(d.Store, d.IncidentMgr, d.Log)
	locations := NewLocationHandler(d.Store, d.IncidentMgr, d.Config, d.Log)
	statusPages := NewStatusPageHandler(d.Store)
	stream := NewStreamHandler(d.Bus, d.Log)
	meta := NewMetaHandler(d.Store, d.Log)

	createLimiter := NewIPRateLimiter(rate.Limit(float64(d.Config.MonitorRateLimitPerHour)/3600.0), d.Config.MonitorRateLimitPerHour)

	r.Get("/healthz", Healthz)
	r.Get("/readyz", Readyz(d.Store))

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", Healthz)
		api.Get("/llms.txt", meta.LLMsTxt)
		api.Get("/openapi.json", meta.OpenAPI)
		api.Get("/swagger/*", httpSwagger.WrapHandler)

		api.Get("/status", meta.Status)
		api.Get("/dashboard", meta.Dashboard)
		api.Get("/settings", meta.GetSettings)
		api.With(adminKeyMW(d.Store)).Patch("/settings", meta.UpdateSettings)

		api.Get("/events", stream.Global)

		api.Route("/monitors", func(mr chi.Router) {
			mr.With(RateLimitMiddleware(createLimiter)).Post("/", monitors.Create)
			mr.With(RateLimitMiddleware(createLimiter)).Post("/bulk", monitors.Bulk)
			mr.Get("/", monitors.List)

			mr.Route("/{id}", func(one chi.Router) {
				one.Get("/", monitors.Get)
				one.With(manageKeyMW(d.Store, monitorIDParam)).Patch("/", monitors.Patch)
				one.With(manageKeyMW(d.Store, monitorIDParam)).Delete("/", monitors.Delete)
				one.With(manageKeyMW(d.Store, monitorIDParam)).Post("/pause", monitors.Pause)
				one.With(manageKeyMW(d.Store, monitorIDParam)).Post("/resume", monitors.Resume)

				one.Get("/heartbeats", monitors.Heartbeats)
				one.Get("/incidents", monitors.Incidents)
				one.Get("/uptime", monitors.Uptime)
				one.Get("/uptime-history", monitors.UptimeHistory)
				one.Get("/sla", monitors.SLA)
				one.Get("/events", stream.ForMonitor)

				one.Get("/badge/status", monitors.StatusBadge)
				one.Get("/badge/uptime", monitors.UptimeBadge)

				one.With(manageKeyMW(d.Store, monitorIDParam)).Post("/dependencies", monitors.AddDependency)
				one.Get("/dependencies", monitors.ListDependencies)
				one.With(manageKeyMW(d.Store, monitorIDParam)).Delete("/dependencies/{dependsOnId}", monitors.RemoveDependency)

				one.With(manageKeyMW(d.Store, monitorIDParam)).Get("/alert-rule", monitors.GetAlertRule)
				one.With(manageKeyMW(d.Store, monitorIDParam)).Put("/alert-rule", monitors.PutAlertRule)
				one.With(manageKeyMW(d.Store, monitorIDParam)).Delete("/alert-rule", monitors.DeleteAlertRule)
				one.With(manageKeyMW(d.Store, monitorIDParam)).Get("/webhook-deliveries", monitors.WebhookDeliveries)

				one.With(manageKeyMW(d.Store, monitorIDParam)).Post("/maintenance", monitors.CreateMaintenanceWindow)
				one.Get("/maintenance", monitors.ListMaintenanceWindows)
				one.With(manageKeyMW(d.Store, monitorIDParam)).Delete("/maintenance/{windowId}", monitors.DeleteMaintenanceWindow)

				one.With(manageKeyMW(d.Store, monitorIDParam)).Post("/notifications", monitors.CreateNotificationChannel)
				one.Get("/notifications", monitors.ListNotificationChannels)
			})
		})

		api.With(manageKeyForMW(d.Store, monitorIDForNotificationChannel)).Patch("/notifications/{channelId}", monitors.UpdateNotificationChannel)
		api.With(manageKeyForMW(d.Store, monitorIDForNotificationChannel)).Delete("/notifications/{channelId}", monitors.DeleteNotificationChannel)

		api.Route("/incidents", func(ir chi.Router) {
			ir.Get("/{id}", incidents.Get)
			ir.Get("/{id}/notes", incidents.ListNotes)
			ir.Get("/{id}/alert-log", incidents.AlertLog)
			ir.With(manageKeyForMW(d.Store, monitorIDForIncident)).Post("/{id}/acknowledge", incidents.Acknowledge)
			ir.With(manageKeyForMW(d.Store, monitorIDForIncident)).Post("/{id}/notes", incidents.AddNote)
		})

		api.Route("/locations", func(lr chi.Router) {
			lr.With(adminKeyMW(d.Store)).Post("/", locations.Create)
			lr.Get("/", locations.List)
			lr.With(adminKeyMW(d.Store)).Delete("/{id}", locations.Delete)
		})
		api.Post("/probe", requireProbeKey(d.Store, locations.Ingest))

		api.Route("/status-pages", func(sr chi.Router) {
			sr.Post("/", statusPages.Create)
			sr.Get("/", statusPages.List)
			sr.Get("/{id}", statusPages.Get)
			sr.With(statusPageManageKeyMW(d.Store)).Patch("/{id}", statusPages.Update)
			sr.With(statusPageManageKeyMW(d.Store)).Delete("/{id}", statusPages.Delete)
			sr.With(statusPageManageKeyMW(d.Store)).Post("/{id}/monitors", statusPages.AttachMonitor)
			sr.With(statusPageManageKeyMW(d.Store)).Delete("/{id}/monitors/{monitorId}", statusPages.DetachMonitor)
		})
	})

	return r
}

func monitorIDParam(r *http.Request) string { return chi.URLParam(r, "id") }

func manageKeyMW(store *db.Store, idParam func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return requireMonitorManageKey(store, idParam, next.ServeHTTP)
	}
}

func manageKeyForMW(store *db.Store, resolve func(*db.Store, *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return requireManageKeyFor(store, resolve, next.ServeHTTP)
	}
}

func statusPageManageKeyMW(store *db.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return requireStatusPageManageKey(store, func(r *http.Request) string { return chi.URLParam(r, "id") }, next.ServeHTTP)
	}
}

func adminKeyMW(store *db.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return requireAdminKey(store, next.ServeHTTP)
	}
}

// loggingMiddleware logs each request at Info level with method, path,
// status, and latency via a zerolog-based access log.
func loggingMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
