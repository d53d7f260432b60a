// Command watchpost runs the Watchpost monitoring service: the prober
// scheduler, the incident state machine, the notification and timer-
// ladder workers, the heartbeat retention worker, and the HTTP API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watchpost/watchpost/internal/api"
	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/eventbus"
	"github.com/watchpost/watchpost/internal/incident"
	"github.com/watchpost/watchpost/internal/ladder"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/notify"
	"github.com/watchpost/watchpost/internal/retention"
	"github.com/watchpost/watchpost/internal/scheduler"
)

// shutdownGrace bounds how long Run gives in-flight probes to finish
// before cutting the process loose on SIGTERM/SIGINT.
const shutdownGrace = 30 * time.Second

func main() {
	log := logging.New("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	store, err := db.Open(db.Config{Type: cfg.DatabaseType, Path: cfg.DatabasePath, URL: cfg.DatabaseURL}, logging.New("db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("error closing store")
		}
	}()

	m := metrics.New()
	bus := eventbus.New(m)
	notifySvc := notify.NewService(store, cfg, m, logging.New("notify"))
	incidentMgr := incident.NewManager(store, bus, notifySvc, m, logging.New("incident"))
	sched := scheduler.New(store, bus, incidentMgr, m, cfg.ProbeWorkerConcurrency, cfg.SchedulerResyncPeriod, logging.New("scheduler"))
	retentionWorker := retention.New(store, cfg.HeartbeatRetentionDays, logging.New("retention"))
	ladderWorker := ladder.New(store, notifySvc, bus, logging.New("ladder"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := incidentMgr.Reconcile(ctx); err != nil {
		log.Fatal().Err(err).Msg("incident reconciliation failed")
	}

	notifySvc.Start(ctx)
	go retentionWorker.Run(ctx, time.Hour)
	go ladderWorker.Run(ctx, time.Minute)

	router := api.NewRouter(api.Deps{
		Store:       store,
		Scheduler:   sched,
		IncidentMgr: incidentMgr,
		Bus:         bus,
		Config:      cfg,
		Log:         logging.New("api"),
	})

	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.Handle("/metrics", promhttp.Handler())
	if cfg.StaticDir != "" {
		mux.Handle("/dashboard/", http.StripPrefix("/dashboard/", http.FileServer(http.Dir(cfg.StaticDir))))
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	schedErr := make(chan error, 1)
	go func() {
		schedErr <- sched.Run(ctx, shutdownGrace)
	}()

	schedDone := false
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, draining")
	case err := <-serverErr:
		log.Error().Err(err).Msg("http server failed")
		stop()
	case err := <-schedErr:
		log.Error().Err(err).Msg("scheduler exited unexpectedly")
		schedDone = true
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during http shutdown")
	}

	if !schedDone {
		if err := <-schedErr; err != nil {
			log.Error().Err(err).Msg("scheduler drain reported error")
		}
	}

	log.Info().Msg("shutdown complete")
	os.Exit(0)
}
