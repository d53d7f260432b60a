// Package retention runs the periodic heartbeat pruning worker: heartbeats
// older than the configured window are deleted; incidents are never
// touched by this worker.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/db"
)

type Worker struct {
	store         *db.Store
	retentionDays int
	log           zerolog.Logger
}

func New(store *db.Store, retentionDays int, log zerolog.Logger) *Worker {
	return &Worker{store: store, retentionDays: retentionDays, log: log}
}

// Run prunes immediately, then at least hourly, until ctx is canceled.
func (w *Worker) Run(ctx context.Context, period time.Duration) {
	if period > time.Hour {
		period = time.Hour
	}

	w.pruneOnce(ctx)

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pruneOnce(ctx)
		}
	}
}

func (w *Worker) pruneOnce(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -w.retentionDays)
	n, err := w.store.PruneHeartbeats(ctx, cutoff)
	if err != nil {
		w.log.Error().Err(err).Msg("heartbeat retention pruning failed")
		return
	}
	if n > 0 {
		w.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("pruned heartbeats past retention window")
	}
}
