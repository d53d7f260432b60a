// Package scheduler is the single-writer driver of the local probing
// worker: an in-memory priority queue keyed by each
// monitor's next_due_at, drained by a bounded-concurrency pool of probe
// tasks.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/eventbus"
	"github.com/watchpost/watchpost/internal/ids"
	"github.com/watchpost/watchpost/internal/incident"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/probe"
	"github.com/watchpost/watchpost/internal/statuseval"
)

type dueEntry struct {
	monitorID string
	dueAt     time.Time
	index     int
}

// dueHeap is a min-heap on dueAt, the scheduler's due-work priority queue.
type dueHeap []*dueEntry

func (h dueHeap) Len() int            { return len(h) }
func (h dueHeap) Less(i, j int) bool  { return h[i].dueAt.Before(h[j].dueAt) }
func (h dueHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *dueHeap) Push(x any)         { e := x.(*dueEntry); e.index = len(*h); *h = append(*h, e) }
func (h *dueHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Scheduler owns the due-monitor priority queue and the bounded probe
// worker pool.
type Scheduler struct {
	store    *db.Store
	bus      *eventbus.Bus
	incident *incident.Manager
	metrics  *metrics.Metrics
	log      zerolog.Logger

	concurrency int
	resync      time.Duration

	mu      sync.Mutex
	queue   dueHeap
	entries map[string]*dueEntry

	wake     chan struct{}
	sem      chan struct{}
	wg       sync.WaitGroup
}

func New(store *db.Store, bus *eventbus.Bus, incidentMgr *incident.Manager, m *metrics.Metrics, concurrency int, resync time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:       store,
		bus:         bus,
		incident:    incidentMgr,
		metrics:     m,
		log:         log,
		concurrency: concurrency,
		resync:      resync,
		entries:     make(map[string]*dueEntry),
		wake:        make(chan struct{}, 1),
		sem:         make(chan struct{}, concurrency),
	}
}

// Run loads every non-paused monitor, sets next_due_at = now, and drives
// the main loop until ctx is canceled. On cancellation it stops issuing
// new probes and waits up to the grace period for in-flight ones, then
// returns; probes past the grace window are abandoned and their partial
// heartbeats are never written.
func (sc *Scheduler) Run(ctx context.Context, grace time.Duration) error {
	if err := sc.loadMonitors(ctx); err != nil {
		return err
	}

	resyncTicker := time.NewTicker(sc.resync)
	defer resyncTicker.Stop()

	for {
		sc.mu.Lock()
		var sleepFor time.Duration
		if sc.queue.Len() == 0 {
			sleepFor = sc.resync
		} else {
			sleepFor = time.Until(sc.queue[0].dueAt)
			if sleepFor < 0 {
				sleepFor = 0
			}
		}
		sc.mu.Unlock()

		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return sc.drain(grace)
		case <-resyncTicker.C:
			timer.Stop()
			if err := sc.loadMonitors(ctx); err != nil {
				sc.log.Error().Err(err).Msg("scheduler resync failed")
			}
			continue
		case <-sc.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		sc.dispatchDue(ctx)
	}
}

// drain waits for outstanding probe tasks to complete, up to grace.
func (sc *Scheduler) drain(grace time.Duration) error {
	done := make(chan struct{})
	go func() {
		sc.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		sc.log.Warn().Msg("scheduler shutdown grace period elapsed; abandoning in-flight probes")
	}
	return nil
}

// Notify wakes the main loop after an external change (monitor created,
// updated, resumed, or deleted) so the control channel does not have to
// wait for the periodic resync.
func (sc *Scheduler) Notify() {
	select {
	case sc.wake <- struct{}{}:
	default:
	}
}

func (sc *Scheduler) loadMonitors(ctx context.Context) error {
	monitors, err := sc.store.ListDueMonitors(ctx)
	if err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	seen := make(map[string]bool, len(monitors))
	for _, mon := range monitors {
		seen[mon.ID] = true
		if _, exists := sc.entries[mon.ID]; exists {
			continue
		}
		e := &dueEntry{monitorID: mon.ID, dueAt: time.Now()}
		sc.entries[mon.ID] = e
		heap.Push(&sc.queue, e)
	}

	for id, e := range sc.entries {
		if !seen[id] {
			sc.removeLocked(e)
			delete(sc.entries, id)
		}
	}
	return nil
}

func (sc *Scheduler) removeLocked(e *dueEntry) {
	if e.index >= 0 && e.index < sc.queue.Len() && sc.queue[e.index] == e {
		heap.Remove(&sc.queue, e.index)
	}
}

// dispatchDue drains every monitor whose next_due_at has passed and spawns
// a bounded-concurrency task for each.
func (sc *Scheduler) dispatchDue(ctx context.Context) {
	now := time.Now()
	var due []string

	sc.mu.Lock()
	for sc.queue.Len() > 0 && !sc.queue[0].dueAt.After(now) {
		e := heap.Pop(&sc.queue).(*dueEntry)
		due = append(due, e.monitorID)
		delete(sc.entries, e.monitorID)
	}
	sc.mu.Unlock()

	for _, id := range due {
		sc.wg.Add(1)
		go func(monitorID string) {
			defer sc.wg.Done()
			sc.sem <- struct{}{}
			defer func() { <-sc.sem }()
			sc.runProbe(ctx, monitorID)
		}(id)
	}
}

// runProbe fetches the current monitor row, runs its probe, evaluates
// status, writes the heartbeat transactionally, hands it to the incident
// manager, and reschedules next_due_at from completion time.
func (sc *Scheduler) runProbe(ctx context.Context, monitorID string) {
	mon, err := sc.store.GetMonitor(ctx, monitorID)
	if err != nil {
		if err != db.ErrNotFound {
			sc.log.Error().Err(err).Str("monitor_id", monitorID).Msg("failed to load monitor for probe")
		}
		return
	}
	if mon.IsPaused {
		return
	}

	probeStart := time.Now()
	outcome := probe.Run(ctx, *mon)
	if sc.metrics != nil {
		sc.metrics.ProbeDuration.WithLabelValues(mon.MonitorType).Observe(time.Since(probeStart).Seconds())
	}

	maintenanceActive, err := sc.isUnderMaintenance(ctx, mon.ID, time.Now())
	if err != nil {
		sc.log.Error().Err(err).Str("monitor_id", mon.ID).Msg("failed to evaluate maintenance windows")
	}

	status := statuseval.Evaluate(outcome, *mon, maintenanceActive)

	hb := db.Heartbeat{
		ID:             ids.New(),
		MonitorID:      mon.ID,
		Status:         status,
		ResponseTimeMS: outcome.ResponseTimeMS,
		ErrorMessage:   outcome.Error,
		CheckedAt:      time.Now().UTC(),
	}
	if outcome.StatusCode != 0 {
		statusCode := outcome.StatusCode
		hb.StatusCode = &statusCode
	}

	seq, err := sc.store.InsertHeartbeat(ctx, hb)
	if err != nil {
		sc.log.Error().Err(err).Str("monitor_id", mon.ID).Msg("failed to write heartbeat")
		sc.reschedule(mon.ID, mon.IntervalSeconds)
		return
	}
	hb.Seq = seq
	if sc.metrics != nil {
		sc.metrics.ProbesTotal.WithLabelValues(mon.MonitorType, status).Inc()
	}

	sc.bus.Publish(eventbus.Event{
		Type:      eventbus.EventCheckCompleted,
		MonitorID: mon.ID,
		IsPublic:  mon.IsPublic,
		Data:      hb,
	})

	effective := sc.effectiveHeartbeat(ctx, *mon, hb)
	if err := sc.incident.Observe(ctx, *mon, effective); err != nil {
		sc.log.Error().Err(err).Str("monitor_id", mon.ID).Msg("incident manager failed to process heartbeat")
	}

	sc.reschedule(mon.ID, mon.IntervalSeconds)
}

// effectiveHeartbeat reduces a monitor's fresh per-location heartbeats to
// the single effective status the incident manager acts on. Monitors
// without a consensus_threshold, and any heartbeat already carrying a
// maintenance status (monitor-wide and deterministic, not per-location),
// pass through unchanged.
func (sc *Scheduler) effectiveHeartbeat(ctx context.Context, mon db.Monitor, hb db.Heartbeat) db.Heartbeat {
	if mon.ConsensusThreshold == nil || hb.Status == db.StatusMaintenance {
		return hb
	}
	since := hb.CheckedAt.Add(-statuseval.FreshnessWindow(mon.IntervalSeconds))
	reports, err := sc.store.LastHeartbeatPerLocation(ctx, mon.ID, since)
	if err != nil {
		sc.log.Error().Err(err).Str("monitor_id", mon.ID).Msg("failed to load per-location heartbeats for consensus")
		return hb
	}
	hb.Status = statuseval.Consensus(statuseval.ReportsFromHeartbeats(reports), *mon.ConsensusThreshold)
	return hb
}

func (sc *Scheduler) isUnderMaintenance(ctx context.Context, monitorID string, at time.Time) (bool, error) {
	windows, err := sc.store.ListMaintenanceWindows(ctx, monitorID)
	if err != nil {
		return false, err
	}
	for _, w := range windows {
		if w.ActiveAt(at) {
			return true, nil
		}
	}
	return false, nil
}

func (sc *Scheduler) reschedule(monitorID string, intervalSeconds int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	e := &dueEntry{monitorID: monitorID, dueAt: time.Now().Add(time.Duration(intervalSeconds) * time.Second)}
	sc.entries[monitorID] = e
	heap.Push(&sc.queue, e)
}
