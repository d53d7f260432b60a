// Package ladder runs the per-incident reminder/escalation timer ladder:
// while an incident stays open, configured reminders
// repeat every repeat_interval_minutes up to max_repeats, and a single
// escalation fires once escalation_after_minutes has elapsed. The ladder
// survives restarts by recomputing each incident's next due tick from
// started_at and the alert_log rather than holding timers in memory.
package ladder

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/eventbus"
	"github.com/watchpost/watchpost/internal/ids"
	"github.com/watchpost/watchpost/internal/notify"
)

type Worker struct {
	store  *db.Store
	notify *notify.Service
	bus    *eventbus.Bus
	log    zerolog.Logger
}

func New(store *db.Store, notifySvc *notify.Service, bus *eventbus.Bus, log zerolog.Logger) *Worker {
	return &Worker{store: store, notify: notifySvc, bus: bus, log: log}
}

// Run scans every open incident at least once a minute, capped at
// `period`, until ctx is canceled.
func (w *Worker) Run(ctx context.Context, period time.Duration) {
	if period > time.Minute {
		period = time.Minute
	}

	w.tick(ctx)

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	incidents, err := w.store.AllOpenIncidents(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("ladder: failed to list open incidents")
		return
	}
	now := time.Now().UTC()
	for _, inc := range incidents {
		if err := w.evaluate(ctx, inc, now); err != nil {
			w.log.Error().Err(err).Str("incident_id", inc.ID).Msg("ladder: evaluation failed")
		}
	}
}

// evaluate recomputes how many reminders and whether the escalation have
// already fired for inc from alert_log, then fires whatever is next due.
// It fires at most one reminder and one escalation per tick; a long gap
// (the process having been down) is caught up one tick at a time rather
// than bursting every missed reminder at once.
func (w *Worker) evaluate(ctx context.Context, inc db.Incident, now time.Time) error {
	rule, err := w.store.GetAlertRule(ctx, inc.MonitorID)
	if err == db.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if rule.RepeatIntervalMinutes <= 0 && rule.EscalationAfterMinutes <= 0 {
		return nil
	}

	log, err := w.store.ListAlertLog(ctx, inc.ID)
	if err != nil {
		return err
	}
	remindersFired := 0
	escalated := false
	for _, e := range log {
		switch e.Kind {
		case db.AlertKindReminder:
			remindersFired++
		case db.AlertKindEscalation:
			escalated = true
		}
	}

	mon, err := w.store.GetMonitor(ctx, inc.MonitorID)
	if err != nil {
		return err
	}

	if rule.EscalationAfterMinutes > 0 && !escalated && inc.AcknowledgedAt == nil {
		dueAt := inc.StartedAt.Add(time.Duration(rule.EscalationAfterMinutes) * time.Minute)
		if !now.Before(dueAt) {
			if err := w.fire(ctx, *mon, inc, db.AlertKindEscalation, nil, now); err != nil {
				return err
			}
			return nil
		}
	}

	if rule.RepeatIntervalMinutes > 0 && (rule.MaxRepeats <= 0 || remindersFired < rule.MaxRepeats) {
		next := remindersFired + 1
		dueAt := inc.StartedAt.Add(time.Duration(next*rule.RepeatIntervalMinutes) * time.Minute)
		if !now.Before(dueAt) {
			return w.fire(ctx, *mon, inc, db.AlertKindReminder, &next, now)
		}
	}

	return nil
}

func (w *Worker) fire(ctx context.Context, mon db.Monitor, inc db.Incident, kind string, repeatNumber *int, now time.Time) error {
	entry := db.AlertLogEntry{
		ID: ids.New(), MonitorID: mon.ID, IncidentID: inc.ID, Kind: kind,
		RepeatNumber: repeatNumber, CreatedAt: now,
	}
	if err := w.store.RecordAlertLog(ctx, entry); err != nil {
		return err
	}

	event := notify.EventIncidentReminder
	busType := eventbus.EventIncidentReminder
	message := "incident still open"
	if kind == db.AlertKindEscalation {
		event = notify.EventIncidentEscalated
		busType = eventbus.EventIncidentEscalated
		message = "incident escalated: still open past escalation_after_minutes"
	}

	w.notify.Enqueue(notify.Dispatch{Event: event, Monitor: mon, Incident: inc, Message: message, At: now})
	w.bus.Publish(eventbus.Event{
		Type: busType, MonitorID: mon.ID, IsPublic: mon.IsPublic,
		Data: map[string]any{"incident_id": inc.ID, "monitor_id": mon.ID, "kind": kind, "repeat_number": repeatNumber},
		At:   now,
	})
	w.log.Info().Str("incident_id", inc.ID).Str("monitor_id", mon.ID).Str("kind", kind).Msg("ladder fired")
	return nil
}
