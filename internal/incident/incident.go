// Package incident implements the per-monitor state machine that turns a
// stream of heartbeats into opened, resolved, and acknowledged incidents.
// Transitions are serialized per monitor by a mutex taken
// for the whole decide-and-persist step, matching the store's own
// at-most-one-open-incident guarantee.
package incident

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/eventbus"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/notify"
)

// monitorState is the in-memory derived state tracked per monitor:
// consecutive_failures and the currently open incident, if any.
type monitorState struct {
	mu                  sync.Mutex
	consecutiveFailures int
	openIncidentID      string
}

// Manager owns the incident state machine for every monitor. It is the
// sole writer of the incidents table.
type Manager struct {
	store    *db.Store
	bus      *eventbus.Bus
	notifier *notify.Service
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu     sync.Mutex
	states map[string]*monitorState
}

func NewManager(store *db.Store, bus *eventbus.Bus, notifier *notify.Service, m *metrics.Metrics, log zerolog.Logger) *Manager {
	return &Manager{
		store:    store,
		bus:      bus,
		notifier: notifier,
		metrics:  m,
		log:      log,
		states:   make(map[string]*monitorState),
	}
}

// Reconcile rebuilds in-memory state from the store at startup: open incidents are loaded directly, and consecutive_failures is
// reconstructed by scanning each monitor's recent heartbeats backward
// until a non-down status or history end.
func (m *Manager) Reconcile(ctx context.Context) error {
	openIncidents, err := m.store.AllOpenIncidents(ctx)
	if err != nil {
		return fmt.Errorf("reconcile open incidents: %w", err)
	}
	for _, inc := range openIncidents {
		m.stateFor(inc.MonitorID).openIncidentID = inc.ID
	}

	monitors, err := m.store.ListMonitors(ctx, db.ListMonitorsFilter{IncludePaused: true})
	if err != nil {
		return fmt.Errorf("reconcile monitors: %w", err)
	}
	for _, mon := range monitors {
		recent, err := m.store.LastHeartbeats(ctx, mon.ID, mon.ConfirmationThreshold+5)
		if err != nil {
			return fmt.Errorf("reconcile heartbeats for %s: %w", mon.ID, err)
		}
		cf := 0
		for _, hb := range recent {
			if hb.Status != db.StatusDown {
				break
			}
			cf++
		}
		m.stateFor(mon.ID).consecutiveFailures = cf
	}

	return nil
}

func (m *Manager) stateFor(monitorID string) *monitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[monitorID]
	if !ok {
		st = &monitorState{}
		m.states[monitorID] = st
	}
	return st
}

// Observe feeds one newly-written heartbeat through the state machine. It
// is called by the scheduler (local probes) and the remote-probe ingest
// handler immediately after the heartbeat is durably persisted — never
// before, so that no event is emitted for a transition that was not
// recorded.
func (m *Manager) Observe(ctx context.Context, mon db.Monitor, hb db.Heartbeat) error {
	st := m.stateFor(mon.ID)
	st.mu.Lock()
	defer st.mu.Unlock()

	switch hb.Status {
	case db.StatusUp, db.StatusDegraded, db.StatusMaintenance:
		return m.handleNonDown(ctx, mon, hb, st)
	case db.StatusDown:
		return m.handleDown(ctx, mon, hb, st)
	default:
		return fmt.Errorf("incident: unknown heartbeat status %q", hb.Status)
	}
}

func (m *Manager) handleNonDown(ctx context.Context, mon db.Monitor, hb db.Heartbeat, st *monitorState) error {
	if st.openIncidentID == "" {
		st.consecutiveFailures = 0

		switch hb.Status {
		case db.StatusDegraded:
			m.publish(mon, eventbus.EventMonitorDegraded, hb)
			if mon.ResponseTimeThresholdMS != nil {
				m.notifier.Enqueue(notify.Dispatch{
					Event:   notify.EventMonitorDegraded,
					Monitor: mon,
					Message: "response time exceeded threshold",
					At:      hb.CheckedAt,
				})
			}
		case db.StatusMaintenance:
			// no event: the heartbeat is honestly recorded but there is
			// nothing to announce while no incident is open.
		default:
			m.publish(mon, eventbus.EventMonitorUp, hb)
		}
		return nil
	}

	if hb.Status == db.StatusMaintenance {
		// Incident stays open through maintenance, treated as
		// in-progress observation; cf is left untouched.
		return nil
	}

	return m.resolveIncident(ctx, mon, hb, st)
}

func (m *Manager) resolveIncident(ctx context.Context, mon db.Monitor, hb db.Heartbeat, st *monitorState) error {
	incidentID := st.openIncidentID
	now := hb.CheckedAt

	if err := m.store.ResolveIncident(ctx, incidentID, sqlNullTime(now)); err != nil {
		return fmt.Errorf("resolve incident: %w", err)
	}

	inc, err := m.store.GetIncident(ctx, incidentID)
	if err != nil {
		return fmt.Errorf("reload resolved incident: %w", err)
	}

	st.openIncidentID = ""

	recoveryEvent := eventbus.EventMonitorUp
	notifyEvent := notify.EventIncidentResolved
	if hb.Status == db.StatusDegraded {
		recoveryEvent = eventbus.EventMonitorDegraded
	}
	m.publish(mon, recoveryEvent, hb)
	m.publish(mon, eventbus.EventIncidentResolved, *inc)
	if m.metrics != nil {
		m.metrics.IncidentsResolvedTotal.WithLabelValues(mon.ID).Inc()
	}

	m.notifier.Enqueue(notify.Dispatch{
		Event:    notifyEvent,
		Monitor:  mon,
		Incident: *inc,
		Message:  "monitor recovered",
		At:       now,
	})

	return nil
}

func (m *Manager) handleDown(ctx context.Context, mon db.Monitor, hb db.Heartbeat, st *monitorState) error {
	if st.openIncidentID != "" {
		st.consecutiveFailures++
		return nil
	}

	st.consecutiveFailures++
	if st.consecutiveFailures < mon.ConfirmationThreshold {
		m.publish(mon, eventbus.EventMonitorDown, hb)
		return nil
	}

	suppressed, err := m.suppressed(ctx, mon)
	if err != nil {
		return fmt.Errorf("evaluate suppression: %w", err)
	}
	if suppressed {
		// Retain consecutive_failures; re-evaluate on the next failing
		// heartbeat.
		m.publish(mon, eventbus.EventMonitorDown, hb)
		return nil
	}

	inc := db.Incident{
		ID:            uuid.New().String(),
		MonitorID:     mon.ID,
		StartedAt:     hb.CheckedAt,
		Cause:         hb.ErrorMessage,
		DeliveryGroup: uuid.New().String(),
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.store.OpenIncident(ctx, inc); err != nil {
		return fmt.Errorf("open incident: %w", err)
	}
	st.openIncidentID = inc.ID

	m.publish(mon, eventbus.EventMonitorDown, hb)
	m.publish(mon, eventbus.EventIncidentCreated, inc)
	if m.metrics != nil {
		m.metrics.IncidentsOpenedTotal.WithLabelValues(mon.ID).Inc()
	}

	m.notifier.Enqueue(notify.Dispatch{
		Event:    notify.EventIncidentCreated,
		Monitor:  mon,
		Incident: inc,
		Message:  hb.ErrorMessage,
		At:       inc.StartedAt,
	})

	return nil
}

// suppressed evaluates the maintenance and dependency suppression
// predicates against the moment an incident would open. Maintenance
// suppression is already handled upstream (a maintenance
// heartbeat never reaches handleDown), so only dependency suppression is
// checked here.
func (m *Manager) suppressed(ctx context.Context, mon db.Monitor) (bool, error) {
	deps, err := m.store.DependenciesOf(ctx, mon.ID)
	if err != nil {
		return false, err
	}
	for _, depID := range deps {
		_, err := m.store.GetOpenIncident(ctx, depID)
		if err == nil {
			return true, nil
		}
		if err != db.ErrNotFound {
			return false, err
		}
	}
	return false, nil
}

// Acknowledge records the first acknowledgement of an open incident. Later
// calls are no-ops here; clients should add incident notes instead.
func (m *Manager) Acknowledge(ctx context.Context, incidentID, actor string) (bool, error) {
	acked, err := m.store.AcknowledgeIncident(ctx, incidentID, actor, sqlNullTime(time.Now().UTC()))
	if err != nil || !acked {
		return acked, err
	}

	inc, err := m.store.GetIncident(ctx, incidentID)
	if err != nil {
		return true, err
	}
	mon, err := m.store.GetMonitor(ctx, inc.MonitorID)
	if err != nil {
		return true, err
	}
	m.publish(*mon, eventbus.EventIncidentAck, *inc)
	return true, nil
}

func (m *Manager) publish(mon db.Monitor, eventType string, data any) {
	m.bus.Publish(eventbus.Event{
		Type:      eventType,
		MonitorID: mon.ID,
		IsPublic:  mon.IsPublic,
		Data:      data,
	})
}
