package incident

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/eventbus"
	"github.com/watchpost/watchpost/internal/ids"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/notify"
)

func newTestManager(t *testing.T, store *db.Store) (*Manager, *eventbus.Bus) {
	t.Helper()
	m := metrics.New()
	bus := eventbus.New(m)
	notifySvc := notify.NewService(store, config.Default(), m, zerolog.Nop())
	return NewManager(store, bus, notifySvc, m, zerolog.Nop()), bus
}

func mustCreateMonitor(t *testing.T, store *db.Store, threshold int) db.Monitor {
	t.Helper()
	mon := db.Monitor{
		ID: ids.New(), Name: "incident-test", Target: "https://example.com", MonitorType: db.MonitorTypeHTTP,
		IntervalSeconds: 60, TimeoutMS: 5000, ConfirmationThreshold: threshold, IsPublic: true,
		ManageKeyHash: "unused", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := store.CreateMonitor(context.Background(), mon); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}
	return mon
}

func heartbeat(monitorID, status string, at time.Time) db.Heartbeat {
	return db.Heartbeat{ID: ids.New(), MonitorID: monitorID, Status: status, CheckedAt: at}
}

func TestObserve_OpensIncidentAtConfirmationThreshold(t *testing.T) {
	store := db.OpenTestStore(t)
	mgr, bus := newTestManager(t, store)
	mon := mustCreateMonitor(t, store, 2)
	sub := bus.Subscribe(mon.ID)
	defer sub.Close()

	now := time.Now().UTC()
	if err := mgr.Observe(context.Background(), mon, heartbeat(mon.ID, db.StatusDown, now)); err != nil {
		t.Fatalf("first observe: %v", err)
	}
	if _, err := store.GetOpenIncident(context.Background(), mon.ID); err != db.ErrNotFound {
		t.Fatalf("expected no open incident below threshold, got err=%v", err)
	}

	if err := mgr.Observe(context.Background(), mon, heartbeat(mon.ID, db.StatusDown, now.Add(time.Minute))); err != nil {
		t.Fatalf("second observe: %v", err)
	}
	inc, err := store.GetOpenIncident(context.Background(), mon.ID)
	if err != nil {
		t.Fatalf("expected an open incident at threshold, got %v", err)
	}
	if inc.MonitorID != mon.ID {
		t.Errorf("expected incident for %s, got %s", mon.ID, inc.MonitorID)
	}
}

func TestObserve_BelowThresholdDoesNotOpenIncident(t *testing.T) {
	store := db.OpenTestStore(t)
	mgr, _ := newTestManager(t, store)
	mon := mustCreateMonitor(t, store, 3)

	now := time.Now().UTC()
	if err := mgr.Observe(context.Background(), mon, heartbeat(mon.ID, db.StatusDown, now)); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if err := mgr.Observe(context.Background(), mon, heartbeat(mon.ID, db.StatusDown, now.Add(time.Minute))); err != nil {
		t.Fatalf("observe: %v", err)
	}

	if _, err := store.GetOpenIncident(context.Background(), mon.ID); err != db.ErrNotFound {
		t.Errorf("expected no open incident before confirmation_threshold reached, got err=%v", err)
	}
}

func TestObserve_UpResolvesOpenIncident(t *testing.T) {
	store := db.OpenTestStore(t)
	mgr, _ := newTestManager(t, store)
	mon := mustCreateMonitor(t, store, 1)

	now := time.Now().UTC()
	if err := mgr.Observe(context.Background(), mon, heartbeat(mon.ID, db.StatusDown, now)); err != nil {
		t.Fatalf("observe down: %v", err)
	}
	if _, err := store.GetOpenIncident(context.Background(), mon.ID); err != nil {
		t.Fatalf("expected open incident, got %v", err)
	}

	if err := mgr.Observe(context.Background(), mon, heartbeat(mon.ID, db.StatusUp, now.Add(time.Minute))); err != nil {
		t.Fatalf("observe up: %v", err)
	}

	if _, err := store.GetOpenIncident(context.Background(), mon.ID); err != db.ErrNotFound {
		t.Errorf("expected the incident to be resolved, got err=%v", err)
	}
}

func TestObserve_MaintenanceHeartbeatDoesNotOpenIncident(t *testing.T) {
	store := db.OpenTestStore(t)
	mgr, _ := newTestManager(t, store)
	mon := mustCreateMonitor(t, store, 1)

	now := time.Now().UTC()
	if err := mgr.Observe(context.Background(), mon, heartbeat(mon.ID, db.StatusMaintenance, now)); err != nil {
		t.Fatalf("observe: %v", err)
	}

	if _, err := store.GetOpenIncident(context.Background(), mon.ID); err != db.ErrNotFound {
		t.Errorf("expected no incident from a maintenance heartbeat, got err=%v", err)
	}
}

func TestObserve_MaintenanceKeepsExistingIncidentOpen(t *testing.T) {
	store := db.OpenTestStore(t)
	mgr, _ := newTestManager(t, store)
	mon := mustCreateMonitor(t, store, 1)

	now := time.Now().UTC()
	if err := mgr.Observe(context.Background(), mon, heartbeat(mon.ID, db.StatusDown, now)); err != nil {
		t.Fatalf("observe down: %v", err)
	}
	before, err := store.GetOpenIncident(context.Background(), mon.ID)
	if err != nil {
		t.Fatalf("expected open incident: %v", err)
	}

	if err := mgr.Observe(context.Background(), mon, heartbeat(mon.ID, db.StatusMaintenance, now.Add(time.Minute))); err != nil {
		t.Fatalf("observe maintenance: %v", err)
	}

	after, err := store.GetOpenIncident(context.Background(), mon.ID)
	if err != nil {
		t.Fatalf("expected incident to remain open through maintenance: %v", err)
	}
	if after.ID != before.ID {
		t.Errorf("expected the same incident to remain open, got %s then %s", before.ID, after.ID)
	}
}

func TestObserve_DependencySuppressionBlocksNewIncident(t *testing.T) {
	store := db.OpenTestStore(t)
	mgr, _ := newTestManager(t, store)
	upstream := mustCreateMonitor(t, store, 1)
	downstream := mustCreateMonitor(t, store, 1)

	if err := store.AddDependency(context.Background(), downstream.ID, upstream.ID, time.Now()); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}

	now := time.Now().UTC()
	if err := mgr.Observe(context.Background(), upstream, heartbeat(upstream.ID, db.StatusDown, now)); err != nil {
		t.Fatalf("observe upstream down: %v", err)
	}
	if _, err := store.GetOpenIncident(context.Background(), upstream.ID); err != nil {
		t.Fatalf("expected upstream incident to open: %v", err)
	}

	if err := mgr.Observe(context.Background(), downstream, heartbeat(downstream.ID, db.StatusDown, now)); err != nil {
		t.Fatalf("observe downstream down: %v", err)
	}
	if _, err := store.GetOpenIncident(context.Background(), downstream.ID); err != db.ErrNotFound {
		t.Errorf("expected downstream incident to be suppressed while upstream is down, got err=%v", err)
	}
}

func TestAcknowledge_FirstCallSucceedsSecondIsNoop(t *testing.T) {
	store := db.OpenTestStore(t)
	mgr, _ := newTestManager(t, store)
	mon := mustCreateMonitor(t, store, 1)

	now := time.Now().UTC()
	if err := mgr.Observe(context.Background(), mon, heartbeat(mon.ID, db.StatusDown, now)); err != nil {
		t.Fatalf("observe: %v", err)
	}
	inc, err := store.GetOpenIncident(context.Background(), mon.ID)
	if err != nil {
		t.Fatalf("GetOpenIncident: %v", err)
	}

	acked, err := mgr.Acknowledge(context.Background(), inc.ID, "alice")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if !acked {
		t.Fatal("expected first acknowledgement to succeed")
	}

	acked2, err := mgr.Acknowledge(context.Background(), inc.ID, "bob")
	if err != nil {
		t.Fatalf("Acknowledge second: %v", err)
	}
	if acked2 {
		t.Error("expected second acknowledgement to be a no-op")
	}
}

func TestReconcile_RestoresOpenIncidentsAndConsecutiveFailures(t *testing.T) {
	store := db.OpenTestStore(t)
	mon := mustCreateMonitor(t, store, 3)

	now := time.Now().UTC()
	inc := db.Incident{ID: ids.New(), MonitorID: mon.ID, StartedAt: now, Cause: "boom", CreatedAt: now}
	if err := store.OpenIncident(context.Background(), inc); err != nil {
		t.Fatalf("OpenIncident: %v", err)
	}
	for i := 0; i < 2; i++ {
		hb := heartbeat(mon.ID, db.StatusDown, now.Add(time.Duration(i)*time.Minute))
		if _, err := store.InsertHeartbeat(context.Background(), hb); err != nil {
			t.Fatalf("InsertHeartbeat: %v", err)
		}
	}

	mgr, _ := newTestManager(t, store)
	if err := mgr.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	st := mgr.stateFor(mon.ID)
	if st.openIncidentID != inc.ID {
		t.Errorf("expected reconciled open incident %s, got %s", inc.ID, st.openIncidentID)
	}
	if st.consecutiveFailures != 2 {
		t.Errorf("expected consecutive_failures=2 reconstructed from heartbeats, got %d", st.consecutiveFailures)
	}
}
