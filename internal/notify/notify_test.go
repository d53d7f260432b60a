package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/ids"
	"github.com/watchpost/watchpost/internal/metrics"
)

func newTestService(t *testing.T) (*Service, *db.Store) {
	t.Helper()
	store := db.OpenTestStore(t)
	return NewService(store, config.Default(), metrics.New(), zerolog.Nop()), store
}

func mustCreateMonitor(t *testing.T, store *db.Store) db.Monitor {
	t.Helper()
	m := db.Monitor{
		ID: ids.New(), Name: "notify-test", Target: "https://example.com", MonitorType: db.MonitorTypeHTTP,
		IntervalSeconds: 60, TimeoutMS: 5000, ConfirmationThreshold: 1,
		ManageKeyHash: "unused", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}
	return m
}

func mustCreateWebhookChannel(t *testing.T, store *db.Store, monitorID, url string) db.NotificationChannel {
	t.Helper()
	ch := db.NotificationChannel{
		ID: ids.New(), MonitorID: monitorID, Name: "wh", ChannelType: db.ChannelTypeWebhook,
		Config: map[string]any{"url": url}, IsEnabled: true, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateNotificationChannel(context.Background(), ch); err != nil {
		t.Fatalf("CreateNotificationChannel: %v", err)
	}
	return ch
}

func TestDispatchWebhook_SucceedsOnFirstAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var payload webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, store := newTestService(t)
	mon := mustCreateMonitor(t, store)
	ch := mustCreateWebhookChannel(t, store, mon.ID, srv.URL)

	svc.dispatchWebhook(context.Background(), ch, Dispatch{
		Event: EventIncidentCreated, Monitor: mon, Message: "down", At: time.Now().UTC(),
	}, "group-1")

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly one delivery attempt, got %d", got)
	}

	deliveries, err := store.ListWebhookDeliveries(context.Background(), mon.ID, 10)
	if err != nil {
		t.Fatalf("ListWebhookDeliveries: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("expected one recorded delivery, got %d", len(deliveries))
	}
	if deliveries[0].Status != db.DeliveryStatusSuccess {
		t.Errorf("expected success status, got %s", deliveries[0].Status)
	}
}

func TestDispatchWebhook_RetriesOnFailureUpToThreeAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc, store := newTestService(t)
	mon := mustCreateMonitor(t, store)
	ch := mustCreateWebhookChannel(t, store, mon.ID, srv.URL)

	start := time.Now()
	svc.dispatchWebhook(context.Background(), ch, Dispatch{
		Event: EventIncidentCreated, Monitor: mon, Message: "down", At: time.Now().UTC(),
	}, "group-1")
	elapsed := time.Since(start)

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts (t=0,2,4s), got %d", got)
	}
	if elapsed < 4*time.Second {
		t.Errorf("expected at least ~4s of backoff across 3 attempts, took %s", elapsed)
	}

	deliveries, err := store.ListWebhookDeliveries(context.Background(), mon.ID, 10)
	if err != nil {
		t.Fatalf("ListWebhookDeliveries: %v", err)
	}
	if len(deliveries) != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d", len(deliveries))
	}
	for _, d := range deliveries {
		if d.Status != db.DeliveryStatusFailure {
			t.Errorf("expected every attempt recorded as failure, got %s", d.Status)
		}
	}
}

func TestDispatchWebhook_MissingURLRecordsFailureWithoutHTTPCall(t *testing.T) {
	svc, store := newTestService(t)
	mon := mustCreateMonitor(t, store)
	ch := db.NotificationChannel{
		ID: ids.New(), MonitorID: mon.ID, Name: "wh", ChannelType: db.ChannelTypeWebhook,
		Config: map[string]any{}, IsEnabled: true, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateNotificationChannel(context.Background(), ch); err != nil {
		t.Fatalf("CreateNotificationChannel: %v", err)
	}

	svc.dispatchWebhook(context.Background(), ch, Dispatch{
		Event: EventIncidentCreated, Monitor: mon, Message: "down", At: time.Now().UTC(),
	}, "group-1")

	deliveries, err := store.ListWebhookDeliveries(context.Background(), mon.ID, 10)
	if err != nil {
		t.Fatalf("ListWebhookDeliveries: %v", err)
	}
	if len(deliveries) != 1 || deliveries[0].Status != db.DeliveryStatusFailure {
		t.Fatalf("expected a single failure recorded for missing url, got %+v", deliveries)
	}
}

func TestDispatchEmail_NotConfiguredRecordsFailure(t *testing.T) {
	svc, store := newTestService(t)
	mon := mustCreateMonitor(t, store)
	ch := db.NotificationChannel{
		ID: ids.New(), MonitorID: mon.ID, Name: "email", ChannelType: db.ChannelTypeEmail,
		Config: map[string]any{"to": "ops@example.com"}, IsEnabled: true, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateNotificationChannel(context.Background(), ch); err != nil {
		t.Fatalf("CreateNotificationChannel: %v", err)
	}

	svc.dispatchEmail(context.Background(), ch, Dispatch{
		Event: EventIncidentCreated, Monitor: mon, Message: "down", At: time.Now().UTC(),
	})

	deliveries, err := store.ListWebhookDeliveries(context.Background(), mon.ID, 10)
	if err != nil {
		t.Fatalf("ListWebhookDeliveries: %v", err)
	}
	if len(deliveries) != 1 || deliveries[0].Status != db.DeliveryStatusFailure {
		t.Fatalf("expected one recorded failure when SMTP is unconfigured, got %+v", deliveries)
	}
}

func TestRenderPayload_ChatFormatUsesText(t *testing.T) {
	svc, _ := newTestService(t)
	ch := db.NotificationChannel{Config: map[string]any{"format": "chat"}}
	mon := db.Monitor{ID: "m1", Name: "api"}

	out := svc.renderPayload(ch, Dispatch{Event: EventMonitorDegraded, Monitor: mon, Message: "slow", At: time.Now()})

	var p chatPayload
	if err := json.Unmarshal(out, &p); err != nil {
		t.Fatalf("unmarshal chat payload: %v", err)
	}
	if p.Text == "" {
		t.Error("expected non-empty chat text")
	}
	if p.MonitorName != "api" {
		t.Errorf("expected monitor_name=api, got %s", p.MonitorName)
	}
}

func TestDispatch_EnqueueIsNonBlockingWhenQueueFull(t *testing.T) {
	store := db.OpenTestStore(t)
	svc := NewService(store, config.Default(), metrics.New(), zerolog.Nop())
	mon := mustCreateMonitor(t, store)

	// Fill the queue without a worker draining it; Enqueue must never block.
	for i := 0; i < 300; i++ {
		svc.Enqueue(Dispatch{Event: EventIncidentCreated, Monitor: mon, At: time.Now().UTC()})
	}
}
