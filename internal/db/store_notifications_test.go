package db

import (
	"context"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/ids"
)

func TestNotificationChannels_CreateGetUpdateDelete(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor(ids.New(), "notify-1")
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}

	ch := NotificationChannel{
		ID: ids.New(), MonitorID: m.ID, Name: "ops webhook", ChannelType: ChannelTypeWebhook,
		Config: map[string]any{"url": "https://hooks.example.com/x"}, IsEnabled: true, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateNotificationChannel(context.Background(), ch); err != nil {
		t.Fatalf("CreateNotificationChannel: %v", err)
	}

	got, err := store.GetNotificationChannel(context.Background(), ch.ID)
	if err != nil {
		t.Fatalf("GetNotificationChannel: %v", err)
	}
	if got.Config["url"] != "https://hooks.example.com/x" {
		t.Errorf("expected config to round-trip, got %v", got.Config)
	}

	ch.Name = "renamed"
	ch.IsEnabled = false
	if err := store.UpdateNotificationChannel(context.Background(), ch); err != nil {
		t.Fatalf("UpdateNotificationChannel: %v", err)
	}
	got, err = store.GetNotificationChannel(context.Background(), ch.ID)
	if err != nil {
		t.Fatalf("GetNotificationChannel after update: %v", err)
	}
	if got.Name != "renamed" || got.IsEnabled {
		t.Errorf("expected update to persist, got %+v", got)
	}

	if err := store.DeleteNotificationChannel(context.Background(), ch.ID); err != nil {
		t.Fatalf("DeleteNotificationChannel: %v", err)
	}
	if _, err := store.GetNotificationChannel(context.Background(), ch.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListNotificationChannels_EnabledOnlyFilter(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor(ids.New(), "notify-2")
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}

	enabled := NotificationChannel{ID: ids.New(), MonitorID: m.ID, Name: "on", ChannelType: ChannelTypeEmail, Config: map[string]any{"to": "a@example.com"}, IsEnabled: true, CreatedAt: time.Now().UTC()}
	disabled := NotificationChannel{ID: ids.New(), MonitorID: m.ID, Name: "off", ChannelType: ChannelTypeEmail, Config: map[string]any{"to": "b@example.com"}, IsEnabled: false, CreatedAt: time.Now().UTC()}
	for _, c := range []NotificationChannel{enabled, disabled} {
		if err := store.CreateNotificationChannel(context.Background(), c); err != nil {
			t.Fatalf("CreateNotificationChannel %s: %v", c.Name, err)
		}
	}

	onlyEnabled, err := store.ListNotificationChannels(context.Background(), m.ID, true)
	if err != nil {
		t.Fatalf("ListNotificationChannels enabledOnly: %v", err)
	}
	if len(onlyEnabled) != 1 || onlyEnabled[0].ID != enabled.ID {
		t.Errorf("expected only the enabled channel, got %v", onlyEnabled)
	}

	all, err := store.ListNotificationChannels(context.Background(), m.ID, false)
	if err != nil {
		t.Fatalf("ListNotificationChannels all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected both channels without the filter, got %d", len(all))
	}
}
