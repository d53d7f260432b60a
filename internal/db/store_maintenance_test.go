package db

import (
	"context"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/ids"
)

func TestMaintenanceWindows_CreateListDelete(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor(ids.New(), "maint-1")
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}

	now := time.Now().UTC()
	w := MaintenanceWindow{
		ID: ids.New(), MonitorID: m.ID, Title: "deploy", StartsAt: now, EndsAt: now.Add(time.Hour), CreatedAt: now,
	}
	if err := store.CreateMaintenanceWindow(context.Background(), w); err != nil {
		t.Fatalf("CreateMaintenanceWindow: %v", err)
	}

	windows, err := store.ListMaintenanceWindows(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("ListMaintenanceWindows: %v", err)
	}
	if len(windows) != 1 || windows[0].ID != w.ID {
		t.Fatalf("expected one listed window, got %v", windows)
	}

	if err := store.DeleteMaintenanceWindow(context.Background(), w.ID); err != nil {
		t.Fatalf("DeleteMaintenanceWindow: %v", err)
	}
	windows, err = store.ListMaintenanceWindows(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("ListMaintenanceWindows after delete: %v", err)
	}
	if len(windows) != 0 {
		t.Errorf("expected no windows after delete, got %v", windows)
	}
}

func TestDeleteMaintenanceWindow_NotFound(t *testing.T) {
	store := OpenTestStore(t)
	if err := store.DeleteMaintenanceWindow(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestActiveMaintenanceWindows_OnlyReturnsCoveringWindows(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor(ids.New(), "maint-2")
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}

	now := time.Now().UTC()
	active := MaintenanceWindow{ID: ids.New(), MonitorID: m.ID, Title: "now", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour), CreatedAt: now}
	past := MaintenanceWindow{ID: ids.New(), MonitorID: m.ID, Title: "past", StartsAt: now.Add(-3 * time.Hour), EndsAt: now.Add(-2 * time.Hour), CreatedAt: now}
	future := MaintenanceWindow{ID: ids.New(), MonitorID: m.ID, Title: "future", StartsAt: now.Add(2 * time.Hour), EndsAt: now.Add(3 * time.Hour), CreatedAt: now}
	for _, w := range []MaintenanceWindow{active, past, future} {
		if err := store.CreateMaintenanceWindow(context.Background(), w); err != nil {
			t.Fatalf("CreateMaintenanceWindow %s: %v", w.Title, err)
		}
	}

	got, err := store.ActiveMaintenanceWindows(context.Background(), now)
	if err != nil {
		t.Fatalf("ActiveMaintenanceWindows: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Errorf("expected only the covering window, got %v", got)
	}
}
