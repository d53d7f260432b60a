package db

import (
	"context"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/ids"
)

func baseTestMonitor(id, name string) Monitor {
	now := time.Now().UTC()
	return Monitor{
		ID: id, Name: name, Target: "https://example.com/" + name, MonitorType: MonitorTypeHTTP,
		IntervalSeconds: 600, TimeoutMS: 10000, ConfirmationThreshold: 2,
		ManageKeyHash: "hash", CreatedAt: now, UpdatedAt: now,
	}
}

func TestCreateAndGetMonitor_RoundTrips(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor(ids.New(), "roundtrip")
	m.Tags = []string{"prod", "api"}
	m.Headers = map[string]string{"X-Probe": "1"}

	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}

	got, err := store.GetMonitor(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetMonitor: %v", err)
	}
	if got.Name != m.Name || got.Target != m.Target {
		t.Errorf("expected name/target to round-trip, got %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "prod" {
		t.Errorf("expected tags to round-trip, got %v", got.Tags)
	}
	if got.Headers["X-Probe"] != "1" {
		t.Errorf("expected headers to round-trip, got %v", got.Headers)
	}
}

func TestGetMonitor_NotFound(t *testing.T) {
	store := OpenTestStore(t)
	_, err := store.GetMonitor(context.Background(), "missing")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMonitor_NotFoundWhenMissing(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor("missing", "ghost")
	if err := store.UpdateMonitor(context.Background(), m); err != ErrNotFound {
		t.Errorf("expected ErrNotFound updating a nonexistent monitor, got %v", err)
	}
}

func TestUpdateMonitor_PersistsChanges(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor(ids.New(), "updateme")
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}

	m.Name = "renamed"
	m.IntervalSeconds = 900
	m.UpdatedAt = time.Now().UTC()
	if err := store.UpdateMonitor(context.Background(), m); err != nil {
		t.Fatalf("UpdateMonitor: %v", err)
	}

	got, err := store.GetMonitor(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetMonitor: %v", err)
	}
	if got.Name != "renamed" || got.IntervalSeconds != 900 {
		t.Errorf("expected update to persist, got %+v", got)
	}
}

func TestSetMonitorPaused_TogglesState(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor(ids.New(), "pauseme")
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}

	if err := store.SetMonitorPaused(context.Background(), m.ID, true); err != nil {
		t.Fatalf("SetMonitorPaused: %v", err)
	}
	got, err := store.GetMonitor(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetMonitor: %v", err)
	}
	if !got.IsPaused {
		t.Error("expected monitor to be paused")
	}

	listed, err := store.ListMonitors(context.Background(), ListMonitorsFilter{})
	if err != nil {
		t.Fatalf("ListMonitors: %v", err)
	}
	for _, lm := range listed {
		if lm.ID == m.ID {
			t.Error("expected paused monitor to be excluded from default listing")
		}
	}
}

func TestDeleteMonitor_RemovesRow(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor(ids.New(), "deleteme")
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}

	if err := store.DeleteMonitor(context.Background(), m.ID); err != nil {
		t.Fatalf("DeleteMonitor: %v", err)
	}
	if _, err := store.GetMonitor(context.Background(), m.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteMonitor_NotFound(t *testing.T) {
	store := OpenTestStore(t)
	if err := store.DeleteMonitor(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListMonitors_FiltersByTagAndSearch(t *testing.T) {
	store := OpenTestStore(t)
	a := baseTestMonitor(ids.New(), "alpha")
	a.Tags = []string{"infra"}
	b := baseTestMonitor(ids.New(), "beta")
	b.Tags = []string{"app"}
	for _, m := range []Monitor{a, b} {
		if err := store.CreateMonitor(context.Background(), m); err != nil {
			t.Fatalf("CreateMonitor: %v", err)
		}
	}

	byTag, err := store.ListMonitors(context.Background(), ListMonitorsFilter{Tag: "infra"})
	if err != nil {
		t.Fatalf("ListMonitors by tag: %v", err)
	}
	if len(byTag) != 1 || byTag[0].ID != a.ID {
		t.Errorf("expected only alpha by tag infra, got %v", byTag)
	}

	bySearch, err := store.ListMonitors(context.Background(), ListMonitorsFilter{Search: "beta"})
	if err != nil {
		t.Fatalf("ListMonitors by search: %v", err)
	}
	if len(bySearch) != 1 || bySearch[0].ID != b.ID {
		t.Errorf("expected only beta by search, got %v", bySearch)
	}
}
