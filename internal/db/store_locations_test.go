package db

import (
	"context"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/ids"
)

func TestCheckLocation_CreateGetListDisableDelete(t *testing.T) {
	store := OpenTestStore(t)
	loc := CheckLocation{ID: ids.New(), Name: "fra1", Region: "eu", ProbeKeyHash: "hash", CreatedAt: time.Now().UTC()}

	if err := store.CreateCheckLocation(context.Background(), loc); err != nil {
		t.Fatalf("CreateCheckLocation: %v", err)
	}

	got, err := store.GetCheckLocation(context.Background(), loc.ID)
	if err != nil {
		t.Fatalf("GetCheckLocation: %v", err)
	}
	if got.Name != "fra1" || got.IsDisabled {
		t.Errorf("expected enabled fra1 location, got %+v", got)
	}

	hash, err := store.GetCheckLocationKeyHash(context.Background(), loc.ID)
	if err != nil {
		t.Fatalf("GetCheckLocationKeyHash: %v", err)
	}
	if hash != "hash" {
		t.Errorf("expected probe_key_hash to round-trip, got %q", hash)
	}

	if err := store.SetCheckLocationDisabled(context.Background(), loc.ID, true); err != nil {
		t.Fatalf("SetCheckLocationDisabled: %v", err)
	}
	got, err = store.GetCheckLocation(context.Background(), loc.ID)
	if err != nil {
		t.Fatalf("GetCheckLocation after disable: %v", err)
	}
	if !got.IsDisabled {
		t.Error("expected location to be disabled")
	}

	listed, err := store.ListCheckLocations(context.Background())
	if err != nil {
		t.Fatalf("ListCheckLocations: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one location listed, got %d", len(listed))
	}

	if err := store.DeleteCheckLocation(context.Background(), loc.ID); err != nil {
		t.Fatalf("DeleteCheckLocation: %v", err)
	}
	if _, err := store.GetCheckLocation(context.Background(), loc.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestTouchCheckLocation_SetsLastSeenAt(t *testing.T) {
	store := OpenTestStore(t)
	loc := CheckLocation{ID: ids.New(), Name: "sfo1", ProbeKeyHash: "hash", CreatedAt: time.Now().UTC()}
	if err := store.CreateCheckLocation(context.Background(), loc); err != nil {
		t.Fatalf("CreateCheckLocation: %v", err)
	}

	now := time.Now().UTC()
	if err := store.TouchCheckLocation(context.Background(), loc.ID, now); err != nil {
		t.Fatalf("TouchCheckLocation: %v", err)
	}

	got, err := store.GetCheckLocation(context.Background(), loc.ID)
	if err != nil {
		t.Fatalf("GetCheckLocation: %v", err)
	}
	if got.LastSeenAt == nil {
		t.Fatal("expected last_seen_at to be set")
	}
}

func TestTouchCheckLocation_NotFound(t *testing.T) {
	store := OpenTestStore(t)
	if err := store.TouchCheckLocation(context.Background(), "missing", time.Now()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
