package db

import (
	"context"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/ids"
)

func baseTestStatusPage(id, slug string) StatusPage {
	now := time.Now().UTC()
	return StatusPage{ID: id, Slug: slug, Title: "Status", IsPublic: true, ManageKeyHash: "hash", CreatedAt: now, UpdatedAt: now}
}

func TestStatusPage_CreateGetBySlugUpdateDelete(t *testing.T) {
	store := OpenTestStore(t)
	p := baseTestStatusPage(ids.New(), "public-status")

	if err := store.CreateStatusPage(context.Background(), p); err != nil {
		t.Fatalf("CreateStatusPage: %v", err)
	}

	bySlug, err := store.GetStatusPageBySlug(context.Background(), "public-status")
	if err != nil {
		t.Fatalf("GetStatusPageBySlug: %v", err)
	}
	if bySlug.ID != p.ID {
		t.Errorf("expected slug lookup to find %s, got %s", p.ID, bySlug.ID)
	}

	p.Title = "Renamed Status"
	p.UpdatedAt = time.Now().UTC()
	if err := store.UpdateStatusPage(context.Background(), p); err != nil {
		t.Fatalf("UpdateStatusPage: %v", err)
	}
	got, err := store.GetStatusPage(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetStatusPage: %v", err)
	}
	if got.Title != "Renamed Status" {
		t.Errorf("expected update to persist, got %q", got.Title)
	}

	if err := store.DeleteStatusPage(context.Background(), p.ID); err != nil {
		t.Fatalf("DeleteStatusPage: %v", err)
	}
	if _, err := store.GetStatusPage(context.Background(), p.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStatusPage_CreateRejectsDuplicateSlug(t *testing.T) {
	store := OpenTestStore(t)
	a := baseTestStatusPage(ids.New(), "dup-slug")
	b := baseTestStatusPage(ids.New(), "dup-slug")

	if err := store.CreateStatusPage(context.Background(), a); err != nil {
		t.Fatalf("CreateStatusPage a: %v", err)
	}
	if err := store.CreateStatusPage(context.Background(), b); err != ErrConflict {
		t.Errorf("expected ErrConflict on duplicate slug, got %v", err)
	}
}

func TestStatusPageMonitors_AttachListDetach(t *testing.T) {
	store := OpenTestStore(t)
	page := baseTestStatusPage(ids.New(), "attach-status")
	if err := store.CreateStatusPage(context.Background(), page); err != nil {
		t.Fatalf("CreateStatusPage: %v", err)
	}
	mon := baseTestMonitor(ids.New(), "attach-mon")
	if err := store.CreateMonitor(context.Background(), mon); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}

	if err := store.AddStatusPageMonitor(context.Background(), page.ID, mon.ID); err != nil {
		t.Fatalf("AddStatusPageMonitor: %v", err)
	}

	attached, err := store.StatusPageMonitors(context.Background(), page.ID)
	if err != nil {
		t.Fatalf("StatusPageMonitors: %v", err)
	}
	if len(attached) != 1 || attached[0].ID != mon.ID {
		t.Fatalf("expected the attached monitor to be listed, got %v", attached)
	}

	if err := store.RemoveStatusPageMonitor(context.Background(), page.ID, mon.ID); err != nil {
		t.Fatalf("RemoveStatusPageMonitor: %v", err)
	}
	attached, err = store.StatusPageMonitors(context.Background(), page.ID)
	if err != nil {
		t.Fatalf("StatusPageMonitors after remove: %v", err)
	}
	if len(attached) != 0 {
		t.Errorf("expected no attached monitors after removal, got %v", attached)
	}
}

func TestRemoveStatusPageMonitor_NotFound(t *testing.T) {
	store := OpenTestStore(t)
	page := baseTestStatusPage(ids.New(), "remove-status")
	if err := store.CreateStatusPage(context.Background(), page); err != nil {
		t.Fatalf("CreateStatusPage: %v", err)
	}

	if err := store.RemoveStatusPageMonitor(context.Background(), page.ID, "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
