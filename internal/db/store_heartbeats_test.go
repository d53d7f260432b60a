package db

import (
	"context"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/ids"
)

func insertSeqHeartbeats(t *testing.T, store *Store, monitorID string, n int) []int64 {
	t.Helper()
	var seqs []int64
	base := time.Now().UTC().Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		h := Heartbeat{ID: ids.New(), MonitorID: monitorID, Status: StatusUp, CheckedAt: base.Add(time.Duration(i) * time.Minute)}
		seq, err := store.InsertHeartbeat(context.Background(), h)
		if err != nil {
			t.Fatalf("InsertHeartbeat %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}
	return seqs
}

func TestListHeartbeats_WithoutAfterReturnsNewestFirst(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor(ids.New(), "hb-1")
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}
	insertSeqHeartbeats(t, store, m.ID, 5)

	page, err := store.ListHeartbeats(context.Background(), m.ID, 0, 3)
	if err != nil {
		t.Fatalf("ListHeartbeats: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(page))
	}
	for i := 0; i+1 < len(page); i++ {
		if page[i].Seq < page[i+1].Seq {
			t.Errorf("expected descending seq without a cursor, got %d then %d", page[i].Seq, page[i+1].Seq)
		}
	}
}

func TestListHeartbeats_WithAfterReturnsAscendingPage(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor(ids.New(), "hb-2")
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}
	seqs := insertSeqHeartbeats(t, store, m.ID, 5)

	page, err := store.ListHeartbeats(context.Background(), m.ID, seqs[1], 10)
	if err != nil {
		t.Fatalf("ListHeartbeats: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 rows strictly after the second seq, got %d", len(page))
	}
	for i, h := range page {
		if h.Seq <= seqs[1] {
			t.Errorf("row %d: expected seq > %d, got %d", i, seqs[1], h.Seq)
		}
	}
	for i := 0; i+1 < len(page); i++ {
		if page[i].Seq > page[i+1].Seq {
			t.Errorf("expected ascending seq with a cursor, got %d then %d", page[i].Seq, page[i+1].Seq)
		}
	}
}

func TestPruneHeartbeats_DeletesOlderRows(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor(ids.New(), "hb-prune")
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}

	old := Heartbeat{ID: ids.New(), MonitorID: m.ID, Status: StatusUp, CheckedAt: time.Now().UTC().Add(-100 * 24 * time.Hour)}
	recent := Heartbeat{ID: ids.New(), MonitorID: m.ID, Status: StatusUp, CheckedAt: time.Now().UTC()}
	if _, err := store.InsertHeartbeat(context.Background(), old); err != nil {
		t.Fatalf("InsertHeartbeat old: %v", err)
	}
	if _, err := store.InsertHeartbeat(context.Background(), recent); err != nil {
		t.Fatalf("InsertHeartbeat recent: %v", err)
	}

	deleted, err := store.PruneHeartbeats(context.Background(), time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneHeartbeats: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 pruned row, got %d", deleted)
	}

	remaining, err := store.ListHeartbeats(context.Background(), m.ID, 0, 10)
	if err != nil {
		t.Fatalf("ListHeartbeats: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != recent.ID {
		t.Errorf("expected only the recent heartbeat to remain, got %+v", remaining)
	}
}

func TestLastHeartbeats_ReturnsNewestNInDescendingOrder(t *testing.T) {
	store := OpenTestStore(t)
	m := baseTestMonitor(ids.New(), "hb-last")
	if err := store.CreateMonitor(context.Background(), m); err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}
	seqs := insertSeqHeartbeats(t, store, m.ID, 4)

	last, err := store.LastHeartbeats(context.Background(), m.ID, 2)
	if err != nil {
		t.Fatalf("LastHeartbeats: %v", err)
	}
	if len(last) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(last))
	}
	if last[0].Seq != seqs[3] || last[1].Seq != seqs[2] {
		t.Errorf("expected the two newest seqs in descending order, got %d then %d", last[0].Seq, last[1].Seq)
	}
}
