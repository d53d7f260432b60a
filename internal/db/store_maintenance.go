package db

import (
	"context"
	"time"
)

func (s *Store) CreateMaintenanceWindow(ctx context.Context, w MaintenanceWindow) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO maintenance_windows (id, monitor_id, title, starts_at, ends_at, created_at)
		VALUES (?,?,?,?,?,?)
	`), w.ID, w.MonitorID, w.Title, w.StartsAt, w.EndsAt, w.CreatedAt)
	return err
}

func (s *Store) DeleteMaintenanceWindow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM maintenance_windows WHERE id=?"), id)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

func (s *Store) ListMaintenanceWindows(ctx context.Context, monitorID string) ([]MaintenanceWindow, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, monitor_id, title, starts_at, ends_at, created_at FROM maintenance_windows
		WHERE monitor_id=? ORDER BY starts_at DESC
	`), monitorID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []MaintenanceWindow
	for rows.Next() {
		w, err := scanMaintenanceWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// ActiveMaintenanceWindows returns every window covering `at`, across all
// monitors — used by remote probe ingest to decide whether a reported
// heartbeat falls inside maintenance.
func (s *Store) ActiveMaintenanceWindows(ctx context.Context, at time.Time) ([]MaintenanceWindow, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, monitor_id, title, starts_at, ends_at, created_at FROM maintenance_windows
		WHERE starts_at <= ? AND ends_at > ?
	`), at, at)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []MaintenanceWindow
	for rows.Next() {
		w, err := scanMaintenanceWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func scanMaintenanceWindow(row rowScanner) (*MaintenanceWindow, error) {
	var w MaintenanceWindow
	if err := row.Scan(&w.ID, &w.MonitorID, &w.Title, &w.StartsAt, &w.EndsAt, &w.CreatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}
