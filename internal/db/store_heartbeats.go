package db

import (
	"database/sql"
	"context"
	"time"
)

// InsertHeartbeat appends one heartbeat and returns the assigned seq. This
// is the only write path for heartbeats; they are append-only.
func (s *Store) InsertHeartbeat(ctx context.Context, h Heartbeat) (int64, error) {
	if s.IsPostgres() {
		var seq int64
		err := s.db.QueryRowContext(ctx, s.rebind(`
			INSERT INTO heartbeats (id, monitor_id, status, response_time_ms, status_code, error_message, checked_at, location_id)
			VALUES (?,?,?,?,?,?,?,?) RETURNING seq
		`), h.ID, h.MonitorID, h.Status, h.ResponseTimeMS, nullIntPtr(h.StatusCode), nullStr(h.ErrorMessage), h.CheckedAt, nullStrPtr(h.LocationID)).Scan(&seq)
		return seq, err
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO heartbeats (id, monitor_id, status, response_time_ms, status_code, error_message, checked_at, location_id)
		VALUES (?,?,?,?,?,?,?,?)
	`), h.ID, h.MonitorID, h.Status, h.ResponseTimeMS, nullIntPtr(h.StatusCode), nullStr(h.ErrorMessage), h.CheckedAt, nullStrPtr(h.LocationID))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListHeartbeats cursor-paginates a monitor's heartbeats. Without `after` it
// returns the newest `limit` rows (descending); with `after` it returns
// strictly greater seq values ascending, up to `limit`.
func (s *Store) ListHeartbeats(ctx context.Context, monitorID string, after int64, limit int) ([]Heartbeat, error) {
	var query string
	var args []any

	if after > 0 {
		query = `SELECT seq, id, monitor_id, status, response_time_ms, status_code, error_message, checked_at, location_id
			FROM heartbeats WHERE monitor_id = ? AND seq > ? ORDER BY seq ASC LIMIT ?`
		args = []any{monitorID, after, limit}
	} else {
		query = `SELECT seq, id, monitor_id, status, response_time_ms, status_code, error_message, checked_at, location_id
			FROM heartbeats WHERE monitor_id = ? ORDER BY seq DESC LIMIT ?`
		args = []any{monitorID, limit}
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Heartbeat
	for rows.Next() {
		h, err := scanHeartbeat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// LastHeartbeats returns the most recent n heartbeats for a monitor, newest
// first — used to reconstruct confirmation state on startup (§9).
func (s *Store) LastHeartbeats(ctx context.Context, monitorID string, n int) ([]Heartbeat, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT seq, id, monitor_id, status, response_time_ms, status_code, error_message, checked_at, location_id
		FROM heartbeats WHERE monitor_id = ? ORDER BY seq DESC LIMIT ?
	`), monitorID, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Heartbeat
	for rows.Next() {
		h, err := scanHeartbeat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// LastHeartbeatPerLocation returns, for each location that reported since
// the given time, its freshest heartbeat — used for multi-location
// consensus.
func (s *Store) LastHeartbeatPerLocation(ctx context.Context, monitorID string, since time.Time) ([]Heartbeat, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT seq, id, monitor_id, status, response_time_ms, status_code, error_message, checked_at, location_id
		FROM heartbeats h
		WHERE monitor_id = ? AND checked_at >= ? AND seq = (
			SELECT MAX(h2.seq) FROM heartbeats h2
			WHERE h2.monitor_id = h.monitor_id
			AND ((h2.location_id IS NULL AND h.location_id IS NULL) OR h2.location_id = h.location_id)
		)
	`), monitorID, since)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Heartbeat
	for rows.Next() {
		h, err := scanHeartbeat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// LastHeartbeatsSince returns every heartbeat for a monitor checked at or
// after `since`, used by SLA computation over a rolling window.
func (s *Store) LastHeartbeatsSince(ctx context.Context, monitorID string, since time.Time) ([]Heartbeat, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT seq, id, monitor_id, status, response_time_ms, status_code, error_message, checked_at, location_id
		FROM heartbeats WHERE monitor_id = ? AND checked_at >= ? ORDER BY seq ASC
	`), monitorID, since)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Heartbeat
	for rows.Next() {
		h, err := scanHeartbeat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// PruneHeartbeats deletes heartbeats older than the retention window.
// Incidents are never touched here.
func (s *Store) PruneHeartbeats(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM heartbeats WHERE checked_at < ?"), olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanHeartbeat(row rowScanner) (*Heartbeat, error) {
	var h Heartbeat
	var statusCode sql.NullInt64
	var errMsg sql.NullString
	var locationID sql.NullString

	if err := row.Scan(&h.Seq, &h.ID, &h.MonitorID, &h.Status, &h.ResponseTimeMS, &statusCode, &errMsg, &h.CheckedAt, &locationID); err != nil {
		return nil, err
	}
	if statusCode.Valid {
		v := int(statusCode.Int64)
		h.StatusCode = &v
	}
	h.ErrorMessage = errMsg.String
	if locationID.Valid {
		v := locationID.String
		h.LocationID = &v
	}
	return &h, nil
}

func nullStrPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
