package db

import (
	"context"
	"database/sql"
	"errors"
)

// ErrIncidentAlreadyOpen surfaces the unique partial index violation when a
// second open incident is attempted for a monitor that already has one.
var ErrIncidentAlreadyOpen = errors.New("db: monitor already has an open incident")

// OpenIncident inserts a new unresolved incident. The unique partial index
// on (monitor_id) WHERE resolved_at IS NULL enforces the invariant at the
// database layer even under concurrent writers; a conflict here is mapped
// to ErrIncidentAlreadyOpen rather than bubbled up as a generic SQL error.
func (s *Store) OpenIncident(ctx context.Context, inc Incident) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO incidents (id, monitor_id, started_at, cause, delivery_group, created_at)
		VALUES (?,?,?,?,?,?)
	`), inc.ID, inc.MonitorID, inc.StartedAt, nullStr(inc.Cause), nullStr(inc.DeliveryGroup), inc.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrIncidentAlreadyOpen
	}
	return err
}

// ResolveIncident stamps resolved_at on a specific open incident.
func (s *Store) ResolveIncident(ctx context.Context, id string, resolvedAt sql.NullTime) error {
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE incidents SET resolved_at=? WHERE id=? AND resolved_at IS NULL"), resolvedAt, id)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

// GetOpenIncident returns the open incident for a monitor, or ErrNotFound.
func (s *Store) GetOpenIncident(ctx context.Context, monitorID string) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(incidentSelectCols+" FROM incidents WHERE monitor_id=? AND resolved_at IS NULL"), monitorID)
	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inc, err
}

func (s *Store) GetIncident(ctx context.Context, id string) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(incidentSelectCols+" FROM incidents WHERE id=?"), id)
	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inc, err
}

// ListIncidents returns a monitor's incidents newest-first, optionally
// restricted to still-open ones.
func (s *Store) ListIncidents(ctx context.Context, monitorID string, openOnly bool, limit int) ([]Incident, error) {
	query := incidentSelectCols + " FROM incidents WHERE monitor_id=?"
	args := []any{monitorID}
	if openOnly {
		query += " AND resolved_at IS NULL"
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

// AllOpenIncidents reconstructs in-memory incident state at startup.
func (s *Store) AllOpenIncidents(ctx context.Context) ([]Incident, error) {
	rows, err := s.db.QueryContext(ctx, incidentSelectCols+" FROM incidents WHERE resolved_at IS NULL")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

// AcknowledgeIncident writes the acknowledgement only if one is not already
// recorded — the first acknowledgement wins; later calls should instead add
// an incident note.
func (s *Store) AcknowledgeIncident(ctx context.Context, id, actor string, at sql.NullTime) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE incidents SET acknowledged_at=?, acknowledged_by=?
		WHERE id=? AND acknowledged_at IS NULL
	`), at, actor, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) AddIncidentNote(ctx context.Context, note IncidentNote) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO incident_notes (id, incident_id, author, body, created_at)
		VALUES (?,?,?,?,?)
	`), note.ID, note.IncidentID, nullStr(note.Author), note.Body, note.CreatedAt)
	return err
}

func (s *Store) ListIncidentNotes(ctx context.Context, incidentID string) ([]IncidentNote, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, incident_id, author, body, created_at FROM incident_notes
		WHERE incident_id=? ORDER BY created_at ASC
	`), incidentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []IncidentNote
	for rows.Next() {
		var n IncidentNote
		var author sql.NullString
		if err := rows.Scan(&n.ID, &n.IncidentID, &author, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Author = author.String
		out = append(out, n)
	}
	return out, rows.Err()
}

const incidentSelectCols = `SELECT id, monitor_id, started_at, resolved_at, cause, acknowledged_at, acknowledged_by, delivery_group, created_at`

func scanIncident(row rowScanner) (*Incident, error) {
	var inc Incident
	var resolvedAt, ackAt sql.NullTime
	var cause, ackBy, deliveryGroup sql.NullString

	if err := row.Scan(&inc.ID, &inc.MonitorID, &inc.StartedAt, &resolvedAt, &cause, &ackAt, &ackBy, &deliveryGroup, &inc.CreatedAt); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		inc.ResolvedAt = &resolvedAt.Time
	}
	if ackAt.Valid {
		inc.AcknowledgedAt = &ackAt.Time
	}
	inc.Cause = cause.String
	inc.AcknowledgedBy = ackBy.String
	inc.DeliveryGroup = deliveryGroup.String
	return &inc, nil
}

func isUniqueViolation(err error) bool {
	return containsAny(err.Error(), "UNIQUE constraint failed", "duplicate key value violates unique constraint")
}
