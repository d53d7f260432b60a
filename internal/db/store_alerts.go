package db

import (
	"context"
	"database/sql"
	"errors"
)

// GetAlertRule returns the reminder/escalation ladder configured for a
// monitor, or ErrNotFound if none was set (the caller then applies no
// ladder — a single initial notification only).
func (s *Store) GetAlertRule(ctx context.Context, monitorID string) (*AlertRule, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT monitor_id, repeat_interval_minutes, max_repeats, escalation_after_minutes
		FROM alert_rules WHERE monitor_id=?
	`), monitorID)

	var r AlertRule
	err := row.Scan(&r.MonitorID, &r.RepeatIntervalMinutes, &r.MaxRepeats, &r.EscalationAfterMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertAlertRule replaces a monitor's ladder configuration.
func (s *Store) UpsertAlertRule(ctx context.Context, r AlertRule) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO alert_rules (monitor_id, repeat_interval_minutes, max_repeats, escalation_after_minutes)
		VALUES (?,?,?,?)
		ON CONFLICT (monitor_id) DO UPDATE SET
			repeat_interval_minutes=excluded.repeat_interval_minutes,
			max_repeats=excluded.max_repeats,
			escalation_after_minutes=excluded.escalation_after_minutes
	`), r.MonitorID, r.RepeatIntervalMinutes, r.MaxRepeats, r.EscalationAfterMinutes)
	return err
}

func (s *Store) DeleteAlertRule(ctx context.Context, monitorID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM alert_rules WHERE monitor_id=?"), monitorID)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

// RecordAlertLog appends one ladder dispatch (reminder or escalation) so
// restarts can recompute how many reminders have already fired for an
// incident.
func (s *Store) RecordAlertLog(ctx context.Context, e AlertLogEntry) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO alert_log (id, monitor_id, incident_id, kind, repeat_number, created_at)
		VALUES (?,?,?,?,?,?)
	`), e.ID, e.MonitorID, e.IncidentID, e.Kind, nullIntPtr(e.RepeatNumber), e.CreatedAt)
	return err
}

// ListAlertLog returns every ladder dispatch recorded for an incident,
// oldest first.
func (s *Store) ListAlertLog(ctx context.Context, incidentID string) ([]AlertLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, monitor_id, incident_id, kind, repeat_number, created_at FROM alert_log
		WHERE incident_id=? ORDER BY created_at ASC
	`), incidentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []AlertLogEntry
	for rows.Next() {
		var e AlertLogEntry
		var repeatNumber sql.NullInt64
		if err := rows.Scan(&e.ID, &e.MonitorID, &e.IncidentID, &e.Kind, &repeatNumber, &e.CreatedAt); err != nil {
			return nil, err
		}
		if repeatNumber.Valid {
			v := int(repeatNumber.Int64)
			e.RepeatNumber = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
