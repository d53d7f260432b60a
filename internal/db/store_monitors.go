package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("db: not found")

// CreateMonitor inserts a new monitor. The caller is responsible for hashing
// the manage key before this call; Monitor.ManageKeyHash is stored as-is.
func (s *Store) CreateMonitor(ctx context.Context, m Monitor) error {
	headers, err := json.Marshal(nonNilHeaders(m.Headers))
	if err != nil {
		return err
	}
	tags, err := json.Marshal(nonNilTags(m.Tags))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO monitors (
			id, name, target, monitor_type, method, expected_status, body_contains, headers_json,
			follow_redirects, dns_record_type, dns_expected, interval_seconds, timeout_ms,
			confirmation_threshold, response_time_threshold_ms, is_public, is_paused, group_name,
			tags_json, sla_target, sla_period_days, consensus_threshold, manage_key_hash, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`), m.ID, m.Name, m.Target, m.MonitorType, nullStr(m.Method), nullIntFrom(m.ExpectedStatus), nullStr(m.BodyContains),
		string(headers), m.FollowRedirects, nullStr(m.DNSRecordType), nullStr(m.DNSExpected),
		m.IntervalSeconds, m.TimeoutMS, m.ConfirmationThreshold, nullIntPtr(m.ResponseTimeThresholdMS),
		m.IsPublic, m.IsPaused, nullStr(m.GroupName), string(tags), nullFloatPtr(m.SLATarget),
		nullIntPtrFromInt(m.SLAPeriodDays), nullIntPtrFromInt(m.ConsensusThreshold), m.ManageKeyHash, m.CreatedAt, m.UpdatedAt)
	return err
}

// UpdateMonitor replaces the mutable fields of a monitor (not its manage key
// or id).
func (s *Store) UpdateMonitor(ctx context.Context, m Monitor) error {
	headers, err := json.Marshal(nonNilHeaders(m.Headers))
	if err != nil {
		return err
	}
	tags, err := json.Marshal(nonNilTags(m.Tags))
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE monitors SET
			name=?, target=?, monitor_type=?, method=?, expected_status=?, body_contains=?, headers_json=?,
			follow_redirects=?, dns_record_type=?, dns_expected=?, interval_seconds=?, timeout_ms=?,
			confirmation_threshold=?, response_time_threshold_ms=?, is_public=?, group_name=?,
			tags_json=?, sla_target=?, sla_period_days=?, consensus_threshold=?, updated_at=?
		WHERE id=?
	`), m.Name, m.Target, m.MonitorType, nullStr(m.Method), nullIntFrom(m.ExpectedStatus), nullStr(m.BodyContains),
		string(headers), m.FollowRedirects, nullStr(m.DNSRecordType), nullStr(m.DNSExpected),
		m.IntervalSeconds, m.TimeoutMS, m.ConfirmationThreshold, nullIntPtr(m.ResponseTimeThresholdMS),
		m.IsPublic, nullStr(m.GroupName), string(tags), nullFloatPtr(m.SLATarget),
		nullIntPtrFromInt(m.SLAPeriodDays), nullIntPtrFromInt(m.ConsensusThreshold), m.UpdatedAt, m.ID)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

func (s *Store) SetMonitorPaused(ctx context.Context, id string, paused bool) error {
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE monitors SET is_paused=?, updated_at=? WHERE id=?"), paused, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

func (s *Store) DeleteMonitor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM monitors WHERE id=?"), id)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

func (s *Store) GetMonitor(ctx context.Context, id string) (*Monitor, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(monitorSelectCols+" FROM monitors WHERE id=?"), id)
	m, err := scanMonitor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// ListMonitorsFilter narrows ListMonitors' results; zero values mean
// "unfiltered".
type ListMonitorsFilter struct {
	PublicOnly  bool
	Search      string
	Status      string // matched by caller against live status, not stored here
	Tag         string
	IncludePaused bool
}

func (s *Store) ListMonitors(ctx context.Context, f ListMonitorsFilter) ([]Monitor, error) {
	query := monitorSelectCols + " FROM monitors WHERE 1=1"
	var args []any

	if f.PublicOnly {
		query += " AND is_public = ?"
		args = append(args, true)
	}
	if !f.IncludePaused {
		query += " AND is_paused = ?"
		args = append(args, false)
	}
	if f.Search != "" {
		query += " AND (name LIKE ? OR target LIKE ?)"
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if f.Tag != "" {
		query += " AND tags_json LIKE ?"
		args = append(args, "%\""+f.Tag+"\"%")
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ListDueMonitors returns all non-paused monitors; the scheduler computes
// due-ness itself from next_due_at kept in memory.
func (s *Store) ListDueMonitors(ctx context.Context) ([]Monitor, error) {
	return s.ListMonitors(ctx, ListMonitorsFilter{IncludePaused: false})
}

func (s *Store) GetMonitorManageKeyHash(ctx context.Context, id string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT manage_key_hash FROM monitors WHERE id=?"), id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return hash, err
}

const monitorSelectCols = `SELECT id, name, target, monitor_type, method, expected_status, body_contains, headers_json,
	follow_redirects, dns_record_type, dns_expected, interval_seconds, timeout_ms, confirmation_threshold,
	response_time_threshold_ms, is_public, is_paused, group_name, tags_json, sla_target, sla_period_days,
	consensus_threshold, manage_key_hash, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMonitor(row rowScanner) (*Monitor, error) {
	var m Monitor
	var method, bodyContains, dnsRecordType, dnsExpected, groupName sql.NullString
	var expectedStatus, slaPeriodDays, consensusThreshold sql.NullInt64
	var responseTimeThreshold sql.NullInt64
	var slaTarget sql.NullFloat64
	var headersJSON, tagsJSON string

	if err := row.Scan(&m.ID, &m.Name, &m.Target, &m.MonitorType, &method, &expectedStatus, &bodyContains, &headersJSON,
		&m.FollowRedirects, &dnsRecordType, &dnsExpected, &m.IntervalSeconds, &m.TimeoutMS, &m.ConfirmationThreshold,
		&responseTimeThreshold, &m.IsPublic, &m.IsPaused, &groupName, &tagsJSON, &slaTarget, &slaPeriodDays,
		&consensusThreshold, &m.ManageKeyHash, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}

	m.Method = method.String
	m.BodyContains = bodyContains.String
	m.DNSRecordType = dnsRecordType.String
	m.DNSExpected = dnsExpected.String
	m.GroupName = groupName.String
	if expectedStatus.Valid {
		m.ExpectedStatus = int(expectedStatus.Int64)
	}
	if responseTimeThreshold.Valid {
		v := int(responseTimeThreshold.Int64)
		m.ResponseTimeThresholdMS = &v
	}
	if slaTarget.Valid {
		m.SLATarget = &slaTarget.Float64
	}
	if slaPeriodDays.Valid {
		v := int(slaPeriodDays.Int64)
		m.SLAPeriodDays = &v
	}
	if consensusThreshold.Valid {
		v := int(consensusThreshold.Int64)
		m.ConsensusThreshold = &v
	}
	_ = json.Unmarshal([]byte(headersJSON), &m.Headers)
	_ = json.Unmarshal([]byte(tagsJSON), &m.Tags)

	return &m, nil
}

func nonNilHeaders(h map[string]string) map[string]string {
	if h == nil {
		return map[string]string{}
	}
	return h
}

func nonNilTags(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}

func mustAffectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullIntFrom(i int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(i), Valid: i != 0}
}

func nullIntPtr(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullIntPtrFromInt(i *int) sql.NullInt64 {
	return nullIntPtr(i)
}

func nullFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
