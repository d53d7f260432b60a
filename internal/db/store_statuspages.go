package db

import (
	"context"
	"database/sql"
	"errors"
)

func (s *Store) CreateStatusPage(ctx context.Context, p StatusPage) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO status_pages (id, slug, title, description, logo_url, custom_domain, is_public, manage_key_hash, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
	`), p.ID, p.Slug, p.Title, nullStr(p.Description), nullStr(p.LogoURL), nullStr(p.CustomDomain), p.IsPublic, p.ManageKeyHash, p.CreatedAt, p.UpdatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// ErrConflict signals a unique-constraint violation on a user-chosen value
// (status page slug or custom domain).
var ErrConflict = errors.New("db: conflicting value")

func (s *Store) UpdateStatusPage(ctx context.Context, p StatusPage) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE status_pages SET slug=?, title=?, description=?, logo_url=?, custom_domain=?, is_public=?, updated_at=?
		WHERE id=?
	`), p.Slug, p.Title, nullStr(p.Description), nullStr(p.LogoURL), nullStr(p.CustomDomain), p.IsPublic, p.UpdatedAt, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

func (s *Store) DeleteStatusPage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM status_pages WHERE id=?"), id)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

func (s *Store) GetStatusPage(ctx context.Context, id string) (*StatusPage, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(statusPageSelectCols+" FROM status_pages WHERE id=?"), id)
	return scanStatusPageOrNotFound(row)
}

func (s *Store) GetStatusPageBySlug(ctx context.Context, slug string) (*StatusPage, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(statusPageSelectCols+" FROM status_pages WHERE slug=?"), slug)
	return scanStatusPageOrNotFound(row)
}

func (s *Store) ListStatusPages(ctx context.Context) ([]StatusPage, error) {
	rows, err := s.db.QueryContext(ctx, statusPageSelectCols+" FROM status_pages ORDER BY created_at ASC")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []StatusPage
	for rows.Next() {
		p, err := scanStatusPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) AddStatusPageMonitor(ctx context.Context, pageID, monitorID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind("INSERT INTO status_page_monitors (page_id, monitor_id) VALUES (?,?)"), pageID, monitorID)
	return err
}

func (s *Store) RemoveStatusPageMonitor(ctx context.Context, pageID, monitorID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM status_page_monitors WHERE page_id=? AND monitor_id=?"), pageID, monitorID)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

// StatusPageMonitors returns the monitors attached to a status page, in the
// order they were added.
func (s *Store) StatusPageMonitors(ctx context.Context, pageID string) ([]Monitor, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(monitorSelectColsJoined+` FROM monitors m
		JOIN status_page_monitors spm ON spm.monitor_id = m.id
		WHERE spm.page_id = ? ORDER BY m.created_at ASC`), pageID)
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

const monitorSelectColsJoined = `SELECT m.id, m.name, m.target, m.monitor_type, m.method, m.expected_status, m.body_contains, m.headers_json,
	m.follow_redirects, m.dns_record_type, m.dns_expected, m.interval_seconds, m.timeout_ms, m.confirmation_threshold,
	m.response_time_threshold_ms, m.is_public, m.is_paused, m.group_name, m.tags_json, m.sla_target, m.sla_period_days,
	m.consensus_threshold, m.manage_key_hash, m.created_at, m.updated_at`

const statusPageSelectCols = `SELECT id, slug, title, description, logo_url, custom_domain, is_public, manage_key_hash, created_at, updated_at`

func scanStatusPageOrNotFound(row rowScanner) (*StatusPage, error) {
	p, err := scanStatusPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func scanStatusPage(row rowScanner) (*StatusPage, error) {
	var p StatusPage
	var description, logoURL, customDomain sql.NullString
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &description, &logoURL, &customDomain, &p.IsPublic, &p.ManageKeyHash, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.LogoURL = logoURL.String
	p.CustomDomain = customDomain.String
	return &p, nil
}
