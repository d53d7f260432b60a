package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func (s *Store) CreateCheckLocation(ctx context.Context, l CheckLocation) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO check_locations (id, name, region, probe_key_hash, is_disabled, created_at)
		VALUES (?,?,?,?,?,?)
	`), l.ID, l.Name, nullStr(l.Region), l.ProbeKeyHash, l.IsDisabled, l.CreatedAt)
	return err
}

func (s *Store) SetCheckLocationDisabled(ctx context.Context, id string, disabled bool) error {
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE check_locations SET is_disabled=? WHERE id=?"), disabled, id)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

func (s *Store) DeleteCheckLocation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM check_locations WHERE id=?"), id)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

func (s *Store) GetCheckLocation(ctx context.Context, id string) (*CheckLocation, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(locationSelectCols+" FROM check_locations WHERE id=?"), id)
	l, err := scanCheckLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

func (s *Store) GetCheckLocationKeyHash(ctx context.Context, id string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT probe_key_hash FROM check_locations WHERE id=?"), id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return hash, err
}

func (s *Store) ListCheckLocations(ctx context.Context) ([]CheckLocation, error) {
	rows, err := s.db.QueryContext(ctx, locationSelectCols+" FROM check_locations ORDER BY created_at ASC")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []CheckLocation
	for rows.Next() {
		l, err := scanCheckLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// TouchCheckLocation records a heartbeat-bearing check-in from a remote
// probe location.
func (s *Store) TouchCheckLocation(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE check_locations SET last_seen_at=? WHERE id=?"), at, id)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

const locationSelectCols = `SELECT id, name, region, probe_key_hash, last_seen_at, is_disabled, created_at`

func scanCheckLocation(row rowScanner) (*CheckLocation, error) {
	var l CheckLocation
	var region sql.NullString
	var lastSeen sql.NullTime
	if err := row.Scan(&l.ID, &l.Name, &region, &l.ProbeKeyHash, &lastSeen, &l.IsDisabled, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Region = region.String
	if lastSeen.Valid {
		l.LastSeenAt = &lastSeen.Time
	}
	return &l, nil
}
