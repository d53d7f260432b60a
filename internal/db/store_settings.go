package db

import (
	"context"
	"database/sql"
)

func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	var out Settings
	var logoURL sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT brand_name, brand_logo_url FROM settings WHERE id=1").Scan(&out.BrandName, &logoURL)
	if err != nil {
		return Settings{}, err
	}
	out.BrandLogoURL = logoURL.String
	return out, nil
}

func (s *Store) UpdateSettings(ctx context.Context, set Settings) error {
	_, err := s.db.ExecContext(ctx, s.rebind("UPDATE settings SET brand_name=?, brand_logo_url=? WHERE id=1"), set.BrandName, nullStr(set.BrandLogoURL))
	return err
}
