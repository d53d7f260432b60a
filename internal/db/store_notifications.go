package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

func (s *Store) CreateNotificationChannel(ctx context.Context, c NotificationChannel) error {
	cfg, err := json.Marshal(c.Config)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO notification_channels (id, monitor_id, name, channel_type, config_json, is_enabled, created_at)
		VALUES (?,?,?,?,?,?,?)
	`), c.ID, c.MonitorID, c.Name, c.ChannelType, string(cfg), c.IsEnabled, c.CreatedAt)
	return err
}

func (s *Store) UpdateNotificationChannel(ctx context.Context, c NotificationChannel) error {
	cfg, err := json.Marshal(c.Config)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE notification_channels SET name=?, channel_type=?, config_json=?, is_enabled=? WHERE id=?
	`), c.Name, c.ChannelType, string(cfg), c.IsEnabled, c.ID)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

func (s *Store) DeleteNotificationChannel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM notification_channels WHERE id=?"), id)
	if err != nil {
		return err
	}
	return mustAffectRow(res, ErrNotFound)
}

func (s *Store) GetNotificationChannel(ctx context.Context, id string) (*NotificationChannel, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(notificationSelectCols+" FROM notification_channels WHERE id=?"), id)
	c, err := scanNotificationChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListNotificationChannels returns the channels attached to a monitor,
// only the enabled ones when enabledOnly is set (as the notification
// dispatcher fan-out does).
func (s *Store) ListNotificationChannels(ctx context.Context, monitorID string, enabledOnly bool) ([]NotificationChannel, error) {
	query := notificationSelectCols + " FROM notification_channels WHERE monitor_id=?"
	args := []any{monitorID}
	if enabledOnly {
		query += " AND is_enabled=?"
		args = append(args, true)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []NotificationChannel
	for rows.Next() {
		c, err := scanNotificationChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

const notificationSelectCols = `SELECT id, monitor_id, name, channel_type, config_json, is_enabled, created_at`

func scanNotificationChannel(row rowScanner) (*NotificationChannel, error) {
	var c NotificationChannel
	var cfgJSON string
	if err := row.Scan(&c.ID, &c.MonitorID, &c.Name, &c.ChannelType, &cfgJSON, &c.IsEnabled, &c.CreatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(cfgJSON), &c.Config)
	return &c, nil
}
