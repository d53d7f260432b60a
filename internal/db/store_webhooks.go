package db

import (
	"context"
	"database/sql"
)

// RecordWebhookDelivery appends one attempt of a delivery group.
func (s *Store) RecordWebhookDelivery(ctx context.Context, d WebhookDelivery) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO webhook_deliveries (
			id, monitor_id, notification_id, delivery_group, attempt_number, url, event_type,
			status, status_code, error_message, response_time_ms, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`), d.ID, d.MonitorID, d.NotificationID, d.DeliveryGroup, d.AttemptNumber, d.URL, d.EventType,
		d.Status, nullIntPtr(d.StatusCode), nullStr(d.ErrorMessage), nullInt64Ptr(d.ResponseTimeMS), d.CreatedAt)
	return err
}

// ListWebhookDeliveries returns a monitor's delivery attempts, newest
// first, for the audit/debugging surface.
func (s *Store) ListWebhookDeliveries(ctx context.Context, monitorID string, limit int) ([]WebhookDelivery, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, monitor_id, notification_id, delivery_group, attempt_number, url, event_type,
			status, status_code, error_message, response_time_ms, created_at
		FROM webhook_deliveries WHERE monitor_id=? ORDER BY created_at DESC LIMIT ?
	`), monitorID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []WebhookDelivery
	for rows.Next() {
		d, err := scanWebhookDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *Store) ListDeliveryGroup(ctx context.Context, deliveryGroup string) ([]WebhookDelivery, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, monitor_id, notification_id, delivery_group, attempt_number, url, event_type,
			status, status_code, error_message, response_time_ms, created_at
		FROM webhook_deliveries WHERE delivery_group=? ORDER BY attempt_number ASC
	`), deliveryGroup)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []WebhookDelivery
	for rows.Next() {
		d, err := scanWebhookDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanWebhookDelivery(row rowScanner) (*WebhookDelivery, error) {
	var d WebhookDelivery
	var statusCode sql.NullInt64
	var errMsg sql.NullString
	var responseTime sql.NullInt64

	if err := row.Scan(&d.ID, &d.MonitorID, &d.NotificationID, &d.DeliveryGroup, &d.AttemptNumber, &d.URL, &d.EventType,
		&d.Status, &statusCode, &errMsg, &responseTime, &d.CreatedAt); err != nil {
		return nil, err
	}
	if statusCode.Valid {
		v := int(statusCode.Int64)
		d.StatusCode = &v
	}
	d.ErrorMessage = errMsg.String
	if responseTime.Valid {
		v := responseTime.Int64
		d.ResponseTimeMS = &v
	}
	return &d, nil
}

func nullInt64Ptr(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
