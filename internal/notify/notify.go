// Package notify dispatches incident and monitor-transition events to a
// monitor's configured channels: webhooks with bounded retry, and email
// via SMTP when configured. It never blocks the caller —
// Enqueue hands off to a worker goroutine, mirroring the queue-based
// dispatcher the rest of this codebase uses for fire-and-forget work.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/config"
	"github.com/watchpost/watchpost/internal/db"
	"github.com/watchpost/watchpost/internal/metrics"
)

// EventKind mirrors the notification-triggering transitions.
type EventKind string

const (
	EventIncidentCreated  EventKind = "incident.created"
	EventIncidentResolved EventKind = "incident.resolved"
	EventMonitorDegraded  EventKind = "monitor.degraded"
	EventMonitorRecovered EventKind = "monitor.recovered"
	EventIncidentReminder EventKind = "incident.reminder"
	EventIncidentEscalated EventKind = "incident.escalated"
)

// Dispatch is one notification job: a monitor transition plus enough
// incident context to render every supported payload shape.
type Dispatch struct {
	Event       EventKind
	Monitor     db.Monitor
	Incident    db.Incident
	Message     string
	At          time.Time
}

type Service struct {
	store   *db.Store
	cfg     config.Config
	log     zerolog.Logger
	queue   chan Dispatch
	metrics *metrics.Metrics
}

func NewService(store *db.Store, cfg config.Config, m *metrics.Metrics, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		cfg:     cfg,
		log:     log,
		queue:   make(chan Dispatch, 256),
		metrics: m,
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
}

// Enqueue is non-blocking; a full queue drops the notification rather than
// stalling the incident manager that produced it.
func (s *Service) Enqueue(d Dispatch) {
	select {
	case s.queue <- d:
	default:
		s.log.Warn().Str("monitor_id", d.Monitor.ID).Str("event", string(d.Event)).Msg("notification queue full, dropping")
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.queue:
			s.dispatch(ctx, d)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, d Dispatch) {
	channels, err := s.store.ListNotificationChannels(ctx, d.Monitor.ID, true)
	if err != nil {
		s.log.Error().Err(err).Str("monitor_id", d.Monitor.ID).Msg("failed to load notification channels")
		return
	}

	deliveryGroup := uuid.New().String()
	for _, ch := range channels {
		switch ch.ChannelType {
		case db.ChannelTypeWebhook:
			s.dispatchWebhook(ctx, ch, d, deliveryGroup)
		case db.ChannelTypeEmail:
			s.dispatchEmail(ctx, ch, d)
		}
	}
}

type webhookPayload struct {
	Event     string `json:"event"`
	Monitor   string `json:"monitor_name"`
	MonitorID string `json:"monitor_id"`
	Incident  string `json:"incident_id,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type chatPayload struct {
	Text        string `json:"text"`
	MonitorName string `json:"monitor_name"`
	Event       string `json:"event"`
	Timestamp   string `json:"timestamp"`
}

// dispatchWebhook performs up to three attempts at t≈0/2/4s with a 10s
// per-attempt timeout, recording every attempt in webhook_deliveries.
// The DB write for each attempt happens after the HTTP call returns,
// never while holding a lock across the outbound request.
func (s *Service) dispatchWebhook(ctx context.Context, ch db.NotificationChannel, d Dispatch, deliveryGroup string) {
	url, _ := ch.Config["url"].(string)
	if url == "" {
		s.recordDelivery(ctx, ch, d, deliveryGroup, 1, 0, "", fmt.Errorf("webhook channel missing url"))
		return
	}

	body := s.renderPayload(ch, d)

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 2)
	attempt := 0
	_ = backoff.Retry(func() error {
		attempt++
		reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		start := time.Now()
		statusCode, err := postJSON(reqCtx, url, body)
		elapsed := time.Since(start).Milliseconds()
		s.recordDelivery(ctx, ch, d, deliveryGroup, attempt, statusCode, elapsed, err)
		if err != nil {
			return err
		}
		if statusCode < 200 || statusCode >= 300 {
			return fmt.Errorf("webhook returned status %d", statusCode)
		}
		return nil
	}, policy)
}

func (s *Service) renderPayload(ch db.NotificationChannel, d Dispatch) []byte {
	if format, _ := ch.Config["format"].(string); format == "chat" {
		p := chatPayload{
			Text:        fmt.Sprintf("[%s] %s: %s", d.Event, d.Monitor.Name, d.Message),
			MonitorName: d.Monitor.Name,
			Event:       string(d.Event),
			Timestamp:   d.At.UTC().Format(time.RFC3339),
		}
		out, _ := json.Marshal(p)
		return out
	}

	p := webhookPayload{
		Event:     string(d.Event),
		Monitor:   d.Monitor.Name,
		MonitorID: d.Monitor.ID,
		Incident:  d.Incident.ID,
		Message:   d.Message,
		Timestamp: d.At.UTC().Format(time.RFC3339),
	}
	out, _ := json.Marshal(p)
	return out
}

func postJSON(ctx context.Context, url string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode, nil
}

func (s *Service) recordDelivery(ctx context.Context, ch db.NotificationChannel, d Dispatch, deliveryGroup string, attempt, statusCode int, responseTimeMS int64, sendErr error) {
	status := db.DeliveryStatusSuccess
	errMsg := ""
	if sendErr != nil {
		status = db.DeliveryStatusFailure
		errMsg = sendErr.Error()
	}

	url, _ := ch.Config["url"].(string)
	var code *int
	if statusCode != 0 {
		code = &statusCode
	}
	rtMS := &responseTimeMS

	delivery := db.WebhookDelivery{
		ID:             uuid.New().String(),
		MonitorID:      d.Monitor.ID,
		NotificationID: ch.ID,
		DeliveryGroup:  deliveryGroup,
		AttemptNumber:  attempt,
		URL:            url,
		EventType:      string(d.Event),
		Status:         status,
		StatusCode:     code,
		ErrorMessage:   errMsg,
		ResponseTimeMS: rtMS,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.RecordWebhookDelivery(ctx, delivery); err != nil {
		s.log.Error().Err(err).Msg("failed to record webhook delivery")
	}
	if s.metrics != nil {
		s.metrics.NotificationsTotal.WithLabelValues(db.ChannelTypeWebhook, status).Inc()
	}
}

// dispatchEmail sends (or records the rejection of) a single email per
// event — there is no retry ladder for email.
func (s *Service) dispatchEmail(ctx context.Context, ch db.NotificationChannel, d Dispatch) {
	to, _ := ch.Config["to"].(string)

	if !s.cfg.EmailConfigured() {
		s.log.Warn().Str("monitor_id", d.Monitor.ID).Msg("email channel configured but SMTP is not; recording failure")
		_ = s.store.RecordWebhookDelivery(ctx, db.WebhookDelivery{
			ID:             uuid.New().String(),
			MonitorID:      d.Monitor.ID,
			NotificationID: ch.ID,
			DeliveryGroup:  uuid.New().String(),
			AttemptNumber:  1,
			URL:            to,
			EventType:      string(d.Event),
			Status:         db.DeliveryStatusFailure,
			ErrorMessage:   "smtp not configured",
			CreatedAt:      time.Now().UTC(),
		})
		if s.metrics != nil {
			s.metrics.NotificationsTotal.WithLabelValues(db.ChannelTypeEmail, db.DeliveryStatusFailure).Inc()
		}
		return
	}

	subject := fmt.Sprintf("[Watchpost] %s: %s", d.Monitor.Name, d.Event)
	msg := fmt.Sprintf("Subject: %s\r\n\r\n%s\r\n", subject, d.Message)

	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	err := smtp.SendMail(addr, auth, s.cfg.SMTPFrom, []string{to}, []byte(msg))
	status := db.DeliveryStatusSuccess
	errMsg := ""
	if err != nil {
		status = db.DeliveryStatusFailure
		errMsg = err.Error()
	}

	_ = s.store.RecordWebhookDelivery(ctx, db.WebhookDelivery{
		ID:             uuid.New().String(),
		MonitorID:      d.Monitor.ID,
		NotificationID: ch.ID,
		DeliveryGroup:  uuid.New().String(),
		AttemptNumber:  1,
		URL:            to,
		EventType:      string(d.Event),
		Status:         status,
		ErrorMessage:   errMsg,
		CreatedAt:      time.Now().UTC(),
	})
	if s.metrics != nil {
		s.metrics.NotificationsTotal.WithLabelValues(db.ChannelTypeEmail, status).Inc()
	}
}

