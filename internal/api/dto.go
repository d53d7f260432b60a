package api

import (
	"time"

	"github.com/watchpost/watchpost/internal/db"
)

// monitorDTO is a monitor as returned to clients — never carries the
// manage key hash.
type monitorDTO struct {
	ID                      string            `json:"id"`
	Name                    string            `json:"name"`
	Target                  string            `json:"target"`
	MonitorType             string            `json:"monitor_type"`
	Method                  string            `json:"method,omitempty"`
	ExpectedStatus          int               `json:"expected_status,omitempty"`
	BodyContains            string            `json:"body_contains,omitempty"`
	Headers                 map[string]string `json:"headers,omitempty"`
	FollowRedirects         bool              `json:"follow_redirects"`
	DNSRecordType           string            `json:"dns_record_type,omitempty"`
	DNSExpected             string            `json:"dns_expected,omitempty"`
	IntervalSeconds         int               `json:"interval_seconds"`
	TimeoutMS               int               `json:"timeout_ms"`
	ConfirmationThreshold   int               `json:"confirmation_threshold"`
	ResponseTimeThresholdMS *int              `json:"response_time_threshold_ms,omitempty"`
	IsPublic                bool              `json:"is_public"`
	IsPaused                bool              `json:"is_paused"`
	GroupName               string            `json:"group_name,omitempty"`
	Tags                    []string          `json:"tags,omitempty"`
	SLATarget               *float64          `json:"sla_target,omitempty"`
	SLAPeriodDays           *int              `json:"sla_period_days,omitempty"`
	ConsensusThreshold      *int              `json:"consensus_threshold,omitempty"`
	CreatedAt               time.Time         `json:"created_at"`
	UpdatedAt               time.Time         `json:"updated_at"`
}

func toMonitorDTO(m db.Monitor) monitorDTO {
	return monitorDTO{
		ID: m.ID, Name: m.Name, Target: m.Target, MonitorType: m.MonitorType,
		Method: m.Method, ExpectedStatus: m.ExpectedStatus, BodyContains: m.BodyContains,
		Headers: m.Headers, FollowRedirects: m.FollowRedirects,
		DNSRecordType: m.DNSRecordType, DNSExpected: m.DNSExpected,
		IntervalSeconds: m.IntervalSeconds, TimeoutMS: m.TimeoutMS,
		ConfirmationThreshold: m.ConfirmationThreshold, ResponseTimeThresholdMS: m.ResponseTimeThresholdMS,
		IsPublic: m.IsPublic, IsPaused: m.IsPaused, GroupName: m.GroupName, Tags: m.Tags,
		SLATarget: m.SLATarget, SLAPeriodDays: m.SLAPeriodDays, ConsensusThreshold: m.ConsensusThreshold,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func toMonitorDTOs(ms []db.Monitor) []monitorDTO {
	out := make([]monitorDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMonitorDTO(m))
	}
	return out
}

type heartbeatDTO struct {
	Seq            int64     `json:"seq"`
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	StatusCode     *int      `json:"status_code,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
	LocationID     *string   `json:"location_id,omitempty"`
}

func toHeartbeatDTO(h db.Heartbeat) heartbeatDTO {
	return heartbeatDTO{
		Seq: h.Seq, ID: h.ID, Status: h.Status, ResponseTimeMS: h.ResponseTimeMS,
		StatusCode: h.StatusCode, ErrorMessage: h.ErrorMessage, CheckedAt: h.CheckedAt, LocationID: h.LocationID,
	}
}

func toHeartbeatDTOs(hs []db.Heartbeat) []heartbeatDTO {
	out := make([]heartbeatDTO, 0, len(hs))
	for _, h := range hs {
		out = append(out, toHeartbeatDTO(h))
	}
	return out
}

type incidentDTO struct {
	ID             string     `json:"id"`
	MonitorID      string     `json:"monitor_id"`
	StartedAt      time.Time  `json:"started_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	Cause          string     `json:"cause,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	Open           bool       `json:"open"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toIncidentDTO(i db.Incident) incidentDTO {
	return incidentDTO{
		ID: i.ID, MonitorID: i.MonitorID, StartedAt: i.StartedAt, ResolvedAt: i.ResolvedAt,
		Cause: i.Cause, AcknowledgedAt: i.AcknowledgedAt, AcknowledgedBy: i.AcknowledgedBy,
		Open: i.Open(), CreatedAt: i.CreatedAt,
	}
}

func toIncidentDTOs(is []db.Incident) []incidentDTO {
	out := make([]incidentDTO, 0, len(is))
	for _, i := range is {
		out = append(out, toIncidentDTO(i))
	}
	return out
}

type locationDTO struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Region     string     `json:"region,omitempty"`
	Health     string     `json:"health"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	IsDisabled bool       `json:"is_disabled"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toLocationDTO(l db.CheckLocation, maxInterval time.Duration, now time.Time) locationDTO {
	return locationDTO{
		ID: l.ID, Name: l.Name, Region: l.Region, Health: l.Health(maxInterval, now),
		LastSeenAt: l.LastSeenAt, IsDisabled: l.IsDisabled, CreatedAt: l.CreatedAt,
	}
}

// statusPageDTO never carries the manage key hash.
type statusPageDTO struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	LogoURL      string    `json:"logo_url,omitempty"`
	CustomDomain string    `json:"custom_domain,omitempty"`
	IsPublic     bool      `json:"is_public"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ManageKey    string    `json:"manage_key,omitempty"`
}

func toStatusPageDTO(p db.StatusPage) statusPageDTO {
	return statusPageDTO{
		ID: p.ID, Slug: p.Slug, Title: p.Title, Description: p.Description,
		LogoURL: p.LogoURL, CustomDomain: p.CustomDomain, IsPublic: p.IsPublic,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func toStatusPageDTOs(ps []db.StatusPage) []statusPageDTO {
	out := make([]statusPageDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toStatusPageDTO(p))
	}
	return out
}

type settingsDTO struct {
	BrandName    string `json:"brand_name"`
	BrandLogoURL string `json:"brand_logo_url,omitempty"`
}

func toSettingsDTO(s db.Settings) settingsDTO {
	return settingsDTO{BrandName: s.BrandName, BrandLogoURL: s.BrandLogoURL}
}
