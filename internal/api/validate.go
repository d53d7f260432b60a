package api

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/watchpost/watchpost/internal/db"
)

// errValidation is a plain sentinel-free error used by request validators
// that don't have direct access to a http.ResponseWriter (e.g. shared
// request-shape checks called from more than one handler).
func errValidation(msg string) error {
	return errors.New(msg)
}

// monitorInput is the wire shape accepted by create/update; fields absent
// from the request body decode to their zero value, which validateMonitorInput
// and toMonitor treat as "unset" for optional fields.
type monitorInput struct {
	Name        string            `json:"name"`
	Target      string            `json:"target"`
	MonitorType string            `json:"monitor_type"`
	Method      string            `json:"method"`
	ExpectedStatus int            `json:"expected_status"`
	BodyContains   string         `json:"body_contains"`
	Headers        map[string]string `json:"headers"`
	FollowRedirects *bool         `json:"follow_redirects"`
	DNSRecordType  string         `json:"dns_record_type"`
	DNSExpected    string         `json:"dns_expected"`
	IntervalSeconds       int     `json:"interval_seconds"`
	TimeoutMS             int     `json:"timeout_ms"`
	ConfirmationThreshold int     `json:"confirmation_threshold"`
	ResponseTimeThresholdMS *int  `json:"response_time_threshold_ms"`
	IsPublic   *bool    `json:"is_public"`
	GroupName  string   `json:"group_name"`
	Tags       []string `json:"tags"`
	SLATarget      *float64 `json:"sla_target"`
	SLAPeriodDays  *int     `json:"sla_period_days"`
	ConsensusThreshold *int `json:"consensus_threshold"`
}

// validateMonitorInput enforces the validation rules common to create
// and update. It fills in defaults for zero-valued optional numeric
// fields so callers never persist 0 for intervals/timeouts.
func validateMonitorInput(in *monitorInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(in.Target) == "" {
		return fmt.Errorf("target is required")
	}
	switch in.MonitorType {
	case db.MonitorTypeHTTP, db.MonitorTypeTCP, db.MonitorTypeDNS:
	case "":
		return fmt.Errorf("monitor_type is required")
	default:
		return fmt.Errorf("monitor_type must be one of http, tcp, dns")
	}

	if in.MonitorType == db.MonitorTypeHTTP {
		u, err := url.Parse(in.Target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("target must be an http(s) URL for monitor_type http")
		}
		switch in.Method {
		case "", "GET", "HEAD", "POST":
		default:
			return fmt.Errorf("method must be one of GET, HEAD, POST")
		}
		if in.ExpectedStatus != 0 && (in.ExpectedStatus < 100 || in.ExpectedStatus > 599) {
			return fmt.Errorf("expected_status must be in [100, 599]")
		}
	}

	if in.MonitorType == db.MonitorTypeDNS && in.DNSRecordType != "" {
		switch in.DNSRecordType {
		case "A", "AAAA", "CNAME", "MX", "TXT", "NS", "SOA", "PTR", "SRV", "CAA":
		default:
			return fmt.Errorf("dns_record_type must be one of A, AAAA, CNAME, MX, TXT, NS, SOA, PTR, SRV, CAA")
		}
	}

	if in.IntervalSeconds == 0 {
		in.IntervalSeconds = 600
	}
	if in.IntervalSeconds < 600 {
		return fmt.Errorf("interval_seconds must be at least 600")
	}
	if in.TimeoutMS == 0 {
		in.TimeoutMS = 10000
	}
	if in.TimeoutMS < 1000 || in.TimeoutMS > 60000 {
		return fmt.Errorf("timeout_ms must be in [1000, 60000]")
	}
	if in.ConfirmationThreshold == 0 {
		in.ConfirmationThreshold = 2
	}
	if in.ConfirmationThreshold < 1 || in.ConfirmationThreshold > 10 {
		return fmt.Errorf("confirmation_threshold must be in [1, 10]")
	}
	if in.ResponseTimeThresholdMS != nil && *in.ResponseTimeThresholdMS < 100 {
		return fmt.Errorf("response_time_threshold_ms must be at least 100")
	}
	if in.SLATarget != nil && (*in.SLATarget <= 0 || *in.SLATarget > 100) {
		return fmt.Errorf("sla_target must be in (0, 100]")
	}
	if in.SLAPeriodDays != nil && (*in.SLAPeriodDays < 1 || *in.SLAPeriodDays > 365) {
		return fmt.Errorf("sla_period_days must be in [1, 365]")
	}
	if (in.SLATarget == nil) != (in.SLAPeriodDays == nil) {
		return fmt.Errorf("sla_target and sla_period_days must be set together")
	}
	if in.ConsensusThreshold != nil && *in.ConsensusThreshold < 1 {
		return fmt.Errorf("consensus_threshold must be at least 1")
	}
	return nil
}

func toMonitor(in monitorInput) db.Monitor {
	m := db.Monitor{
		Name:                    strings.TrimSpace(in.Name),
		Target:                  strings.TrimSpace(in.Target),
		MonitorType:             in.MonitorType,
		Method:                  in.Method,
		ExpectedStatus:          in.ExpectedStatus,
		BodyContains:            in.BodyContains,
		Headers:                 in.Headers,
		DNSRecordType:           in.DNSRecordType,
		DNSExpected:             in.DNSExpected,
		IntervalSeconds:         in.IntervalSeconds,
		TimeoutMS:               in.TimeoutMS,
		ConfirmationThreshold:   in.ConfirmationThreshold,
		ResponseTimeThresholdMS: in.ResponseTimeThresholdMS,
		GroupName:               in.GroupName,
		Tags:                    in.Tags,
		SLATarget:               in.SLATarget,
		SLAPeriodDays:           in.SLAPeriodDays,
		ConsensusThreshold:      in.ConsensusThreshold,
	}
	if in.FollowRedirects != nil {
		m.FollowRedirects = *in.FollowRedirects
	} else if in.MonitorType == db.MonitorTypeHTTP {
		m.FollowRedirects = true
	}
	if in.IsPublic != nil {
		m.IsPublic = *in.IsPublic
	}
	return m
}
