// Package probe implements the three outcome-producing check runners —
// HTTP, TCP, DNS — as pure, context-bound functions. Runners never touch
// the store or the event bus; they only observe a target and report what
// they saw.
package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/watchpost/watchpost/internal/db"
)

// maxBodyRead caps how much of an HTTP response body is read for
// body_contains matching.
const maxBodyRead = 64 * 1024

// Outcome is the runner-agnostic result of one probe attempt.
type Outcome struct {
	Error          string
	ResponseTimeMS int64
	StatusCode     int
	Body           string
	DNSAnswer      string
}

// Run dispatches to the runner matching m.MonitorType.
func Run(ctx context.Context, m db.Monitor) Outcome {
	timeout := time.Duration(m.TimeoutMS) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch m.MonitorType {
	case db.MonitorTypeTCP:
		return runTCP(ctx, m)
	case db.MonitorTypeDNS:
		return runDNS(ctx, m)
	default:
		return runHTTP(ctx, m)
	}
}

func runHTTP(ctx context.Context, m db.Monitor) Outcome {
	start := time.Now()

	method := m.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, m.Target, nil)
	if err != nil {
		return Outcome{Error: err.Error(), ResponseTimeMS: elapsedMS(start)}
	}
	for k, v := range m.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
	if !m.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Outcome{Error: err.Error(), ResponseTimeMS: elapsedMS(start)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))

	return Outcome{
		ResponseTimeMS: elapsedMS(start),
		StatusCode:     resp.StatusCode,
		Body:           string(body),
	}
}

func runTCP(ctx context.Context, m db.Monitor) Outcome {
	start := time.Now()
	addr := strings.TrimPrefix(m.Target, "tcp://")

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Outcome{Error: err.Error(), ResponseTimeMS: elapsedMS(start)}
	}
	_ = conn.Close()

	return Outcome{ResponseTimeMS: elapsedMS(start)}
}

func runDNS(ctx context.Context, m db.Monitor) Outcome {
	start := time.Now()

	recordType := dns.StringToType[strings.ToUpper(m.DNSRecordType)]
	if recordType == 0 {
		recordType = dns.TypeA
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(m.Target), recordType)
	msg.RecursionDesired = true

	client := new(dns.Client)
	client.Timeout = 0 // bounded by ctx deadline below
	if deadline, ok := ctx.Deadline(); ok {
		client.Timeout = time.Until(deadline)
	}

	resolver := systemResolverAddr()
	resp, _, err := client.ExchangeContext(ctx, msg, resolver)
	if err != nil {
		return Outcome{Error: err.Error(), ResponseTimeMS: elapsedMS(start)}
	}
	if resp == nil || len(resp.Answer) == 0 {
		return Outcome{Error: "no answer", ResponseTimeMS: elapsedMS(start)}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return Outcome{Error: dns.RcodeToString[resp.Rcode], ResponseTimeMS: elapsedMS(start)}
	}

	var rdata strings.Builder
	for _, rr := range resp.Answer {
		rdata.WriteString(rr.String())
		rdata.WriteString(" ")
	}

	return Outcome{
		ResponseTimeMS: elapsedMS(start),
		DNSAnswer:      rdata.String(),
	}
}

// systemResolverAddr reads the first nameserver out of /etc/resolv.conf,
// falling back to a public resolver when the host doesn't expose one (e.g.
// inside a minimal container).
func systemResolverAddr() string {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return "1.1.1.1:53"
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port)
}

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
