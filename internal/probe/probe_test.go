package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/db"
)

func TestRun_HTTPSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("all systems operational"))
	}))
	defer srv.Close()

	m := db.Monitor{MonitorType: db.MonitorTypeHTTP, Target: srv.URL, TimeoutMS: 5000}
	outcome := Run(context.Background(), m)

	if outcome.Error != "" {
		t.Fatalf("unexpected error: %s", outcome.Error)
	}
	if outcome.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", outcome.StatusCode)
	}
	if outcome.Body != "all systems operational" {
		t.Errorf("unexpected body: %q", outcome.Body)
	}
}

func TestRun_HTTPConnectionRefused(t *testing.T) {
	m := db.Monitor{MonitorType: db.MonitorTypeHTTP, Target: "http://127.0.0.1:1", TimeoutMS: 1000}
	outcome := Run(context.Background(), m)

	if outcome.Error == "" {
		t.Error("expected an error for an unreachable target")
	}
}

func TestRun_HTTPDoesNotFollowRedirectsByDefault(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("redirect target should not have been reached")
	}))
	defer target.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer srv.Close()

	m := db.Monitor{MonitorType: db.MonitorTypeHTTP, Target: srv.URL, TimeoutMS: 5000, FollowRedirects: false}
	outcome := Run(context.Background(), m)

	if outcome.StatusCode != http.StatusFound {
		t.Errorf("expected the 302 itself to be reported, got %d", outcome.StatusCode)
	}
}

func TestRun_TCPSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	m := db.Monitor{MonitorType: db.MonitorTypeTCP, Target: "tcp://" + ln.Addr().String(), TimeoutMS: 2000}
	outcome := Run(context.Background(), m)

	if outcome.Error != "" {
		t.Fatalf("unexpected error: %s", outcome.Error)
	}
}

func TestRun_TCPRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	m := db.Monitor{MonitorType: db.MonitorTypeTCP, Target: "tcp://" + addr, TimeoutMS: 1000}
	outcome := Run(context.Background(), m)

	if outcome.Error == "" {
		t.Error("expected an error connecting to a closed port")
	}
}

func TestRun_RespectsContextTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()

	m := db.Monitor{MonitorType: db.MonitorTypeHTTP, Target: "http://" + ln.Addr().String(), TimeoutMS: 50}
	start := time.Now()
	outcome := Run(context.Background(), m)

	if outcome.Error == "" {
		t.Error("expected a timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("probe did not respect its configured timeout")
	}
}
