package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewWithRegistry_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ProbesTotal.WithLabelValues("http", "up").Inc()
	m.IncidentsOpenedTotal.WithLabelValues("m1").Inc()
	m.IncidentsResolvedTotal.WithLabelValues("m1").Inc()
	m.NotificationsTotal.WithLabelValues("webhook", "success").Inc()
	m.EventBusSubscribers.Set(3)
	m.EventBusLaggedTotal.Inc()
	m.SchedulerQueueDepth.Set(7)
	m.ProbeDuration.WithLabelValues("http").Observe(0.25)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 8 {
		t.Errorf("expected all 8 collectors to report, got %d families", len(families))
	}
}

func TestNewWithRegistry_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewWithRegistry(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected registering the same collectors twice to panic")
		}
	}()
	NewWithRegistry(reg)
}
