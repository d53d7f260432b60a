// Package metrics exposes Prometheus collectors for the scheduler,
// notification engine, and event bus, served at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	ProbesTotal           *prometheus.CounterVec
	ProbeDuration         *prometheus.HistogramVec
	IncidentsOpenedTotal  *prometheus.CounterVec
	IncidentsResolvedTotal *prometheus.CounterVec
	NotificationsTotal    *prometheus.CounterVec
	EventBusSubscribers   prometheus.Gauge
	EventBusLaggedTotal   prometheus.Counter
	SchedulerQueueDepth   prometheus.Gauge
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchpost_probes_total",
			Help: "Total number of probes executed, labeled by monitor type and resulting status.",
		}, []string{"monitor_type", "status"}),
		ProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "watchpost_probe_duration_seconds",
			Help:    "Probe execution time in seconds.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"monitor_type"}),
		IncidentsOpenedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchpost_incidents_opened_total",
			Help: "Total number of incidents opened.",
		}, []string{"monitor_id"}),
		IncidentsResolvedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchpost_incidents_resolved_total",
			Help: "Total number of incidents resolved.",
		}, []string{"monitor_id"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchpost_notifications_total",
			Help: "Total number of notification dispatch attempts, labeled by channel type and outcome.",
		}, []string{"channel_type", "status"}),
		EventBusSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchpost_eventbus_subscribers",
			Help: "Current number of active event bus subscribers.",
		}),
		EventBusLaggedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchpost_eventbus_lagged_total",
			Help: "Total number of events missed by slow subscribers whose queue was full.",
		}),
		SchedulerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchpost_scheduler_queue_depth",
			Help: "Current number of monitors waiting in the scheduler's due queue.",
		}),
	}

	reg.MustRegister(
		m.ProbesTotal, m.ProbeDuration, m.IncidentsOpenedTotal, m.IncidentsResolvedTotal,
		m.NotificationsTotal, m.EventBusSubscribers, m.EventBusLaggedTotal, m.SchedulerQueueDepth,
	)
	return m
}
