// Package eventbus is the process-wide broadcast bus behind the SSE
// streams. Publication never blocks a publisher: a slow subscriber
// whose queue is full misses events rather than letting a publish stall
// the whole system.
package eventbus

import (
	"sync"
	"time"

	"github.com/watchpost/watchpost/internal/metrics"
)

const (
	EventCheckCompleted     = "check.completed"
	EventMonitorUp          = "monitor.up"
	EventMonitorDown        = "monitor.down"
	EventMonitorDegraded    = "monitor.degraded"
	EventMonitorRecovered   = "monitor.recovered"
	EventIncidentCreated    = "incident.created"
	EventIncidentResolved   = "incident.resolved"
	EventIncidentAck        = "incident.acknowledged"
	EventIncidentReminder   = "incident.reminder"
	EventIncidentEscalated  = "incident.escalated"
	EventMaintenanceStarted = "maintenance.started"
	EventMaintenanceEnded   = "maintenance.ended"
	EventStreamLagged       = "stream.lagged"
)

// Event is one published occurrence. MonitorID and IsPublic gate per-
// monitor and global-stream delivery; Data is the JSON-serializable
// payload handed to SSE writers.
type Event struct {
	Seq       uint64
	Type      string
	MonitorID string
	IsPublic  bool
	Data      any
	At        time.Time
}

const defaultCapacity = 256

// Bus is a single broadcast channel fanned out to per-subscriber buffered
// queues of bounded capacity.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int64]*subscriber
	nextID      int64
	nextSeq     uint64
	capacity    int
	metrics     *metrics.Metrics
}

type subscriber struct {
	ch        chan Event
	monitorID string // "" subscribes to every monitor, subject to IsPublic for the global stream
	global    bool   // true: only IsPublic events are delivered
}

func New(m *metrics.Metrics) *Bus {
	return &Bus{subscribers: make(map[int64]*subscriber), capacity: defaultCapacity, metrics: m}
}

// Publish is non-blocking: a subscriber whose queue is full misses the
// event. A stream.lagged event is then offered to the same queue and is
// only enqueued if a slot has freed up in the meantime; otherwise the
// subscriber sees the loss only as a gap in Seq.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	b.nextSeq++
	evt.Seq = b.nextSeq
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if s.global && !evt.IsPublic {
			continue
		}
		if s.monitorID != "" && s.monitorID != evt.MonitorID {
			continue
		}
		select {
		case s.ch <- evt:
		default:
			b.signalLag(s, evt.Seq)
		}
	}
}

func (b *Bus) signalLag(s *subscriber, seq uint64) {
	if b.metrics != nil {
		b.metrics.EventBusLaggedTotal.Inc()
	}
	lag := Event{Seq: seq, Type: EventStreamLagged, At: time.Now().UTC()}
	select {
	case s.ch <- lag:
	default:
		// queue still full; the subscriber is far enough behind that the
		// next successful receive will already show a seq gap.
	}
}

// Subscription is returned by Subscribe/SubscribeGlobal; callers range
// over C and must call Close when done.
type Subscription struct {
	C     <-chan Event
	bus   *Bus
	id    int64
}

func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subscribers, s.id)
	if s.bus.metrics != nil {
		s.bus.metrics.EventBusSubscribers.Set(float64(len(s.bus.subscribers)))
	}
}

// Subscribe streams events for a single monitor.
func (b *Bus) Subscribe(monitorID string) *Subscription {
	return b.subscribe(monitorID, false)
}

// SubscribeGlobal streams every public-monitor event across the system.
func (b *Bus) SubscribeGlobal() *Subscription {
	return b.subscribe("", true)
}

func (b *Bus) subscribe(monitorID string, global bool) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan Event, b.capacity)
	b.subscribers[id] = &subscriber{ch: ch, monitorID: monitorID, global: global}
	if b.metrics != nil {
		b.metrics.EventBusSubscribers.Set(float64(len(b.subscribers)))
	}

	return &Subscription{C: ch, bus: b, id: id}
}
