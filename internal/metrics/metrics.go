package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the sync engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	activeRooms    prometheus.Gauge
	participants   prometheus.Gauge
	eventsTotal    *prometheus.CounterVec
	eventDuration  *prometheus.HistogramVec
	messagesSent   prometheus.Counter
	sendsDropped   prometheus.Counter
	authFailures   *prometheus.CounterVec
	relayMessages  *prometheus.CounterVec
	concurrentEdit prometheus.Counter
}

// New registers the collectors on reg under namespace.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		activeRooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of rooms with at least one participant",
		}),
		participants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "participants",
			Help:      "Number of connected participants across all rooms",
		}),
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound events by kind and outcome",
		}, []string{"kind", "status"}),
		eventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time to apply and fan out one event",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"kind"}),
		messagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages queued to participants",
		}),
		sendsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_dropped_total",
			Help:      "Messages not delivered because a participant queue was full or closed",
		}),
		authFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected connection attempts by reason",
		}, []string{"reason"}),
		relayMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "Events exchanged with other nodes",
		}, []string{"direction"}),
		concurrentEdit: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concurrent_edits_total",
			Help:      "Element updates that overwrote another user's recent write",
		}),
	}
}

func (m *Metrics) RoomCreated() {
	if m != nil {
		m.activeRooms.Inc()
	}
}

func (m *Metrics) RoomEvicted() {
	if m != nil {
		m.activeRooms.Dec()
	}
}

func (m *Metrics) Joined() {
	if m != nil {
		m.participants.Inc()
	}
}

func (m *Metrics) Left() {
	if m != nil {
		m.participants.Dec()
	}
}

// Event records one routed event. status is "ok", "dropped" or "rejected".
func (m *Metrics) Event(kind, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind, status).Inc()
	m.eventDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) Sent(n int) {
	if m != nil {
		m.messagesSent.Add(float64(n))
	}
}

func (m *Metrics) Dropped() {
	if m != nil {
		m.sendsDropped.Inc()
	}
}

func (m *Metrics) AuthFailed(reason string) {
	if m != nil {
		m.authFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Relayed(direction string) {
	if m != nil {
		m.relayMessages.WithLabelValues(direction).Inc()
	}
}

func (m *Metrics) ConcurrentEdit() {
	if m != nil {
		m.concurrentEdit.Inc()
	}
}
