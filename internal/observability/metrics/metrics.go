package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters for the booking conversation flow.
// All methods are nil-safe so wiring metrics stays optional.
type ConversationMetrics struct {
	startedTotal       prometheus.Counter
	bookedTotal        prometheus.Counter
	slotConflictTotal  prometheus.Counter
	staleDiscardTotal  prometheus.Counter
	gatewayErrorsTotal *prometheus.CounterVec
	turnLatency        prometheus.Histogram
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		startedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emrassist",
			Subsystem: "conversation",
			Name:      "started_total",
			Help:      "Total conversations opened",
		}),
		bookedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emrassist",
			Subsystem: "conversation",
			Name:      "appointments_booked_total",
			Help:      "Total appointments booked through the chat flow",
		}),
		slotConflictTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emrassist",
			Subsystem: "conversation",
			Name:      "slot_conflicts_total",
			Help:      "Slot selections rejected because the time was already taken",
		}),
		staleDiscardTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emrassist",
			Subsystem: "conversation",
			Name:      "stale_responses_discarded_total",
			Help:      "Gateway responses dropped because the conversation moved on",
		}),
		gatewayErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emrassist",
			Subsystem: "conversation",
			Name:      "gateway_errors_total",
			Help:      "Failed clinic backend calls by operation",
		}, []string{"operation"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "emrassist",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of handling one conversation turn",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.startedTotal,
		m.bookedTotal,
		m.slotConflictTotal,
		m.staleDiscardTotal,
		m.gatewayErrorsTotal,
		m.turnLatency,
	)
	return m
}

func (m *ConversationMetrics) ObserveStarted() {
	if m == nil {
		return
	}
	m.startedTotal.Inc()
}

func (m *ConversationMetrics) ObserveBooked() {
	if m == nil {
		return
	}
	m.bookedTotal.Inc()
}

func (m *ConversationMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.slotConflictTotal.Inc()
}

func (m *ConversationMetrics) ObserveStaleDiscarded() {
	if m == nil {
		return
	}
	m.staleDiscardTotal.Inc()
}

func (m *ConversationMetrics) ObserveGatewayError(operation string) {
	if m == nil {
		return
	}
	m.gatewayErrorsTotal.WithLabelValues(operation).Inc()
}

func (m *ConversationMetrics) ObserveTurnLatency(seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.Observe(seconds)
}
