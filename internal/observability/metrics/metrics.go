package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters for ledger operations.
type SchedulingMetrics struct {
	operationsTotal *prometheus.CounterVec
	conflictsTotal  prometheus.Counter
	partialTotal    prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "scheduling",
			Name:      "operations_total",
			Help:      "Ledger operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "scheduling",
			Name:      "slot_conflicts_total",
			Help:      "Bookings rejected because the slot was already taken",
		}),
		partialTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "scheduling",
			Name:      "reschedule_partial_total",
			Help:      "Reschedules left partially migrated after a failed compensation",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.conflictsTotal, m.partialTotal)
	return m
}

func (m *SchedulingMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *SchedulingMetrics) ObservePartialReschedule() {
	if m == nil {
		return
	}
	m.partialTotal.Inc()
}

// MessagingMetrics exposes counters/histograms for outbound WhatsApp sends.
type MessagingMetrics struct {
	outboundTotal *prometheus.CounterVec
	sendLatency   *prometheus.HistogramVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound gateway sends",
		}, []string{"tenant", "status"}),
		sendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agenda",
			Subsystem: "messaging",
			Name:      "send_latency_seconds",
			Help:      "Latency of gateway send calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tenant"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.outboundTotal, m.sendLatency)
	return m
}

func (m *MessagingMetrics) ObserveOutbound(tenant, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(tenant, status).Inc()
}

func (m *MessagingMetrics) ObserveSendLatency(tenant string, seconds float64) {
	if m == nil {
		return
	}
	m.sendLatency.WithLabelValues(tenant).Observe(seconds)
}
