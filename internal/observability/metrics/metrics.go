package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for chat turns and lead sync.
type ChatMetrics struct {
	turnsTotal        *prometheus.CounterVec
	turnLatency       *prometheus.HistogramVec
	fieldsCaptured    *prometheus.CounterVec
	leadsCaptured     prometheus.Counter
	syncAttemptsTotal *prometheus.CounterVec
	completionLatency *prometheus.HistogramVec
	storeErrorsTotal  *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leasing",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total chat turns by resulting phase and outcome",
		}, []string{"phase", "outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leasing",
			Subsystem: "chat",
			Name:      "turn_latency_seconds",
			Help:      "Latency of chat turn handling including the completion call",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		fieldsCaptured: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leasing",
			Subsystem: "chat",
			Name:      "fields_captured_total",
			Help:      "Lead fields newly captured from visitor messages",
		}, []string{"field"}),
		leadsCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leasing",
			Subsystem: "chat",
			Name:      "leads_captured_total",
			Help:      "Sessions that crossed the lead qualification policy",
		}),
		syncAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leasing",
			Subsystem: "lead_sync",
			Name:      "attempts_total",
			Help:      "External lead sync attempts by result",
		}, []string{"result"}),
		completionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leasing",
			Subsystem: "completion",
			Name:      "latency_seconds",
			Help:      "Latency of completion service calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"outcome"}),
		storeErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leasing",
			Subsystem: "session_store",
			Name:      "errors_total",
			Help:      "Session store failures by operation",
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.fieldsCaptured, m.leadsCaptured, m.syncAttemptsTotal,
		m.completionLatency, m.storeErrorsTotal)
	return m
}

func (m *ChatMetrics) ObserveTurn(phase, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(phase, outcome).Inc()
	m.turnLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *ChatMetrics) ObserveFieldCaptured(field string) {
	if m == nil {
		return
	}
	m.fieldsCaptured.WithLabelValues(field).Inc()
}

func (m *ChatMetrics) ObserveLeadCaptured() {
	if m == nil {
		return
	}
	m.leadsCaptured.Inc()
}

// ObserveSync records one lead sync outcome ("success", "failed", "skipped", "deduped", "unrecorded").
func (m *ChatMetrics) ObserveSync(result string) {
	if m == nil {
		return
	}
	m.syncAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveCompletion records one completion call.
func (m *ChatMetrics) ObserveCompletion(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.completionLatency.WithLabelValues(outcome).Observe(seconds)
}

// ObserveStoreError counts a failed session store call ("get", "save").
func (m *ChatMetrics) ObserveStoreError(operation string) {
	if m == nil {
		return
	}
	m.storeErrorsTotal.WithLabelValues(operation).Inc()
}
