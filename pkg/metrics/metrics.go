package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for webhook and generation flows.
// A nil *BotMetrics is valid and records nothing.
type BotMetrics struct {
	inboundTotal       *prometheus.CounterVec
	transcriptWrites   *prometheus.CounterVec
	summariesTotal     *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linebot",
			Subsystem: "webhook",
			Name:      "inbound_events_total",
			Help:      "Total inbound LINE message events",
		}, []string{"event_type", "status"}),
		transcriptWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linebot",
			Subsystem: "transcript",
			Name:      "async_writes_total",
			Help:      "Fire-and-forget transcript writes by outcome",
		}, []string{"status"}),
		summariesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linebot",
			Subsystem: "flow",
			Name:      "summaries_total",
			Help:      "Course summaries by outcome",
		}, []string{"status"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "linebot",
			Subsystem: "llm",
			Name:      "generation_seconds",
			Help:      "Latency of generative service calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.transcriptWrites, m.summariesTotal, m.generationDuration)
	return m
}

func (m *BotMetrics) ObserveInbound(eventType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, status).Inc()
}

func (m *BotMetrics) ObserveTranscriptWrite(status string) {
	if m == nil {
		return
	}
	m.transcriptWrites.WithLabelValues(status).Inc()
}

func (m *BotMetrics) ObserveSummary(status string) {
	if m == nil {
		return
	}
	m.summariesTotal.WithLabelValues(status).Inc()
}

func (m *BotMetrics) ObserveGeneration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(operation).Observe(seconds)
}
