package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/gauges for the payment event pipeline.
// All observe methods are nil-safe so components can run without metrics in tests.
type PipelineMetrics struct {
	outboxPublished   *prometheus.CounterVec
	outboxPollErrors  prometheus.Counter
	inboxProcessed    *prometheus.CounterVec
	inboxDeduplicated prometheus.Counter
	debitsTotal       *prometheus.CounterVec
	wsSessions        prometheus.Gauge
	notificationsSent prometheus.Counter
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderpay",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events published to the broker",
		}, []string{"type"}),
		outboxPollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderpay",
			Subsystem: "outbox",
			Name:      "poll_errors_total",
			Help:      "Failed outbox dispatch iterations",
		}),
		inboxProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderpay",
			Subsystem: "inbox",
			Name:      "processed_total",
			Help:      "Inbox events handled, by final status",
		}, []string{"status"}),
		inboxDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderpay",
			Subsystem: "inbox",
			Name:      "deduplicated_total",
			Help:      "Broker deliveries suppressed by the inbox dedup key",
		}),
		debitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderpay",
			Subsystem: "ledger",
			Name:      "debits_total",
			Help:      "Debit attempts, by outcome",
		}, []string{"outcome"}),
		wsSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "orderpay",
			Subsystem: "ws",
			Name:      "active_sessions",
			Help:      "Currently connected websocket sessions",
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderpay",
			Subsystem: "ws",
			Name:      "notifications_sent_total",
			Help:      "Order update frames handed to sessions",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.outboxPublished,
		m.outboxPollErrors,
		m.inboxProcessed,
		m.inboxDeduplicated,
		m.debitsTotal,
		m.wsSessions,
		m.notificationsSent,
	)
	return m
}

func (m *PipelineMetrics) ObserveOutboxPublished(eventType string) {
	if m == nil {
		return
	}
	m.outboxPublished.WithLabelValues(eventType).Inc()
}

func (m *PipelineMetrics) ObserveOutboxPollError() {
	if m == nil {
		return
	}
	m.outboxPollErrors.Inc()
}

func (m *PipelineMetrics) ObserveInboxProcessed(status string) {
	if m == nil {
		return
	}
	m.inboxProcessed.WithLabelValues(status).Inc()
}

func (m *PipelineMetrics) ObserveInboxDeduplicated() {
	if m == nil {
		return
	}
	m.inboxDeduplicated.Inc()
}

func (m *PipelineMetrics) ObserveDebit(outcome string) {
	if m == nil {
		return
	}
	m.debitsTotal.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.wsSessions.Inc()
}

func (m *PipelineMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.wsSessions.Dec()
}

func (m *PipelineMetrics) ObserveNotificationSent() {
	if m == nil {
		return
	}
	m.notificationsSent.Inc()
}
