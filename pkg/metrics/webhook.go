package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics counts reconciliation outcomes per provider.
type WebhookMetrics struct {
	received *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

// Outcome labels used on the webhook outcome counter.
const (
	WebhookOutcomeApplied   = "applied"
	WebhookOutcomeDuplicate = "duplicate"
	WebhookOutcomeConflict  = "conflict"
	WebhookOutcomeError     = "error"
)

func NewWebhookMetrics() *WebhookMetrics {
	return NewWebhookMetricsWith(prometheus.DefaultRegisterer)
}

// NewWebhookMetricsWith registers the counters on reg instead of the default
// registry, so tests can observe counts in isolation.
func NewWebhookMetricsWith(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: "webhook",
				Name:      "received_total",
				Help:      "How many provider webhook notifications were received, partitioned by provider.",
			},
			[]string{"provider"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: "webhook",
				Name:      "outcome_total",
				Help:      "Reconciliation outcomes, partitioned by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
	}
	reg.MustRegister(m.received, m.outcomes)
	return m
}

// IncReceived is nil-safe so services can run without metrics in tests.
func (m *WebhookMetrics) IncReceived(provider string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(provider).Inc()
}

func (m *WebhookMetrics) IncOutcome(provider, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(provider, outcome).Inc()
}
