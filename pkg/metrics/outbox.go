package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outbox delivery outcome labels.
const (
	OutboxResultPublished    = "published"
	OutboxResultRetry        = "retry"
	OutboxResultDeadLettered = "dead_lettered"
)

// OutboxMetrics counts delivery outcomes per topic.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_deliveries_total",
		Help:      "Outbox delivery attempts by topic and result.",
	}, []string{"topic", "result"})
	reg.MustRegister(deliveries)
	return &OutboxMetrics{deliveries: deliveries}
}

// ObserveDelivery counts one delivery attempt.
func (m *OutboxMetrics) ObserveDelivery(topic, result string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(topic), result).Inc()
}
