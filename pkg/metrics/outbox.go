package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts outbox publish attempts.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := counterVec("outbox_published_total", "Outbox events published.", "event_type")
	failed := counterVec("outbox_publish_failures_total", "Outbox publish failures.", "event_type")
	reg.MustRegister(published, failed)
	return &OutboxMetrics{published: published, failed: failed}
}

func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(labelValue(eventType)).Inc()
}

func (o *OutboxMetrics) IncFailed(eventType string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(labelValue(eventType)).Inc()
}
