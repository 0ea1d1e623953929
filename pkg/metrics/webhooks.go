package metrics

import "github.com/prometheus/client_golang/prometheus"

// Webhook delivery outcomes.
const (
	WebhookResultProcessed = "processed"
	WebhookResultDuplicate = "duplicate"
	WebhookResultRejected  = "rejected"
	WebhookResultNotFound  = "not_found"
	WebhookResultFailed    = "failed"
)

// WebhookMetrics counts inbound provider deliveries by outcome.
type WebhookMetrics struct {
	deliveries *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	deliveries := counterVec("webhook_deliveries_total", "Inbound webhook deliveries by source and result.", "source", "result")
	reg.MustRegister(deliveries)
	return &WebhookMetrics{deliveries: deliveries}
}

// Observe records one delivery.
func (w *WebhookMetrics) Observe(source, result string) {
	if w == nil || w.deliveries == nil {
		return
	}
	w.deliveries.WithLabelValues(labelValues(source, result)...).Inc()
}
