package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fulfillment placement outcomes.
const (
	FulfillmentPlaced  = "placed"
	FulfillmentFailed  = "failed"
	FulfillmentSkipped = "skipped"
)

// FulfillmentMetrics tracks checkout finalization and provider order placement.
type FulfillmentMetrics struct {
	checkouts  *prometheus.CounterVec
	placements *prometheus.CounterVec
	latency    prometheus.Histogram
}

func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	checkouts := counterVec("checkout_finalizations_total", "Checkout finalizations by payment provider and payment status.", "provider", "payment_status")
	placements := counterVec("fulfillment_placements_total", "Fulfillment order placements by result.", "result")
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fulfillment_provider_request_seconds",
		Help:      "Latency of fulfillment provider order creation.",
		Buckets:   prometheus.DefBuckets,
	})
	reg.MustRegister(checkouts, placements, latency)
	return &FulfillmentMetrics{checkouts: checkouts, placements: placements, latency: latency}
}

func (f *FulfillmentMetrics) ObserveCheckout(provider, paymentStatus string) {
	if f == nil || f.checkouts == nil {
		return
	}
	f.checkouts.WithLabelValues(labelValues(provider, paymentStatus)...).Inc()
}

func (f *FulfillmentMetrics) ObservePlacement(result string) {
	if f == nil || f.placements == nil {
		return
	}
	f.placements.WithLabelValues(labelValue(result)).Inc()
}

func (f *FulfillmentMetrics) ObserveProviderLatency(d time.Duration) {
	if f == nil || f.latency == nil {
		return
	}
	f.latency.Observe(d.Seconds())
}
