// Package metrics holds the Prometheus collectors for the API, cron worker
// and outbox publisher. Every recorder tolerates a nil receiver and a nil
// registerer so tests and tools can skip metrics entirely.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "promptly"

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.DefBuckets,
	}, labels)
}

func labelValue(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func labelValues(values ...string) []string {
	for i, v := range values {
		values[i] = labelValue(v)
	}
	return values
}
