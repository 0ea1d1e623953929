package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics is labelled by job name.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	flagged  *prometheus.CounterVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	c := &CronJobMetrics{
		duration: histogramVec("cron_job_duration_seconds", "Cron job run time.", "job"),
		runs:     counterVec("cron_job_runs_total", "Cron job runs by result.", "job", "result"),
		flagged:  counterVec("cron_orders_flagged_total", "Orders a cron job flagged for manual intervention.", "job"),
	}
	reg.MustRegister(c.duration, c.runs, c.flagged)
	return c
}

func (c *CronJobMetrics) ObserveDuration(job string, d time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(labelValue(job)).Observe(d.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) { c.run(job, "success") }

func (c *CronJobMetrics) IncFailure(job string) { c.run(job, "failure") }

func (c *CronJobMetrics) run(job, result string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(labelValue(job), result).Inc()
}

func (c *CronJobMetrics) AddFlagged(job string, n int) {
	if c == nil || c.flagged == nil || n <= 0 {
		return
	}
	c.flagged.WithLabelValues(labelValue(job)).Add(float64(n))
}
