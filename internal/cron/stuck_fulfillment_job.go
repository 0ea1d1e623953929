package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/promptlyprinted/promptly-backend/internal/orders"
	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/metrics"
)

const (
	stuckFulfillmentJobName = "stuck-fulfillment"
	defaultStuckAfter       = 30 * time.Minute
	defaultStuckBatch       = 100
)

type stuckOrderStore interface {
	ListStuckFulfillments(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	CreateProcessingError(ctx context.Context, row *models.OrderProcessingError) error
}

type StuckFulfillmentJobParams struct {
	Logger     *logger.Logger
	Orders     stuckOrderStore
	Metrics    *metrics.CronJobMetrics
	StuckAfter time.Duration
	BatchSize  int
	Now        func() time.Time
}

// NewStuckFulfillmentJob flags paid orders that never reached Prodigi. It
// only records; placing the order again is an operator decision.
func NewStuckFulfillmentJob(params StuckFulfillmentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders store required")
	}
	job := &stuckFulfillmentJob{
		logg:       params.Logger,
		orders:     params.Orders,
		metrics:    params.Metrics,
		stuckAfter: params.StuckAfter,
		batch:      params.BatchSize,
		now:        params.Now,
	}
	if job.stuckAfter <= 0 {
		job.stuckAfter = defaultStuckAfter
	}
	if job.batch <= 0 {
		job.batch = defaultStuckBatch
	}
	if job.now == nil {
		job.now = time.Now
	}
	return job, nil
}

type stuckFulfillmentJob struct {
	logg       *logger.Logger
	orders     stuckOrderStore
	metrics    *metrics.CronJobMetrics
	stuckAfter time.Duration
	batch      int
	now        func() time.Time
}

func (j *stuckFulfillmentJob) Name() string { return stuckFulfillmentJobName }

func (j *stuckFulfillmentJob) Run(ctx context.Context) error {
	now := j.now()
	cutoff := now.Add(-j.stuckAfter)
	stuck, err := j.orders.ListStuckFulfillments(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list stuck fulfillments: %w", err)
	}

	var errs error
	flagged := 0
	for _, order := range stuck {
		row := &models.OrderProcessingError{
			OrderID: order.ID,
			Error: fmt.Sprintf("%s: paid order has no prodigi order after %s (status %s since %s)",
				orders.StuckFulfillmentPrefix, j.stuckAfter, order.Status, order.UpdatedAt.UTC().Format(time.RFC3339)),
			LastAttemptAt: now,
		}
		if err := j.orders.CreateProcessingError(ctx, row); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("flag order %d: %w", order.ID, err))
			continue
		}
		flagged++
		j.logg.Warn(j.logg.WithOrderID(ctx, order.ID), "paid order stuck without fulfillment")
	}
	j.metrics.AddFlagged(stuckFulfillmentJobName, flagged)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(stuck),
		"flagged": flagged,
	})
	j.logg.Info(logCtx, "stuck fulfillment sweep complete")
	return errs
}
