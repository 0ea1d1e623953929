package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/promptlyprinted/promptly-backend/internal/bootstrap"
	"github.com/promptlyprinted/promptly-backend/internal/cron"
	"github.com/promptlyprinted/promptly-backend/internal/orders"
	"github.com/promptlyprinted/promptly-backend/pkg/config"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/metrics"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox"
	"github.com/promptlyprinted/promptly-backend/pkg/redis"
)

func main() {
	bootstrap.Main("cron-worker", run)
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := bootstrap.Database(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer bootstrap.CloseWith(logg, "database", dbClient.Close)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer bootstrap.CloseWith(logg, "redis", redisClient.Close)

	lock, err := redis.NewLock(redisClient, lockKey(cfg.App.Env), cfg.Reconcile.Interval)
	if err != nil {
		return err
	}
	jobMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	stuck, err := cron.NewStuckFulfillmentJob(cron.StuckFulfillmentJobParams{
		Logger:     logg,
		Orders:     orders.NewRepository(dbClient.DB()),
		Metrics:    jobMetrics,
		StuckAfter: cfg.Reconcile.StuckAfter,
	})
	if err != nil {
		return err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
	})
	if err != nil {
		return err
	}
	jobs, err := cron.NewRegistry(stuck, retention)
	if err != nil {
		return err
	}

	svc, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Reconcile.Interval,
	})
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "interval", cfg.Reconcile.Interval.String()), "starting cron worker")
	return svc.Run(ctx)
}

// lockKey keeps workers in different environments sharing one Redis from
// blocking each other.
func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return redis.Key("cron-worker", "lock", env)
}
