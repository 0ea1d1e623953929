package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/promptlyprinted/promptly-backend/internal/bootstrap"
	"github.com/promptlyprinted/promptly-backend/pkg/config"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/metrics"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox/registry"
	"github.com/promptlyprinted/promptly-backend/pkg/pubsub"
)

func main() {
	bootstrap.Main("outbox-publisher", run)
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}

	dbClient, err := bootstrap.Database(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer bootstrap.CloseWith(logg, "database", dbClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer bootstrap.CloseWith(logg, "pubsub", pubsubClient.Close)

	svc, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}
	logg.Info(ctx, "starting outbox publisher")
	return svc.Run(ctx)
}
