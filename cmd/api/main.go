package main

import (
	"cmp"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptlyprinted/promptly-backend/api/routes"
	"github.com/promptlyprinted/promptly-backend/internal/bootstrap"
	"github.com/promptlyprinted/promptly-backend/internal/fulfillment"
	"github.com/promptlyprinted/promptly-backend/internal/orders"
	"github.com/promptlyprinted/promptly-backend/internal/webhooks"
	prodigiwebhook "github.com/promptlyprinted/promptly-backend/internal/webhooks/prodigi"
	squarewebhook "github.com/promptlyprinted/promptly-backend/internal/webhooks/square"
	stripewebhook "github.com/promptlyprinted/promptly-backend/internal/webhooks/stripe"
	"github.com/promptlyprinted/promptly-backend/pkg/config"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/metrics"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox"
	"github.com/promptlyprinted/promptly-backend/pkg/prodigi"
	"github.com/promptlyprinted/promptly-backend/pkg/redis"
	"github.com/promptlyprinted/promptly-backend/pkg/square"
	"github.com/promptlyprinted/promptly-backend/pkg/storage/gcs"
	"github.com/promptlyprinted/promptly-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	bootstrap.Main("api", run)
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

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return err
	}
	defer bootstrap.CloseWith(logg, "gcs", gcsClient.Close)

	prodigiClient, err := prodigi.NewClient(ctx, cfg.Prodigi, logg)
	if err != nil {
		return err
	}
	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}
	gateways := map[enums.PaymentProvider]fulfillment.PaymentGateway{
		enums.PaymentProviderStripe: fulfillment.NewStripeGateway(stripeClient),
	}
	var squareClient *square.Client
	if strings.TrimSpace(cfg.Square.AccessToken) != "" {
		squareClient, err = square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return err
		}
		gateways[enums.PaymentProviderSquare] = fulfillment.NewSquareGateway(squareClient)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersSvc, err := orders.NewService(ordersRepo, outboxSvc, logg)
	if err != nil {
		return err
	}

	finalizer, err := fulfillment.NewService(fulfillment.ServiceParams{
		Gateways:       gateways,
		Orders:         ordersRepo,
		OrderService:   ordersSvc,
		Tx:             dbClient,
		Outbox:         outboxSvc,
		Prodigi:        prodigiClient,
		Assets:         gcsClient,
		Locks:          redisClient,
		Metrics:        metrics.NewFulfillmentMetrics(registry),
		Logger:         logg,
		ShippingMethod: cfg.Prodigi.ShippingMethod,
		CallbackURL:    cfg.Prodigi.CallbackURL,
	})
	if err != nil {
		return err
	}

	prodigiSvc, err := prodigiwebhook.NewService(prodigiwebhook.ServiceParams{
		Orders:       ordersRepo,
		OrderService: ordersSvc,
		Tx:           dbClient,
		Outbox:       outboxSvc,
		Logger:       logg,
	})
	if err != nil {
		return err
	}
	stripeSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{Finalizer: finalizer, Logger: logg})
	if err != nil {
		return err
	}

	deps := routes.Deps{
		DB:             dbClient,
		Redis:          redisClient,
		Storage:        gcsClient,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		WebhookMetrics: webhookMetrics,
		Finalizer:      finalizer,
		OrdersService:  ordersSvc,
		ProdigiWebhook: prodigiSvc,
		StripeClient:   stripeClient,
		StripeWebhook:  stripeSvc,
		SquareClient:   squareClient,
	}
	if deps.ProdigiGuard, err = webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, webhooks.ScopeProdigi); err != nil {
		return err
	}
	if deps.StripeGuard, err = webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, webhooks.ScopeStripe); err != nil {
		return err
	}
	if squareClient != nil {
		if deps.SquareWebhook, err = squarewebhook.NewService(squarewebhook.ServiceParams{Finalizer: finalizer, Logger: logg}); err != nil {
			return err
		}
		if deps.SquareGuard, err = webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, webhooks.ScopeSquare); err != nil {
			return err
		}
	}

	port := cmp.Or(os.Getenv("PORT"), cfg.App.Port)
	ctx = logg.WithFields(ctx, map[string]any{
		"addr":            ":" + port,
		"prodigi_env":     prodigiClient.Environment(),
		"square_enabled":  squareClient != nil,
		"payment_clients": len(gateways),
	})
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	return serve(ctx, server, logg)
}

// serve runs server until ctx is cancelled, then drains in-flight requests
// for up to shutdownTimeout.
func serve(ctx context.Context, server *http.Server, logg *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
