package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/promptlyprinted/promptly-backend/api/controllers"
	admincontrollers "github.com/promptlyprinted/promptly-backend/api/controllers/admin"
	webhookcontrollers "github.com/promptlyprinted/promptly-backend/api/controllers/webhooks"
	"github.com/promptlyprinted/promptly-backend/api/middleware"
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
	"github.com/promptlyprinted/promptly-backend/pkg/redis"
	"github.com/promptlyprinted/promptly-backend/pkg/square"
	"github.com/promptlyprinted/promptly-backend/pkg/stripe"
)

type redisStore interface {
	redis.Pinger
	middleware.IdempotencyStore
}

// retryKeyTTL is how long a fulfillment retry response is replayed.
const retryKeyTTL = 7 * 24 * time.Hour

// Deps carries everything the router wires into handlers. Square entries are
// optional; the Square webhook route is only mounted when they are set.
type Deps struct {
	DB             controllers.Pinger
	Redis          redisStore
	Storage        controllers.Pinger
	MetricsHandler http.Handler
	WebhookMetrics *metrics.WebhookMetrics

	Finalizer     fulfillment.Service
	OrdersService orders.Service

	ProdigiWebhook prodigiwebhook.Service
	ProdigiGuard   *webhooks.IdempotencyGuard

	StripeClient  *stripe.Client
	StripeWebhook *stripewebhook.Service
	StripeGuard   *webhooks.IdempotencyGuard

	SquareClient  *square.Client
	SquareWebhook *squarewebhook.Service
	SquareGuard   *webhooks.IdempotencyGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":      deps.DB,
			"redis":   deps.Redis,
			"storage": deps.Storage,
		}))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Get("/api/v1/checkout/success", controllers.CheckoutSuccess(deps.Finalizer, logg))

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/prodigi", webhookcontrollers.ProdigiWebhook(deps.ProdigiWebhook, guardOrNil(deps.ProdigiGuard), deps.WebhookMetrics, logg))
		if deps.StripeWebhook != nil && deps.StripeClient != nil {
			r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeClient, guardOrNil(deps.StripeGuard), deps.WebhookMetrics, logg))
		}
		if deps.SquareWebhook != nil && deps.SquareClient != nil {
			r.Post("/square", webhookcontrollers.SquareWebhook(deps.SquareWebhook, deps.SquareClient, cfg.Square.WebhookURL, guardOrNil(deps.SquareGuard), deps.WebhookMetrics, logg))
		}
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.StaffRoleAdmin, enums.StaffRoleSupport))
		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/orders/{orderId}", func(r chi.Router) {
			r.Get("/", admincontrollers.OrderDetail(deps.OrdersService, logg))
			r.Get("/processing-errors", admincontrollers.ProcessingErrors(deps.OrdersService, logg))
			r.With(
				middleware.RequireRole(logg, enums.StaffRoleAdmin),
				middleware.Idempotency(deps.Redis, retryKeyTTL, logg),
			).Post("/fulfillment/retry", admincontrollers.RetryFulfillment(deps.Finalizer, logg))
		})
	})

	return r
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// guardOrNil keeps a nil guard pointer from becoming a non-nil interface.
func guardOrNil(g *webhooks.IdempotencyGuard) webhookGuard {
	if g == nil {
		return nil
	}
	return g
}
