package webhooks

import (
	"context"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/metrics"
)

const stripeSignatureHeader = "Stripe-Signature"

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// StripeWebhook verifies Stripe deliveries against the signing secret and
// hands them to svc.
func StripeWebhook(svc StripeWebhookService, client signingClient, guard webhookGuard, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	switch {
	case svc == nil:
		return unavailable("stripe webhook service")
	case client == nil:
		return unavailable("stripe client")
	}
	verify := func(r *http.Request, body []byte) (*delivery, error) {
		sig := r.Header.Get(stripeSignatureHeader)
		if sig == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
		}
		event, err := webhook.ConstructEvent(body, sig, client.SigningSecret())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify signature")
		}
		return &delivery{
			id:     event.ID,
			kind:   string(event.Type),
			handle: func(ctx context.Context) error { return svc.HandleEvent(ctx, &event) },
		}, nil
	}
	return paymentWebhook("stripe", verify, guard, m, logg)
}
