package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/promptlyprinted/promptly-backend/api/responses"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/metrics"
)

const maxBodyBytes = 1 << 20

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type signingClient interface {
	SigningSecret() string
}

// delivery is a payment notification whose signature has been checked.
type delivery struct {
	id     string
	kind   string
	handle func(ctx context.Context) error
}

// verifyFunc authenticates and decodes a raw body. Its errors are reported
// as rejected deliveries.
type verifyFunc func(r *http.Request, body []byte) (*delivery, error)

// paymentWebhook is the shared flow for payment providers: verify, claim the
// event id, handle. Any failure answers non-2xx so the provider redelivers,
// and a handler failure releases the claim first.
func paymentWebhook(source string, verify verifyFunc, guard webhookGuard, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}
		d, err := verify(r, body)
		if err != nil {
			m.Observe(source, metrics.WebhookResultRejected)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithField(logg.WithEventID(ctx, d.id), "event_type", d.kind)

		seen, err := guard.CheckAndMark(ctx, d.id)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if seen {
			m.Observe(source, metrics.WebhookResultDuplicate)
			responses.WriteSuccess(w, nil)
			return
		}

		if err := d.handle(ctx); err != nil {
			releaseGuard(ctx, guard, d.id, logg)
			m.Observe(source, metrics.WebhookResultFailed)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		m.Observe(source, metrics.WebhookResultProcessed)
		logg.Info(ctx, source+" event processed")
		responses.WriteSuccess(w, nil)
	}
}

func unavailable(what string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeInternal, what+" unavailable"))
	}
}

// releaseGuard clears the claim so a redelivery is processed again.
func releaseGuard(ctx context.Context, guard webhookGuard, eventID string, logg *logger.Logger) {
	if guard == nil || eventID == "" {
		return
	}
	if err := guard.Delete(context.WithoutCancel(ctx), eventID); err != nil && logg != nil {
		logg.Error(ctx, "release webhook idempotency key", err)
	}
}
