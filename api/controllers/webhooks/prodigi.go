package webhooks

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/promptlyprinted/promptly-backend/api/responses"
	prodigiwebhook "github.com/promptlyprinted/promptly-backend/internal/webhooks/prodigi"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/metrics"
)

type ProdigiWebhookService interface {
	HandleEvent(ctx context.Context, event *prodigiwebhook.CloudEvent) (*prodigiwebhook.Result, error)
}

type prodigiAck struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// ProdigiWebhook consumes Prodigi order callbacks. Once an event passes
// validation the response is 200 whatever happens next, so Prodigi does not
// hammer the endpoint with redeliveries of an event that failed internally.
// An unknown order is the one exception and answers 404.
func ProdigiWebhook(svc ProdigiWebhookService, guard webhookGuard, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var event prodigiwebhook.CloudEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			m.Observe(prodigiwebhook.DeliverySource, metrics.WebhookResultRejected)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event body"))
			return
		}
		if _, err := event.Validate(); err != nil {
			m.Observe(prodigiwebhook.DeliverySource, metrics.WebhookResultRejected)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		eventID := event.EnsureID()
		if logg != nil {
			ctx = logg.WithFields(logg.WithEventID(ctx, eventID), map[string]any{
				"event_type": event.Type,
				"subject":    event.Subject,
			})
		}

		if err := event.DecodeOrder(); err != nil {
			// The envelope is valid; a redelivery would carry the same payload.
			m.Observe(prodigiwebhook.DeliverySource, metrics.WebhookResultFailed)
			if logg != nil {
				logg.Error(ctx, "prodigi order payload undecodable", err)
			}
			responses.WriteSuccess(w, prodigiAck{Received: true, EventID: eventID})
			return
		}

		if guard != nil {
			seen, err := guard.CheckAndMark(ctx, eventID)
			switch {
			case err != nil:
				// The delivery ledger still deduplicates inside the transaction.
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "webhook idempotency guard unavailable")
				}
			case seen:
				m.Observe(prodigiwebhook.DeliverySource, metrics.WebhookResultDuplicate)
				responses.WriteSuccess(w, prodigiAck{Received: true, EventID: eventID, Duplicate: true})
				return
			}
		}

		result, err := svc.HandleEvent(ctx, &event)
		if err != nil {
			releaseGuard(ctx, guard, eventID, logg)
			switch pkgerrors.CodeOf(err) {
			case pkgerrors.CodeNotFound:
				m.Observe(prodigiwebhook.DeliverySource, metrics.WebhookResultNotFound)
				responses.WriteError(ctx, logg, w, err)
			case pkgerrors.CodeValidation:
				m.Observe(prodigiwebhook.DeliverySource, metrics.WebhookResultRejected)
				responses.WriteError(ctx, logg, w, err)
			default:
				m.Observe(prodigiwebhook.DeliverySource, metrics.WebhookResultFailed)
				if logg != nil {
					logg.Error(ctx, "prodigi event processing failed", err)
				}
				responses.WriteSuccess(w, prodigiAck{Received: true, EventID: eventID})
			}
			return
		}

		if result.Duplicate {
			m.Observe(prodigiwebhook.DeliverySource, metrics.WebhookResultDuplicate)
		} else {
			m.Observe(prodigiwebhook.DeliverySource, metrics.WebhookResultProcessed)
		}
		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"order_id":          result.OrderID,
				"outcome":           result.Outcome,
				"duplicate":         result.Duplicate,
				"shipments_created": result.ShipmentsCreated,
				"shipments_updated": result.ShipmentsUpdated,
				"processing_errors": result.ProcessingErrors,
			}), "prodigi event processed")
		}
		responses.WriteSuccess(w, prodigiAck{Received: true, EventID: eventID, Duplicate: result.Duplicate})
	}
}
