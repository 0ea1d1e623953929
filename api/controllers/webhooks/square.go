package webhooks

import (
	"cmp"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	squarewebhook "github.com/promptlyprinted/promptly-backend/internal/webhooks/square"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/metrics"
)

const squareSignatureHeader = "X-Square-Hmacsha256-Signature"

type SquareWebhookService interface {
	HandleEvent(ctx context.Context, event *squarewebhook.SquareWebhookEvent) error
}

// SquareWebhook verifies Square payment notifications. notificationURL must
// be the exact URL registered with Square since it is part of the signed
// content.
func SquareWebhook(svc SquareWebhookService, client signingClient, notificationURL string, guard webhookGuard, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	switch {
	case svc == nil:
		return unavailable("square webhook service")
	case client == nil:
		return unavailable("square client")
	}
	verify := func(r *http.Request, body []byte) (*delivery, error) {
		sig := r.Header.Get(squareSignatureHeader)
		if sig == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "square signature missing")
		}
		if !validateSquareSignature(body, notificationURL, client.SigningSecret(), sig) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "invalid square signature")
		}
		var event squarewebhook.SquareWebhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event")
		}
		return &delivery{
			id:     cmp.Or(strings.TrimSpace(event.EventID), event.Data.ID),
			kind:   event.Type,
			handle: func(ctx context.Context) error { return svc.HandleEvent(ctx, &event) },
		}, nil
	}
	return paymentWebhook("square", verify, guard, m, logg)
}

// validateSquareSignature checks base64(HMAC-SHA256(secret, url+body)).
func validateSquareSignature(payload []byte, notificationURL, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(notificationURL))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}
