package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/promptlyprinted/promptly-backend/api/responses"
	"github.com/promptlyprinted/promptly-backend/internal/fulfillment"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
)

type checkoutFinalizer interface {
	FinalizeCheckout(ctx context.Context, provider enums.PaymentProvider, sessionID string) (*fulfillment.Result, error)
}

// CheckoutSuccess backs the page the payment provider returns the customer
// to. A session that cannot be resolved sends the customer home.
func CheckoutSuccess(svc checkoutFinalizer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout finalizer unavailable"))
			return
		}

		query := r.URL.Query()
		provider, err := enums.ParsePaymentProvider(query.Get("provider"))
		if err != nil {
			redirectHome(ctx, logg, w, r, err)
			return
		}
		sessionID := strings.TrimSpace(query.Get("session_id"))
		if sessionID == "" && provider == enums.PaymentProviderSquare {
			sessionID = strings.TrimSpace(query.Get("payment_id"))
		}

		result, err := svc.FinalizeCheckout(ctx, provider, sessionID)
		if err != nil {
			if errors.Is(err, fulfillment.ErrSessionUnresolvable) {
				redirectHome(ctx, logg, w, r, err)
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func redirectHome(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, r *http.Request, cause error) {
	if logg != nil {
		logg.Warn(logg.WithField(ctx, "reason", cause.Error()), "checkout session unresolvable; redirecting home")
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
