package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/promptlyprinted/promptly-backend/internal/fulfillment"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
)

type checkoutFinalizer interface {
	FinalizeCheckout(ctx context.Context, provider enums.PaymentProvider, sessionID string) (*fulfillment.Result, error)
}

type ServiceParams struct {
	Finalizer checkoutFinalizer
	Logger    *logger.Logger
}

// Service re-enters the checkout finalizer from Stripe's side, so a paid
// order is fulfilled even when the customer never reaches the success page.
type Service struct {
	finalizer checkoutFinalizer
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Finalizer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout finalizer required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{finalizer: params.Finalizer, logg: logg}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		if strings.TrimSpace(sess.ID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
		}
		result, err := s.finalizer.FinalizeCheckout(ctx, enums.PaymentProviderStripe, sess.ID)
		if err != nil {
			if errors.Is(err, fulfillment.ErrSessionUnresolvable) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
			}
			return err
		}
		if result.FulfillmentIssue {
			s.logg.Warn(s.logg.WithOrderID(ctx, result.OrderID), "checkout finalized with a fulfillment issue")
		}
		return nil
	default:
		return nil
	}
}
