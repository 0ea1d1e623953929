package squarewebhook

import (
	"context"
	"errors"
	"strings"

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

// Service finalizes Square-paid orders when Square reports the payment
// completed.
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

type SquareWebhookEvent struct {
	EventID string            `json:"event_id"`
	Type    string            `json:"type"`
	Data    SquareWebhookData `json:"data"`
}

type SquareWebhookData struct {
	Type   string              `json:"type"`
	ID     string              `json:"id"`
	Object SquareWebhookObject `json:"object"`
}

type SquareWebhookObject struct {
	Payment *SquarePayment `json:"payment"`
}

// SquarePayment is the subset of the payment object the webhook needs.
type SquarePayment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
}

// HandleEvent processes payment.created and payment.updated. Payments that
// are not COMPLETED are ignored; Square sends another update when they are.
func (s *Service) HandleEvent(ctx context.Context, event *SquareWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
		payment := event.Data.Object.Payment
		if payment == nil || strings.TrimSpace(payment.ID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
		}
		if !strings.EqualFold(payment.Status, "COMPLETED") {
			return nil
		}
		result, err := s.finalizer.FinalizeCheckout(ctx, enums.PaymentProviderSquare, payment.ID)
		if err != nil {
			if errors.Is(err, fulfillment.ErrSessionUnresolvable) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve square payment")
			}
			return err
		}
		if result.FulfillmentIssue {
			s.logg.Warn(s.logg.WithOrderID(ctx, result.OrderID), "square payment finalized with a fulfillment issue")
		}
		return nil
	default:
		return nil
	}
}
