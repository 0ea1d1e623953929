package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox/payloads"
	"github.com/promptlyprinted/promptly-backend/pkg/pagination"
)

// StuckFulfillmentPrefix starts every processing error raised by the
// reconciliation job, so an order is flagged at most once.
const StuckFulfillmentPrefix = "stuck fulfillment"

// UnrecordedPlacementPrefix starts the processing error written when Prodigi
// accepted an order but the local record of it failed. The Prodigi id follows
// the prefix so a retry can recover the placement instead of repeating it.
const UnrecordedPlacementPrefix = "prodigi order placed but not recorded"

// UnrecordedPlacementError formats the processing error for an accepted but
// unrecorded placement.
func UnrecordedPlacementError(prodigiOrderID string, cause error) string {
	return fmt.Sprintf("%s: %s: %v", UnrecordedPlacementPrefix, prodigiOrderID, cause)
}

// ParseUnrecordedPlacement extracts the Prodigi id from a message built by
// UnrecordedPlacementError.
func ParseUnrecordedPlacement(message string) (string, bool) {
	rest, ok := strings.CutPrefix(message, UnrecordedPlacementPrefix+": ")
	if !ok {
		return "", false
	}
	id, _, _ := strings.Cut(rest, ": ")
	id = strings.TrimSpace(id)
	return id, id != ""
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	ApplyStatus(ctx context.Context, tx *gorm.DB, order *models.Order, change StatusChange) (StatusOutcome, error)
	GetDetail(ctx context.Context, orderID uint) (*OrderDetail, error)
	ListProcessingErrors(ctx context.Context, params ProcessingErrorParams) (*ProcessingErrorList, error)
}

// StatusChange requests a move of an order to Target.
type StatusChange struct {
	Target     enums.OrderStatus
	Reason     string
	Source     enums.OrderEventSource
	EventID    string
	OccurredAt time.Time
	// AllowReopen permits CANCELED -> COMPLETED. Only the operator retry sets it.
	AllowReopen bool
}

// StatusOutcome reports what ApplyStatus did.
type StatusOutcome struct {
	From       enums.OrderStatus
	To         enums.OrderStatus
	Transition enums.Transition
	Applied    bool
}

type service struct {
	repo   Repository
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService wires the order service.
func NewService(repo Repository, outbox outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, outbox: outbox, logg: logg}, nil
}

// ApplyStatus runs the order status state machine inside tx. Rejected moves
// are logged and reported, never returned as errors.
func (s *service) ApplyStatus(ctx context.Context, tx *gorm.DB, order *models.Order, change StatusChange) (StatusOutcome, error) {
	if tx == nil {
		return StatusOutcome{}, errors.New("transaction required")
	}
	if order == nil {
		return StatusOutcome{}, errors.New("order required")
	}

	outcome := StatusOutcome{
		From:       order.Status,
		To:         change.Target,
		Transition: order.Status.TransitionTo(change.Target),
	}
	if outcome.Transition == enums.TransitionReopen && !change.AllowReopen {
		outcome.Transition = enums.TransitionRejected
	}

	switch outcome.Transition {
	case enums.TransitionNoop:
		return outcome, nil
	case enums.TransitionRejected:
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID,
			"from":     order.Status,
			"to":       change.Target,
			"source":   change.Source,
			"reason":   change.Reason,
		})
		s.logg.Warn(logCtx, "order status transition rejected")
		return outcome, nil
	}

	repo := s.repo.WithTx(tx)
	if err := repo.UpdateStatus(ctx, order.ID, change.Target); err != nil {
		return outcome, fmt.Errorf("update order status: %w", err)
	}

	occurredAt := change.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	eventID := change.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	source := change.Source
	if source == "" {
		source = enums.OrderEventSourceCheckout
	}

	if _, err := repo.AppendEvent(ctx, &models.OrderEvent{
		OrderID: order.ID,
		EventID: eventID,
		Source:  source,
		Kind:    enums.OrderEventStatusChanged,
		Payload: map[string]any{
			"from":   string(order.Status),
			"to":     string(change.Target),
			"reason": change.Reason,
		},
		OccurredAt: occurredAt,
	}); err != nil {
		return outcome, fmt.Errorf("append status event: %w", err)
	}

	event := outbox.OrderEvent(enums.EventOrderStatusChanged, order.ID, &outbox.ActorRef{Source: string(source)}, payloads.StatusChangedEvent{
		OrderID: order.ID,
		From:    order.Status,
		To:      change.Target,
		Reason:  change.Reason,
		Source:  source,
	})
	event.OccurredAt = occurredAt
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return outcome, fmt.Errorf("emit status changed: %w", err)
	}

	order.Status = change.Target
	outcome.Applied = true
	return outcome, nil
}

func (s *service) GetDetail(ctx context.Context, orderID uint) (*OrderDetail, error) {
	order, err := s.repo.FindDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return newOrderDetail(order), nil
}

func (s *service) ListProcessingErrors(ctx context.Context, params ProcessingErrorParams) (*ProcessingErrorList, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.OrderID != nil {
		if _, err := s.repo.FindByID(ctx, *params.OrderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
	}
	list, err := s.repo.ListProcessingErrors(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list processing errors")
	}
	return list, nil
}
