package prodigiwebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/promptlyprinted/promptly-backend/internal/orders"
	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox/payloads"
	"github.com/promptlyprinted/promptly-backend/pkg/prodigi"
	"github.com/promptlyprinted/promptly-backend/pkg/types"
)

// DeliverySource labels rows in the webhook delivery ledger.
const DeliverySource = "prodigi"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service folds Prodigi order callbacks into the local order.
type Service interface {
	HandleEvent(ctx context.Context, event *CloudEvent) (*Result, error)
}

// Result summarises one processed delivery.
type Result struct {
	EventID          string
	OrderID          uint
	Duplicate        bool
	Outcome          string
	ShipmentsCreated int
	ShipmentsUpdated int
	ProcessingErrors int
}

type ServiceParams struct {
	Orders       orders.Repository
	OrderService orders.Service
	Tx           txRunner
	Outbox       outboxPublisher
	Logger       *logger.Logger
	Now          func() time.Time
}

type service struct {
	repo   orders.Repository
	orders orders.Service
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.OrderService == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	svc := &service{
		repo:   params.Orders,
		orders: params.OrderService,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    params.Now,
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

// HandleEvent validates the envelope, then applies every effect of the
// delivery in one transaction: ledger row, breadcrumb, status change,
// shipments and issues. A delivery whose id is already in the ledger is a
// no-op.
func (s *service) HandleEvent(ctx context.Context, event *CloudEvent) (*Result, error) {
	eventType, err := event.Validate()
	if err != nil {
		return nil, err
	}
	eventID := event.EnsureID()
	ctx = s.logg.WithEventID(ctx, eventID)
	if err := event.DecodeOrder(); err != nil {
		return nil, err
	}

	order, err := s.repo.FindByProdigiOrderID(ctx, event.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
				WithDetails(map[string]any{"subject": event.Subject})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup order")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID)

	result := &Result{EventID: eventID, OrderID: order.ID}
	receivedAt := s.now()
	occurredAt := event.OccurredAt(receivedAt)
	providerOrder := event.Order()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		recorded, err := repo.RecordDelivery(ctx, &models.WebhookDelivery{
			EventID:    eventID,
			Source:     DeliverySource,
			OrderID:    &order.ID,
			Type:       event.Type,
			ReceivedAt: receivedAt,
		})
		if err != nil {
			return fmt.Errorf("record delivery: %w", err)
		}
		if !recorded {
			result.Duplicate = true
			return nil
		}

		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("reload order: %w", err)
		}

		stage := strings.TrimSpace(providerOrder.Status.Stage)
		if eventType.IsStageChange {
			stage = eventType.Value
			outcome, err := s.applyStage(ctx, tx, current, eventType.Value, eventID, occurredAt)
			if err != nil {
				return err
			}
			result.Outcome = outcome
		}

		// The provider's stage is stored even when the status change is
		// rejected, so prodigi_stage always mirrors what Prodigi reported.
		if stage != "" {
			if err := repo.UpdateFulfillment(ctx, current.ID, orders.FulfillmentUpdate{Stage: &stage}); err != nil {
				return fmt.Errorf("update stage: %w", err)
			}
		}

		if err := s.appendBreadcrumb(ctx, repo, current.ID, event, stage, result.Outcome, occurredAt, providerOrder.Status); err != nil {
			return err
		}
		if err := s.upsertShipments(ctx, tx, repo, current.ID, eventID, occurredAt, providerOrder.Shipments, result); err != nil {
			return err
		}
		return s.recordIssues(ctx, repo, current.ID, eventID, occurredAt, providerOrder.Status.Issues, result)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply prodigi event")
	}
	return result, nil
}

func (s *service) applyStage(ctx context.Context, tx *gorm.DB, order *models.Order, value, eventID string, occurredAt time.Time) (string, error) {
	target, known := enums.ProdigiStage(value).OrderStatus()
	if !known {
		s.logg.Warn(s.logg.WithField(ctx, "stage", value), "unknown prodigi stage; treating as PENDING")
	}
	change, err := s.orders.ApplyStatus(ctx, tx, order, orders.StatusChange{
		Target:     target,
		Reason:     "prodigi stage " + value,
		Source:     enums.OrderEventSourceProdigi,
		EventID:    eventID + ":status",
		OccurredAt: occurredAt,
	})
	if err != nil {
		return "", err
	}
	switch {
	case change.Applied:
		return orders.OutcomeApplied, nil
	case change.Transition == enums.TransitionNoop:
		return orders.OutcomeNoop, nil
	default:
		return orders.OutcomeRejected, nil
	}
}

func (s *service) appendBreadcrumb(ctx context.Context, repo orders.Repository, orderID uint, event *CloudEvent, stage, outcome string, occurredAt time.Time, status prodigi.Status) error {
	blob, err := types.ToJSONMap(status)
	if err != nil {
		return fmt.Errorf("encode provider status: %w", err)
	}
	payload := types.JSONMap{
		"eventId": event.ID,
		"type":    event.Type,
		"time":    occurredAt.Format(time.RFC3339Nano),
		"stage":   stage,
		"status":  map[string]any(blob),
	}
	if outcome != "" {
		payload["outcome"] = outcome
	}
	_, err = repo.AppendEvent(ctx, &models.OrderEvent{
		OrderID:    orderID,
		EventID:    event.ID,
		Source:     enums.OrderEventSourceProdigi,
		Kind:       enums.OrderEventProviderUpdate,
		Payload:    payload,
		OccurredAt: occurredAt,
	})
	if err != nil {
		return fmt.Errorf("append breadcrumb: %w", err)
	}
	return nil
}

func (s *service) upsertShipments(ctx context.Context, tx *gorm.DB, repo orders.Repository, orderID uint, eventID string, occurredAt time.Time, shipments []prodigi.Shipment, result *Result) error {
	if len(shipments) == 0 {
		return nil
	}
	ids := make([]any, 0, len(shipments))
	for _, sh := range shipments {
		if strings.TrimSpace(sh.ID) == "" {
			s.logg.Warn(ctx, "shipment without id skipped")
			continue
		}
		row := shipmentRow(orderID, sh)
		created, err := repo.UpsertShipment(ctx, row)
		if err != nil {
			return fmt.Errorf("upsert shipment %s: %w", sh.ID, err)
		}
		ids = append(ids, sh.ID)
		if !created {
			result.ShipmentsUpdated++
			continue
		}
		result.ShipmentsCreated++
		if err := s.outbox.Emit(ctx, tx, outbox.OrderEvent(enums.EventOrderShipped, orderID, &outbox.ActorRef{Source: DeliverySource}, payloads.ShippedEvent{
			OrderID:           orderID,
			ProdigiShipmentID: row.ProdigiShipmentID,
			Carrier:           row.Carrier,
			TrackingNumber:    row.TrackingNumber,
			TrackingURL:       row.TrackingURL,
			DispatchedAt:      row.DispatchedAt,
		})); err != nil {
			return fmt.Errorf("emit shipped: %w", err)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.AppendEvent(ctx, &models.OrderEvent{
		OrderID:    orderID,
		EventID:    eventID + ":shipments",
		Source:     enums.OrderEventSourceProdigi,
		Kind:       enums.OrderEventShipmentsUpdated,
		Payload:    types.JSONMap{"shipments": ids},
		OccurredAt: occurredAt,
	})
	return err
}

func shipmentRow(orderID uint, sh prodigi.Shipment) *models.Shipment {
	row := &models.Shipment{
		OrderID:           orderID,
		ProdigiShipmentID: sh.ID,
		Carrier:           sh.Carrier.Name,
		Service:           sh.Carrier.Service,
		Status:            sh.Status,
		Items:             types.StringList{},
	}
	if sh.Tracking != nil {
		if n := strings.TrimSpace(sh.Tracking.Number); n != "" {
			row.TrackingNumber = &n
		}
		if u := strings.TrimSpace(sh.Tracking.URL); u != "" {
			row.TrackingURL = &u
		}
	}
	if sh.DispatchDate != nil {
		at := sh.DispatchDate.UTC()
		row.DispatchedAt = &at
	}
	for _, item := range sh.Items {
		row.Items = append(row.Items, item.ItemID)
	}
	return row
}

// isFailureCode reports whether an issue needs manual intervention.
func isFailureCode(code string) bool {
	return strings.Contains(code, "Failed") || strings.Contains(code, "Error")
}

func (s *service) recordIssues(ctx context.Context, repo orders.Repository, orderID uint, eventID string, occurredAt time.Time, issues []prodigi.Issue, result *Result) error {
	if len(issues) == 0 {
		return nil
	}
	list := make([]any, 0, len(issues))
	for _, issue := range issues {
		list = append(list, map[string]any{
			"objectId":    issue.ObjectID,
			"errorCode":   issue.ErrorCode,
			"description": issue.Description,
		})
	}
	if _, err := repo.AppendEvent(ctx, &models.OrderEvent{
		OrderID:    orderID,
		EventID:    eventID + ":issues",
		Source:     enums.OrderEventSourceProdigi,
		Kind:       enums.OrderEventIssuesReported,
		Payload:    types.JSONMap{"issues": list},
		OccurredAt: occurredAt,
	}); err != nil {
		return fmt.Errorf("append issues: %w", err)
	}

	for _, issue := range issues {
		if !isFailureCode(issue.ErrorCode) {
			continue
		}
		if err := repo.CreateProcessingError(ctx, &models.OrderProcessingError{
			OrderID:       orderID,
			Error:         issue.ErrorCode + ": " + issue.Description,
			LastAttemptAt: occurredAt,
		}); err != nil {
			return fmt.Errorf("record processing error: %w", err)
		}
		result.ProcessingErrors++
	}
	s.logg.Warn(s.logg.WithField(ctx, "issues", len(issues)), "prodigi reported order issues")
	return nil
}
