package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/promptlyprinted/promptly-backend/internal/orders"
	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	pkgerrors "github.com/promptlyprinted/promptly-backend/pkg/errors"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/metrics"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox/payloads"
	"github.com/promptlyprinted/promptly-backend/pkg/prodigi"
	"github.com/promptlyprinted/promptly-backend/pkg/redis"
	"github.com/promptlyprinted/promptly-backend/pkg/types"
)

var (
	// ErrSessionUnresolvable means the checkout session id was missing or the
	// payment provider could not return it.
	ErrSessionUnresolvable = errors.New("checkout session cannot be resolved")
	// ErrRecipientMissing means a paid order has nowhere to ship to.
	ErrRecipientMissing = errors.New("order has no recipient")
)

// Recipient placeholders used when the provider did not collect a field.
const (
	PlaceholderText       = "Pending"
	PlaceholderPostalCode = "00000"
	PlaceholderCountry    = "US"
)

const (
	defaultShippingMethod = "Standard"
	defaultLockTTL        = 2 * time.Minute
	lockScope             = "fulfillment"
	placementRecovered    = "Recovered"
)

const (
	messagePlaced  = "Thank you! Your order has been received and is being prepared for printing."
	messageIssue   = "Thank you! Your payment was received, but we ran into an issue preparing your order. Our support team has been notified and is resolving it."
	messageUnpaid  = "Your payment has not been completed yet."
	messagePending = "Thank you! Your order is already being prepared."
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type printProvider interface {
	CreateOrder(ctx context.Context, req prodigi.CreateOrderRequest) (*prodigi.CreateOrderResponse, error)
	GetOrder(ctx context.Context, prodigiOrderID string) (*prodigi.Order, error)
	KeyDiagnostics() (present bool, length int)
}

// LockStore is the redis surface used to serialize placements per order.
type LockStore interface {
	redis.Store
	LockKey(scope, id string) string
}

// Service finalizes paid checkouts and places print orders.
type Service interface {
	FinalizeCheckout(ctx context.Context, provider enums.PaymentProvider, sessionID string) (*Result, error)
	RetryFulfillment(ctx context.Context, orderID uint) (*Result, error)
}

// Result is what the checkout success page renders.
type Result struct {
	OrderID          uint                  `json:"order_id,omitempty"`
	SessionID        string                `json:"session_id"`
	Provider         enums.PaymentProvider `json:"provider"`
	PaymentStatus    enums.PaymentStatus   `json:"payment_status"`
	Status           enums.OrderStatus     `json:"status,omitempty"`
	ProdigiOrderID   string                `json:"prodigi_order_id,omitempty"`
	FulfillmentIssue bool                  `json:"fulfillment_issue"`
	Message          string                `json:"message"`
}

// ServiceParams groups the finalizer dependencies.
type ServiceParams struct {
	Gateways       map[enums.PaymentProvider]PaymentGateway
	Orders         orders.Repository
	OrderService   orders.Service
	Tx             txRunner
	Outbox         outboxPublisher
	Prodigi        printProvider
	Assets         assetResolver
	Locks          LockStore
	LockTTL        time.Duration
	Metrics        *metrics.FulfillmentMetrics
	Logger         *logger.Logger
	ShippingMethod string
	CallbackURL    string
	Now            func() time.Time
}

type service struct {
	gateways       map[enums.PaymentProvider]PaymentGateway
	repo           orders.Repository
	orders         orders.Service
	tx             txRunner
	outbox         outboxPublisher
	prodigi        printProvider
	assets         assetResolver
	locks          LockStore
	lockTTL        time.Duration
	metrics        *metrics.FulfillmentMetrics
	logg           *logger.Logger
	shippingMethod string
	callbackURL    string
	now            func() time.Time
}

// NewService builds the checkout finalizer.
func NewService(params ServiceParams) (Service, error) {
	if len(params.Gateways) == 0 {
		return nil, fmt.Errorf("at least one payment gateway required")
	}
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
	if params.Prodigi == nil {
		return nil, fmt.Errorf("prodigi client required")
	}
	if params.Assets == nil {
		return nil, fmt.Errorf("asset resolver required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock store required")
	}
	svc := &service{
		gateways:       params.Gateways,
		repo:           params.Orders,
		orders:         params.OrderService,
		tx:             params.Tx,
		outbox:         params.Outbox,
		prodigi:        params.Prodigi,
		assets:         params.Assets,
		locks:          params.Locks,
		lockTTL:        params.LockTTL,
		metrics:        params.Metrics,
		logg:           params.Logger,
		shippingMethod: strings.TrimSpace(params.ShippingMethod),
		callbackURL:    strings.TrimSpace(params.CallbackURL),
		now:            params.Now,
	}
	if svc.lockTTL <= 0 {
		svc.lockTTL = defaultLockTTL
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.shippingMethod == "" {
		svc.shippingMethod = defaultShippingMethod
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

// FinalizeCheckout records a paid checkout against its order and places the
// print order. Fulfillment failures never surface as errors: the order is
// canceled, the failure is recorded, and the result carries an issue flag.
func (s *service) FinalizeCheckout(ctx context.Context, provider enums.PaymentProvider, sessionID string) (*Result, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrSessionUnresolvable)
	}
	gateway, ok := s.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("%w: payment provider %q not configured", ErrSessionUnresolvable, provider)
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"session_id": sessionID, "provider": provider})
	session, err := gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "checkout session retrieve failed")
		return nil, fmt.Errorf("%w: %v", ErrSessionUnresolvable, err)
	}
	s.metrics.ObserveCheckout(string(provider), string(session.PaymentStatus))

	result := &Result{
		SessionID:     session.ID,
		Provider:      provider,
		PaymentStatus: session.PaymentStatus,
		Message:       messageUnpaid,
	}
	orderID, hasOrder := session.OrderID()
	if hasOrder {
		result.OrderID = orderID
	}
	if session.PaymentStatus != enums.PaymentStatusPaid || !hasOrder {
		if session.PaymentStatus == enums.PaymentStatusPaid {
			s.logg.Warn(ctx, "paid checkout session carries no order reference")
		}
		return result, nil
	}
	ctx = s.logg.WithOrderID(ctx, orderID)

	if err := s.recordPayment(ctx, orderID, session); err != nil {
		return nil, err
	}

	order, err := s.repo.FindForFulfillment(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
	}
	result.Status = order.Status
	result.Message = messagePlaced

	if order.ProdigiOrderID != nil {
		s.metrics.ObservePlacement(metrics.FulfillmentSkipped)
		result.ProdigiOrderID = *order.ProdigiOrderID
		result.Message = messagePending
		return result, nil
	}
	if order.Status == enums.OrderStatusCanceled {
		// An earlier placement failed; only an operator retry places it again.
		result.FulfillmentIssue = true
		result.Message = messageIssue
		return result, nil
	}
	unrecorded, err := s.repo.FindUnrecordedPlacement(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check unrecorded placement")
	}
	if unrecorded != "" {
		s.skipUnrecorded(ctx, unrecorded, result)
		return result, nil
	}
	if order.Recipient == nil {
		s.recordMissingRecipient(ctx, order)
		result.FulfillmentIssue = true
		result.Message = messageIssue
		return result, nil
	}

	s.place(ctx, order, session.Currency, enums.OrderEventSourceCheckout, result)
	return result, nil
}

// RetryFulfillment places the print order again for a paid order whose
// earlier placement failed. It reopens a CANCELED order.
func (s *service) RetryFulfillment(ctx context.Context, orderID uint) (*Result, error) {
	order, err := s.repo.FindForFulfillment(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.Payment == nil || order.Payment.Status != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no captured payment")
	}
	if order.ProdigiOrderID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "fulfillment already placed").
			WithDetails(map[string]any{"prodigi_order_id": *order.ProdigiOrderID})
	}

	ctx = s.logg.WithOrderID(ctx, orderID)
	unrecorded, err := s.repo.FindUnrecordedPlacement(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check unrecorded placement")
	}
	if unrecorded != "" {
		return s.recoverPlacement(ctx, order, unrecorded)
	}
	if order.Recipient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no recipient")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.orders.ApplyStatus(ctx, tx, order, orders.StatusChange{
			Target:      enums.OrderStatusCompleted,
			Reason:      "fulfillment retry",
			Source:      enums.OrderEventSourceAdmin,
			AllowReopen: true,
		}); err != nil {
			return err
		}
		_, err := s.repo.WithTx(tx).AppendEvent(ctx, &models.OrderEvent{
			OrderID:    order.ID,
			EventID:    uuid.NewString(),
			Source:     enums.OrderEventSourceAdmin,
			Kind:       enums.OrderEventFulfillmentRetried,
			Payload:    types.JSONMap{"requestedAt": s.now().Format(time.RFC3339Nano)},
			OccurredAt: s.now(),
		})
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reopen order")
	}

	result := &Result{
		OrderID:       order.ID,
		SessionID:     order.Payment.TransactionID,
		Provider:      order.Payment.Provider,
		PaymentStatus: order.Payment.Status,
		Message:       messagePlaced,
	}
	s.place(ctx, order, order.Payment.Currency, enums.OrderEventSourceAdmin, result)
	return result, nil
}

func (s *service) recordPayment(ctx context.Context, orderID uint, session *CheckoutSession) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForFulfillment(ctx, orderID)
		if err != nil {
			return err
		}

		if _, err := s.orders.ApplyStatus(ctx, tx, order, orders.StatusChange{
			Target: enums.OrderStatusCompleted,
			Reason: "checkout paid",
			Source: enums.OrderEventSourceCheckout,
		}); err != nil {
			return err
		}

		currency := session.Currency
		if currency == "" {
			currency = order.Currency
		}
		if err := repo.UpsertPayment(ctx, &models.Payment{
			OrderID:       order.ID,
			Provider:      session.Provider,
			TransactionID: session.TransactionID,
			Status:        session.PaymentStatus,
			Amount:        session.AmountTotal,
			Currency:      currency,
		}); err != nil {
			return fmt.Errorf("upsert payment: %w", err)
		}

		if order.Recipient != nil {
			if err := repo.SaveRecipient(ctx, recipientFromCustomer(order.ID, session.Customer)); err != nil {
				return fmt.Errorf("update recipient: %w", err)
			}
		}

		_, err = repo.AppendEvent(ctx, &models.OrderEvent{
			OrderID: order.ID,
			EventID: "checkout:" + session.ID,
			Source:  enums.OrderEventSourceCheckout,
			Kind:    enums.OrderEventCheckoutCompleted,
			Payload: types.JSONMap{
				"sessionId":     session.ID,
				"provider":      string(session.Provider),
				"paymentStatus": string(session.PaymentStatus),
				"transactionId": session.TransactionID,
				"amount":        session.AmountTotal.StringFixed(2),
				"currency":      currency,
			},
			OccurredAt: s.now(),
		})
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record checkout payment")
	}
	return nil
}

func recipientFromCustomer(orderID uint, c Customer) *models.Recipient {
	orPlaceholder := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return PlaceholderText
		}
		return strings.TrimSpace(v)
	}
	optional := func(v string) *string {
		if strings.TrimSpace(v) == "" {
			return nil
		}
		trimmed := strings.TrimSpace(v)
		return &trimmed
	}
	postal := strings.TrimSpace(c.Address.PostalCode)
	if postal == "" {
		postal = PlaceholderPostalCode
	}
	country := strings.ToUpper(strings.TrimSpace(c.Address.Country))
	if len(country) != 2 {
		country = PlaceholderCountry
	}
	return &models.Recipient{
		OrderID:      orderID,
		Name:         orPlaceholder(c.Name),
		Email:        optional(c.Email),
		PhoneNumber:  optional(c.Phone),
		AddressLine1: orPlaceholder(c.Address.Line1),
		AddressLine2: optional(c.Address.Line2),
		City:         orPlaceholder(c.Address.City),
		State:        optional(c.Address.State),
		PostalCode:   postal,
		CountryCode:  country,
	}
}

func (s *service) recordMissingRecipient(ctx context.Context, order *models.Order) {
	s.logg.Warn(ctx, "paid order has no recipient; fulfillment not placed")
	row := &models.OrderProcessingError{
		OrderID:       order.ID,
		Error:         ErrRecipientMissing.Error() + ": fulfillment not placed",
		LastAttemptAt: s.now(),
	}
	if err := s.repo.CreateProcessingError(ctx, row); err != nil {
		s.logg.Error(ctx, "record missing recipient failed", err)
	}
}

// place submits the print order under a per-order lock and records the
// outcome. The result is updated in place.
func (s *service) place(ctx context.Context, order *models.Order, currency string, source enums.OrderEventSource, result *Result) {
	lock, err := redis.NewLock(s.locks, s.locks.LockKey(lockScope, strconv.FormatUint(uint64(order.ID), 10)), s.lockTTL)
	if err != nil {
		s.fail(ctx, order, source, err, result)
		return
	}
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		s.fail(ctx, order, source, fmt.Errorf("acquire fulfillment lock: %w", err), result)
		return
	}
	if !acquired {
		s.logg.Info(ctx, "fulfillment placement already in progress")
		s.metrics.ObservePlacement(metrics.FulfillmentSkipped)
		result.Message = messagePending
		return
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "release fulfillment lock failed")
		}
	}()

	current, err := s.repo.FindForFulfillment(ctx, order.ID)
	if err != nil {
		s.fail(ctx, order, source, fmt.Errorf("reload order: %w", err), result)
		return
	}
	if current.ProdigiOrderID != nil {
		s.metrics.ObservePlacement(metrics.FulfillmentSkipped)
		result.ProdigiOrderID = *current.ProdigiOrderID
		result.Status = current.Status
		result.Message = messagePending
		return
	}
	unrecorded, err := s.repo.FindUnrecordedPlacement(ctx, current.ID)
	if err != nil {
		s.fail(ctx, current, source, fmt.Errorf("check unrecorded placement: %w", err), result)
		return
	}
	if unrecorded != "" {
		s.skipUnrecorded(ctx, unrecorded, result)
		return
	}

	req, err := buildOrderRequest(ctx, current, s.assets, requestOptions{
		shippingMethod: s.shippingMethod,
		callbackURL:    s.callbackURL,
		currency:       currency,
		now:            s.now(),
	})
	if err != nil {
		s.fail(ctx, current, source, err, result)
		return
	}

	started := time.Now()
	resp, err := s.prodigi.CreateOrder(ctx, req)
	s.metrics.ObserveProviderLatency(time.Since(started))
	if err != nil {
		s.fail(ctx, current, source, err, result)
		return
	}

	if err := s.recordPlacement(ctx, current, source, resp); err != nil {
		s.recordUnrecordedPlacement(ctx, current, resp.Order.ID, err)
		s.metrics.ObservePlacement(metrics.FulfillmentFailed)
		result.ProdigiOrderID = resp.Order.ID
		result.FulfillmentIssue = true
		result.Message = messageIssue
		return
	}

	s.metrics.ObservePlacement(metrics.FulfillmentPlaced)
	result.ProdigiOrderID = resp.Order.ID
	result.Status = current.Status
	s.logg.Info(s.logg.WithField(ctx, "prodigi_order_id", resp.Order.ID), "fulfillment order placed")
}

// recordUnrecordedPlacement keeps the id of an order Prodigi accepted but we
// failed to persist. It runs outside the failed transaction; while the row
// exists no further placement is attempted for the order.
func (s *service) recordUnrecordedPlacement(ctx context.Context, order *models.Order, prodigiOrderID string, cause error) {
	ctx = s.logg.WithField(context.WithoutCancel(ctx), "prodigi_order_id", prodigiOrderID)
	s.logg.Error(ctx, "persist fulfillment placement failed", cause)
	row := &models.OrderProcessingError{
		OrderID:       order.ID,
		Error:         orders.UnrecordedPlacementError(prodigiOrderID, cause),
		LastAttemptAt: s.now(),
	}
	if err := s.repo.CreateProcessingError(ctx, row); err != nil {
		s.logg.Error(ctx, "record unrecorded placement failed", err)
	}
}

func (s *service) skipUnrecorded(ctx context.Context, prodigiOrderID string, result *Result) {
	s.logg.Warn(s.logg.WithField(ctx, "prodigi_order_id", prodigiOrderID), "placement accepted but unrecorded; awaiting operator retry")
	s.metrics.ObservePlacement(metrics.FulfillmentSkipped)
	result.ProdigiOrderID = prodigiOrderID
	result.FulfillmentIssue = true
	result.Message = messageIssue
}

// recoverPlacement records a placement Prodigi already accepted, using the
// provider's current view of the order instead of placing it again.
func (s *service) recoverPlacement(ctx context.Context, order *models.Order, prodigiOrderID string) (*Result, error) {
	ctx = s.logg.WithField(ctx, "prodigi_order_id", prodigiOrderID)
	provider, err := s.prodigi.GetOrder(ctx, prodigiOrderID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "fetch prodigi order")
	}
	if provider.ID == "" {
		provider.ID = prodigiOrderID
	}
	resp := &prodigi.CreateOrderResponse{Outcome: placementRecovered, Order: provider}
	if err := s.recordPlacement(ctx, order, enums.OrderEventSourceAdmin, resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record recovered placement")
	}
	s.metrics.ObservePlacement(metrics.FulfillmentPlaced)
	s.logg.Info(ctx, "unrecorded fulfillment placement recovered")

	result := &Result{
		OrderID:        order.ID,
		SessionID:      order.Payment.TransactionID,
		Provider:       order.Payment.Provider,
		PaymentStatus:  order.Payment.Status,
		Status:         order.Status,
		ProdigiOrderID: provider.ID,
		Message:        messagePlaced,
	}
	return result, nil
}

func (s *service) recordPlacement(ctx context.Context, order *models.Order, source enums.OrderEventSource, resp *prodigi.CreateOrderResponse) error {
	stage := strings.TrimSpace(resp.Order.Status.Stage)
	if stage == "" {
		stage = string(enums.ProdigiStageOnHold)
	}
	outcome := resp.Outcome
	prodigiID := resp.Order.ID
	createdAt := s.now()
	if resp.Order.Created != nil {
		createdAt = resp.Order.Created.UTC()
	}

	response := types.JSONMap{}
	if len(resp.Raw) > 0 {
		if err := json.Unmarshal(resp.Raw, &response); err != nil {
			response = types.JSONMap{}
		}
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateFulfillment(ctx, order.ID, orders.FulfillmentUpdate{
			ProdigiOrderID: &prodigiID,
			Stage:          &stage,
			Outcome:        &outcome,
		}); err != nil {
			return err
		}
		if _, err := repo.AppendEvent(ctx, &models.OrderEvent{
			OrderID: order.ID,
			EventID: uuid.NewString(),
			Source:  source,
			Kind:    enums.OrderEventFulfillmentPlaced,
			Payload: types.JSONMap{
				"prodigiOrderId": prodigiID,
				"createdAt":      createdAt.Format(time.RFC3339Nano),
				"stage":          stage,
				"outcome":        outcome,
				"response":       map[string]any(response),
			},
			OccurredAt: s.now(),
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.OrderEvent(enums.EventOrderFulfillmentPlaced, order.ID, &outbox.ActorRef{Source: string(source)}, payloads.FulfillmentPlacedEvent{
			OrderID:        order.ID,
			ProdigiOrderID: prodigiID,
			Stage:          stage,
			PlacedAt:       createdAt,
		}))
	})
}

// fail records a placement failure: log row, processing error, cancellation
// and history event. Errors here are logged only.
func (s *service) fail(ctx context.Context, order *models.Order, source enums.OrderEventSource, cause error, result *Result) {
	s.metrics.ObservePlacement(metrics.FulfillmentFailed)
	result.FulfillmentIssue = true
	result.Message = messageIssue

	keyPresent, keyLength := s.prodigi.KeyDiagnostics()
	stack := strings.TrimSpace(string(debug.Stack()))
	failedAt := s.now()
	message := cause.Error()

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"api_key_present": keyPresent,
		"api_key_length":  keyLength,
		"error_dump":      pkgerrors.Dump(cause),
	})
	s.logg.Error(logCtx, "fulfillment placement failed", cause)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateLog(ctx, &models.Log{
			Level:   enums.LogLevelError,
			Message: "fulfillment placement failed: " + message,
			Metadata: types.JSONMap{
				"orderId":       order.ID,
				"error":         message,
				"stack":         stack,
				"apiKeyPresent": keyPresent,
				"apiKeyLength":  keyLength,
			},
		}); err != nil {
			return err
		}
		if err := repo.CreateProcessingError(ctx, &models.OrderProcessingError{
			OrderID:       order.ID,
			Error:         "fulfillment placement failed: " + message,
			LastAttemptAt: failedAt,
		}); err != nil {
			return err
		}
		if _, err := s.orders.ApplyStatus(ctx, tx, order, orders.StatusChange{
			Target:     enums.OrderStatusCanceled,
			Reason:     "fulfillment placement failed",
			Source:     source,
			OccurredAt: failedAt,
		}); err != nil {
			return err
		}
		if _, err := repo.AppendEvent(ctx, &models.OrderEvent{
			OrderID: order.ID,
			EventID: uuid.NewString(),
			Source:  source,
			Kind:    enums.OrderEventFulfillmentFailed,
			Payload: types.JSONMap{
				"message":  message,
				"failedAt": failedAt.Format(time.RFC3339Nano),
			},
			OccurredAt: failedAt,
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.OrderEvent(enums.EventOrderFulfillmentFailed, order.ID, &outbox.ActorRef{Source: string(source)}, payloads.FulfillmentFailedEvent{
			OrderID:  order.ID,
			Message:  message,
			FailedAt: failedAt,
		}))
	})
	if err != nil {
		s.logg.Error(ctx, "record fulfillment failure failed", err)
		return
	}
	result.Status = order.Status
}
