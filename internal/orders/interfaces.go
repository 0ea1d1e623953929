package orders

import (
	"context"
	"time"

	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	"github.com/promptlyprinted/promptly-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository exposes persistence operations for orders and the records that
// hang off them (recipient, payment, shipments, events, processing errors).
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindByID(ctx context.Context, orderID uint) (*models.Order, error)
	FindForFulfillment(ctx context.Context, orderID uint) (*models.Order, error)
	FindDetail(ctx context.Context, orderID uint) (*models.Order, error)
	FindByProdigiOrderID(ctx context.Context, prodigiOrderID string) (*models.Order, error)

	UpdateStatus(ctx context.Context, orderID uint, status enums.OrderStatus) error
	UpdateFulfillment(ctx context.Context, orderID uint, update FulfillmentUpdate) error

	UpsertPayment(ctx context.Context, payment *models.Payment) error
	SaveRecipient(ctx context.Context, recipient *models.Recipient) error
	UpsertShipment(ctx context.Context, shipment *models.Shipment) (created bool, err error)

	AppendEvent(ctx context.Context, event *models.OrderEvent) (inserted bool, err error)
	ListEvents(ctx context.Context, orderID uint) ([]models.OrderEvent, error)

	CreateProcessingError(ctx context.Context, row *models.OrderProcessingError) error
	ListProcessingErrors(ctx context.Context, params ProcessingErrorParams) (*ProcessingErrorList, error)
	FindUnrecordedPlacement(ctx context.Context, orderID uint) (prodigiOrderID string, err error)
	CreateLog(ctx context.Context, row *models.Log) error

	ListStuckFulfillments(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	RecordDelivery(ctx context.Context, delivery *models.WebhookDelivery) (recorded bool, err error)
}

// FulfillmentUpdate carries the provider-side columns written after a
// placement or a webhook. Nil fields are left untouched.
type FulfillmentUpdate struct {
	ProdigiOrderID *string
	Stage          *string
	Outcome        *string
}

// ProcessingErrorParams filters the admin processing-error listing.
type ProcessingErrorParams struct {
	OrderID *uint
	pagination.Params
}

// ProcessingErrorList is one cursor page of processing errors.
type ProcessingErrorList struct {
	Items      []models.OrderProcessingError
	NextCursor string
}
