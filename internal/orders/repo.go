package orders

import (
	"context"
	"time"

	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	"github.com/promptlyprinted/promptly-backend/pkg/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindForFulfillment(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Recipient").
		Preload("Payment").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Product").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindDetail(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Recipient").
		Preload("Payment").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Product").
		Preload("Shipments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("occurred_at ASC, id ASC") }).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByProdigiOrderID(ctx context.Context, prodigiOrderID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("prodigi_order_id = ?", prodigiOrderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uint, status enums.OrderStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) UpdateFulfillment(ctx context.Context, orderID uint, update FulfillmentUpdate) error {
	values := map[string]any{"updated_at": time.Now().UTC()}
	if update.ProdigiOrderID != nil {
		values["prodigi_order_id"] = *update.ProdigiOrderID
	}
	if update.Stage != nil {
		values["prodigi_stage"] = *update.Stage
	}
	if update.Outcome != nil {
		values["prodigi_outcome"] = *update.Outcome
	}
	result := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) UpsertPayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "amount", "currency", "updated_at"}),
		}).
		Create(payment).Error
}

func (r *repository) SaveRecipient(ctx context.Context, recipient *models.Recipient) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "email", "phone_number", "address_line1", "address_line2",
				"city", "state", "postal_code", "country_code", "updated_at",
			}),
		}).
		Create(recipient).Error
}

func (r *repository) UpsertShipment(ctx context.Context, shipment *models.Shipment) (bool, error) {
	var existing models.Shipment
	err := r.db.WithContext(ctx).
		Where("prodigi_shipment_id = ?", shipment.ProdigiShipmentID).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return false, err
	}
	if existing.ID == 0 {
		result := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "prodigi_shipment_id"}}, DoNothing: true}).
			Create(shipment)
		if result.Error != nil {
			return false, result.Error
		}
		if result.RowsAffected > 0 {
			return true, nil
		}
	}

	err = r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("prodigi_shipment_id = ?", shipment.ProdigiShipmentID).
		Updates(map[string]any{
			"carrier":         shipment.Carrier,
			"service":         shipment.Service,
			"tracking_number": shipment.TrackingNumber,
			"tracking_url":    shipment.TrackingURL,
			"dispatched_at":   shipment.DispatchedAt,
			"status":          shipment.Status,
			"items":           shipment.Items,
			"updated_at":      time.Now().UTC(),
		}).Error
	return false, err
}

func (r *repository) AppendEvent(ctx context.Context, event *models.OrderEvent) (bool, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListEvents(ctx context.Context, orderID uint) ([]models.OrderEvent, error) {
	var events []models.OrderEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) CreateProcessingError(ctx context.Context, row *models.OrderProcessingError) error {
	if row.LastAttemptAt.IsZero() {
		row.LastAttemptAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListProcessingErrors(ctx context.Context, params ProcessingErrorParams) (*ProcessingErrorList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&models.OrderProcessingError{})
	if params.OrderID != nil {
		query = query.Where("order_id = ?", *params.OrderID)
	}
	var rows []models.OrderProcessingError
	if err := query.Scopes(pagination.Scope(cursor, params.Limit)).Find(&rows).Error; err != nil {
		return nil, err
	}

	items, next := pagination.Trim(rows, params.Limit, func(row models.OrderProcessingError) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return &ProcessingErrorList{Items: items, NextCursor: next}, nil
}

// FindUnrecordedPlacement returns the Prodigi id of an accepted placement
// that was never written to the order, or "" when there is none.
func (r *repository) FindUnrecordedPlacement(ctx context.Context, orderID uint) (string, error) {
	var rows []models.OrderProcessingError
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND error LIKE ?", orderID, UnrecordedPlacementPrefix+"%").
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if id, ok := ParseUnrecordedPlacement(row.Error); ok {
			return id, nil
		}
	}
	return "", nil
}

func (r *repository) CreateLog(ctx context.Context, row *models.Log) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// ListStuckFulfillments returns paid orders that never received a Prodigi id
// and have not been flagged yet.
func (r *repository) ListStuckFulfillments(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	flagged := r.db.Model(&models.OrderProcessingError{}).
		Select("1").
		Where("order_processing_errors.order_id = orders.id AND order_processing_errors.error LIKE ?", StuckFulfillmentPrefix+"%")

	paid := r.db.Model(&models.Payment{}).
		Select("1").
		Where("payments.order_id = orders.id AND payments.status = ?", enums.PaymentStatusPaid)

	var orders []models.Order
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("orders.status = ?", enums.OrderStatusCompleted).
		Where("EXISTS (?)", paid).
		Where("orders.prodigi_order_id IS NULL").
		Where("orders.updated_at < ?", cutoff).
		Where("NOT EXISTS (?)", flagged).
		Order("orders.updated_at ASC, orders.id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) RecordDelivery(ctx context.Context, delivery *models.WebhookDelivery) (bool, error) {
	if delivery.ReceivedAt.IsZero() {
		delivery.ReceivedAt = time.Now().UTC()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(delivery)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
