package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/promptlyprinted/promptly-backend/pkg/enums"
)

// Order is the commerce record created at checkout and reconciled against
// payment and fulfillment providers.
type Order struct {
	ID             uint              `gorm:"column:id;primaryKey;autoIncrement"`
	UserID         *string           `gorm:"column:user_id"`
	TotalPrice     decimal.Decimal   `gorm:"column:total_price;type:numeric(12,2);not null"`
	Currency       string            `gorm:"column:currency;size:3;not null"`
	Status         enums.OrderStatus `gorm:"column:status;type:varchar(16);not null;index"`
	ProdigiOrderID *string           `gorm:"column:prodigi_order_id;uniqueIndex"`
	ProdigiStage   *string           `gorm:"column:prodigi_stage"`
	ProdigiOutcome *string           `gorm:"column:prodigi_outcome"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Recipient        *Recipient             `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment          *Payment               `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Items            []OrderItem            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipments        []Shipment             `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ProcessingErrors []OrderProcessingError `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Events           []OrderEvent           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string { return "orders" }
