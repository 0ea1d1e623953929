package models

import (
	"time"

	"github.com/promptlyprinted/promptly-backend/pkg/types"
)

// Shipment is upserted from fulfillment webhooks keyed on ProdigiShipmentID.
type Shipment struct {
	ID                uint             `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID           uint             `gorm:"column:order_id;not null;index"`
	ProdigiShipmentID string           `gorm:"column:prodigi_shipment_id;not null;uniqueIndex"`
	Carrier           string           `gorm:"column:carrier"`
	Service           string           `gorm:"column:service"`
	TrackingNumber    *string          `gorm:"column:tracking_number"`
	TrackingURL       *string          `gorm:"column:tracking_url"`
	DispatchedAt      *time.Time       `gorm:"column:dispatched_at"`
	Status            string           `gorm:"column:status"`
	Items             types.StringList `gorm:"column:items;type:jsonb"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Shipment) TableName() string { return "shipments" }
