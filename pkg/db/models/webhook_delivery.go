package models

import "time"

// WebhookDelivery records a processed provider event id. Written in the same
// transaction as the delivery's effects.
type WebhookDelivery struct {
	EventID    string    `gorm:"column:event_id;primaryKey"`
	Source     string    `gorm:"column:source;not null"`
	OrderID    *uint     `gorm:"column:order_id;index"`
	Type       string    `gorm:"column:type;not null"`
	ReceivedAt time.Time `gorm:"column:received_at;not null"`
}

func (WebhookDelivery) TableName() string { return "webhook_deliveries" }
