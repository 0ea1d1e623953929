package models

import (
	"time"

	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	"github.com/promptlyprinted/promptly-backend/pkg/types"
)

// OrderEvent is one append-only entry in an order's history. Rows are never
// updated; the order's metadata view is projected from them.
type OrderEvent struct {
	ID         uint                   `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID    uint                   `gorm:"column:order_id;not null;index:idx_order_events_order_occurred,priority:1"`
	EventID    string                 `gorm:"column:event_id;not null;uniqueIndex"`
	Source     enums.OrderEventSource `gorm:"column:source;type:varchar(16);not null"`
	Kind       enums.OrderEventKind   `gorm:"column:kind;type:varchar(32);not null"`
	Payload    types.JSONMap          `gorm:"column:payload;type:jsonb"`
	OccurredAt time.Time              `gorm:"column:occurred_at;not null;index:idx_order_events_order_occurred,priority:2"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (OrderEvent) TableName() string { return "order_events" }
