package payloads

import (
	"time"

	"github.com/promptlyprinted/promptly-backend/pkg/enums"
)

// FulfillmentPlacedEvent is emitted once Prodigi accepts an order.
type FulfillmentPlacedEvent struct {
	OrderID        uint      `json:"order_id"`
	ProdigiOrderID string    `json:"prodigi_order_id"`
	Stage          string    `json:"stage"`
	PlacedAt       time.Time `json:"placed_at"`
}

// FulfillmentFailedEvent is emitted when placement with Prodigi fails.
type FulfillmentFailedEvent struct {
	OrderID  uint      `json:"order_id"`
	Message  string    `json:"message"`
	FailedAt time.Time `json:"failed_at"`
}

// StatusChangedEvent is emitted for every applied order status transition.
type StatusChangedEvent struct {
	OrderID uint                   `json:"order_id"`
	From    enums.OrderStatus      `json:"from"`
	To      enums.OrderStatus      `json:"to"`
	Reason  string                 `json:"reason"`
	Source  enums.OrderEventSource `json:"source"`
}

// ShippedEvent is emitted when a Prodigi shipment is recorded for an order.
type ShippedEvent struct {
	OrderID           uint       `json:"order_id"`
	ProdigiShipmentID string     `json:"prodigi_shipment_id"`
	Carrier           string     `json:"carrier"`
	TrackingNumber    *string    `json:"tracking_number,omitempty"`
	TrackingURL       *string    `json:"tracking_url,omitempty"`
	DispatchedAt      *time.Time `json:"dispatched_at,omitempty"`
}
