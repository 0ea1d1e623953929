package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	"github.com/promptlyprinted/promptly-backend/pkg/types"
)

// OrderDetail is the admin view of an order and its reconciled state.
type OrderDetail struct {
	ID             uint              `json:"id"`
	Status         enums.OrderStatus `json:"status"`
	TotalPrice     decimal.Decimal   `json:"total_price"`
	Currency       string            `json:"currency"`
	ProdigiOrderID *string           `json:"prodigi_order_id,omitempty"`
	Stage          string            `json:"stage"`
	Outcome        *string           `json:"outcome,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`

	Recipient *RecipientSummary `json:"recipient,omitempty"`
	Payment   *PaymentSummary   `json:"payment,omitempty"`
	Items     []ItemSummary     `json:"items"`
	Shipments []ShipmentSummary `json:"shipments"`
	Events    []EventSummary    `json:"events"`
	Metadata  Metadata          `json:"metadata"`
}

type RecipientSummary struct {
	Name         string  `json:"name"`
	Email        *string `json:"email,omitempty"`
	PhoneNumber  *string `json:"phone_number,omitempty"`
	AddressLine1 string  `json:"address_line1"`
	AddressLine2 *string `json:"address_line2,omitempty"`
	City         string  `json:"city"`
	State        *string `json:"state,omitempty"`
	PostalCode   string  `json:"postal_code"`
	CountryCode  string  `json:"country_code"`
}

type PaymentSummary struct {
	Provider      enums.PaymentProvider `json:"provider"`
	TransactionID string                `json:"transaction_id"`
	Status        enums.PaymentStatus   `json:"status"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
}

type ItemSummary struct {
	ID         uint                 `json:"id"`
	ProductID  uint                 `json:"product_id"`
	SKU        string               `json:"sku,omitempty"`
	Copies     int                  `json:"copies"`
	Price      decimal.Decimal      `json:"price"`
	Attributes types.ItemAttributes `json:"attributes"`
	Assets     types.AssetList      `json:"assets"`
}

type ShipmentSummary struct {
	ProdigiShipmentID string     `json:"prodigi_shipment_id"`
	Carrier           string     `json:"carrier"`
	Service           string     `json:"service"`
	TrackingNumber    *string    `json:"tracking_number,omitempty"`
	TrackingURL       *string    `json:"tracking_url,omitempty"`
	DispatchedAt      *time.Time `json:"dispatched_at,omitempty"`
	Status            string     `json:"status"`
}

type EventSummary struct {
	EventID    string                 `json:"event_id"`
	Source     enums.OrderEventSource `json:"source"`
	Kind       enums.OrderEventKind   `json:"kind"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func newOrderDetail(order *models.Order) *OrderDetail {
	detail := &OrderDetail{
		ID:             order.ID,
		Status:         order.Status,
		TotalPrice:     order.TotalPrice,
		Currency:       order.Currency,
		ProdigiOrderID: order.ProdigiOrderID,
		Stage:          CurrentStage(order, order.Events),
		Outcome:        order.ProdigiOutcome,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
		Items:          make([]ItemSummary, 0, len(order.Items)),
		Shipments:      make([]ShipmentSummary, 0, len(order.Shipments)),
		Events:         make([]EventSummary, 0, len(order.Events)),
		Metadata:       ProjectMetadata(order.Events),
	}

	if r := order.Recipient; r != nil {
		detail.Recipient = &RecipientSummary{
			Name:         r.Name,
			Email:        r.Email,
			PhoneNumber:  r.PhoneNumber,
			AddressLine1: r.AddressLine1,
			AddressLine2: r.AddressLine2,
			City:         r.City,
			State:        r.State,
			PostalCode:   r.PostalCode,
			CountryCode:  r.CountryCode,
		}
	}
	if p := order.Payment; p != nil {
		detail.Payment = &PaymentSummary{
			Provider:      p.Provider,
			TransactionID: p.TransactionID,
			Status:        p.Status,
			Amount:        p.Amount,
			Currency:      p.Currency,
		}
	}
	for _, item := range order.Items {
		summary := ItemSummary{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Copies:     item.Copies,
			Price:      item.Price,
			Attributes: item.Attributes,
			Assets:     item.Assets,
		}
		if item.Product != nil {
			summary.SKU = item.Product.SKU
		}
		detail.Items = append(detail.Items, summary)
	}
	for _, s := range order.Shipments {
		detail.Shipments = append(detail.Shipments, ShipmentSummary{
			ProdigiShipmentID: s.ProdigiShipmentID,
			Carrier:           s.Carrier,
			Service:           s.Service,
			TrackingNumber:    s.TrackingNumber,
			TrackingURL:       s.TrackingURL,
			DispatchedAt:      s.DispatchedAt,
			Status:            s.Status,
		})
	}
	for _, ev := range sortedEvents(order.Events) {
		detail.Events = append(detail.Events, EventSummary{
			EventID:    ev.EventID,
			Source:     ev.Source,
			Kind:       ev.Kind,
			OccurredAt: ev.OccurredAt,
		})
	}
	return detail
}
