package prodigi

import (
	"encoding/json"
	"time"
)

// Address is Prodigi's recipient address shape.
type Address struct {
	Line1           string `json:"line1" validate:"required"`
	Line2           string `json:"line2,omitempty"`
	PostalOrZipCode string `json:"postalOrZipCode" validate:"required"`
	CountryCode     string `json:"countryCode" validate:"required,len=2"`
	TownOrCity      string `json:"townOrCity" validate:"required"`
	StateOrCounty   string `json:"stateOrCounty,omitempty"`
}

type Recipient struct {
	Name        string  `json:"name" validate:"required"`
	Email       string  `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber string  `json:"phoneNumber,omitempty"`
	Address     Address `json:"address" validate:"required"`
}

type Cost struct {
	Amount   string `json:"amount" validate:"required,numeric"`
	Currency string `json:"currency" validate:"required,len=3"`
}

type Asset struct {
	PrintArea string `json:"printArea" validate:"required"`
	URL       string `json:"url" validate:"required,url"`
}

type Item struct {
	MerchantReference string            `json:"merchantReference,omitempty"`
	SKU               string            `json:"sku" validate:"required"`
	Copies            int               `json:"copies" validate:"required,min=1"`
	Sizing            string            `json:"sizing" validate:"required,oneof=fillPrintArea fitPrintArea stretchToPrintArea"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	RecipientCost     *Cost             `json:"recipientCost,omitempty"`
	Assets            []Asset           `json:"assets" validate:"required,min=1,dive"`
}

// CreateOrderRequest is the body of POST /Orders.
type CreateOrderRequest struct {
	MerchantReference string    `json:"merchantReference" validate:"required"`
	ShippingMethod    string    `json:"shippingMethod" validate:"required,oneof=Budget Standard Express Overnight"`
	IdempotencyKey    string    `json:"idempotencyKey,omitempty"`
	CallbackURL       string    `json:"callbackUrl,omitempty" validate:"omitempty,url"`
	Recipient         Recipient `json:"recipient" validate:"required"`
	Items             []Item    `json:"items" validate:"required,min=1,dive"`
}

// CreateOrderResponse is the body returned by POST /Orders. Raw keeps the
// unparsed body for the order history.
type CreateOrderResponse struct {
	Outcome string          `json:"outcome"`
	Order   *Order          `json:"order"`
	Raw     json.RawMessage `json:"-"`
}

// Order is the provider's order resource, shared by the order API and the
// webhook payload.
type Order struct {
	ID                string     `json:"id"`
	Created           *time.Time `json:"created,omitempty"`
	LastUpdated       *time.Time `json:"lastUpdated,omitempty"`
	MerchantReference string     `json:"merchantReference,omitempty"`
	ShippingMethod    string     `json:"shippingMethod,omitempty"`
	IdempotencyKey    string     `json:"idempotencyKey,omitempty"`
	Status            Status     `json:"status"`
	Shipments         []Shipment `json:"shipments,omitempty"`
}

type Status struct {
	Stage   string        `json:"stage"`
	Issues  []Issue       `json:"issues,omitempty"`
	Details StatusDetails `json:"details"`
}

// StatusDetails holds per-sub-stage progress; each value is one of
// NotStarted, InProgress, Complete or Error.
type StatusDetails struct {
	DownloadAssets             string `json:"downloadAssets,omitempty"`
	PrintReadyAssetsPrepared   string `json:"printReadyAssetsPrepared,omitempty"`
	AllocateProductionLocation string `json:"allocateProductionLocation,omitempty"`
	InProduction               string `json:"inProduction,omitempty"`
	Shipping                   string `json:"shipping,omitempty"`
}

type Issue struct {
	ObjectID    string `json:"objectId,omitempty"`
	ErrorCode   string `json:"errorCode"`
	Description string `json:"description,omitempty"`
}

type Carrier struct {
	Name    string `json:"name"`
	Service string `json:"service"`
}

type Tracking struct {
	Number string `json:"number,omitempty"`
	URL    string `json:"url,omitempty"`
}

type ShipmentItem struct {
	ItemID string `json:"itemId"`
}

type Shipment struct {
	ID           string         `json:"id"`
	Status       string         `json:"status,omitempty"`
	Carrier      Carrier        `json:"carrier"`
	Tracking     *Tracking      `json:"tracking,omitempty"`
	DispatchDate *time.Time     `json:"dispatchDate,omitempty"`
	Items        []ShipmentItem `json:"items,omitempty"`
}
