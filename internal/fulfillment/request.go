package fulfillment

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/prodigi"
)

const (
	defaultSize      = "m"
	defaultPrintArea = "default"
	defaultSizing    = "fillPrintArea"
)

var sizeMap = map[string]string{
	"XXS":     "2xs",
	"XS":      "xs",
	"S":       "s",
	"M":       "m",
	"L":       "l",
	"XL":      "xl",
	"XXL":     "2xl",
	"XXXL":    "3xl",
	"XXXXL":   "4xl",
	"XXXXXL":  "5xl",
	"XXXXXXL": "5xl",
}

// MapSize converts the storefront garment size to Prodigi's vocabulary.
// Unmapped sizes become "m".
func MapSize(size string) string {
	if mapped, ok := sizeMap[strings.ToUpper(strings.TrimSpace(size))]; ok {
		return mapped
	}
	return defaultSize
}

// MerchantReference is the reference Prodigi stores for an order.
func MerchantReference(orderID uint) string {
	return "PP-" + strconv.FormatUint(uint64(orderID), 10)
}

// IdempotencyKey de-duplicates submissions made within the same instant.
func IdempotencyKey(orderID uint, now time.Time) string {
	return fmt.Sprintf("%d-%d", orderID, now.UnixMilli())
}

type assetResolver interface {
	ResolveAssetURL(ctx context.Context, raw string) (string, error)
}

// MissingAssetError reports an order item with nothing to print.
type MissingAssetError struct {
	OrderItemID uint
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("order item %d has no design asset", e.OrderItemID)
}

type requestOptions struct {
	shippingMethod string
	callbackURL    string
	currency       string
	now            time.Time
}

// buildOrderRequest maps an order loaded with recipient, items and products
// into a Prodigi order. Any item without a resolvable asset fails the
// whole order.
func buildOrderRequest(ctx context.Context, order *models.Order, resolver assetResolver, opts requestOptions) (prodigi.CreateOrderRequest, error) {
	if order.Recipient == nil {
		return prodigi.CreateOrderRequest{}, ErrRecipientMissing
	}
	if len(order.Items) == 0 {
		return prodigi.CreateOrderRequest{}, fmt.Errorf("order %d has no items", order.ID)
	}

	currency := strings.ToUpper(strings.TrimSpace(opts.currency))
	if currency == "" {
		currency = strings.ToUpper(order.Currency)
	}

	items := make([]prodigi.Item, 0, len(order.Items))
	for _, item := range order.Items {
		asset, ok := item.Assets.First()
		if !ok || strings.TrimSpace(asset.URL) == "" {
			return prodigi.CreateOrderRequest{}, &MissingAssetError{OrderItemID: item.ID}
		}
		url, err := resolver.ResolveAssetURL(ctx, asset.URL)
		if err != nil {
			return prodigi.CreateOrderRequest{}, fmt.Errorf("resolve asset for item %d: %w", item.ID, err)
		}

		var product models.Product
		if item.Product != nil {
			product = *item.Product
		}
		color := firstNonEmpty(item.Attributes.Color, product.DefaultColor)
		size := MapSize(firstNonEmpty(item.Attributes.Size, product.DefaultSize))
		printArea := firstNonEmpty(asset.PrintArea, item.Attributes.PrintArea, product.DefaultPrintArea, defaultPrintArea)

		attributes := map[string]string{"size": size}
		if color != "" {
			attributes["color"] = color
		}

		copies := item.Copies
		if copies < 1 {
			copies = 1
		}

		items = append(items, prodigi.Item{
			MerchantReference: fmt.Sprintf("%s-%d", MerchantReference(order.ID), item.ID),
			SKU:               product.SKU,
			Copies:            copies,
			Sizing:            defaultSizing,
			Attributes:        attributes,
			RecipientCost: &prodigi.Cost{
				Amount:   item.Price.StringFixed(2),
				Currency: currency,
			},
			Assets: []prodigi.Asset{{PrintArea: printArea, URL: url}},
		})
	}

	r := order.Recipient
	recipient := prodigi.Recipient{
		Name: r.Name,
		Address: prodigi.Address{
			Line1:           r.AddressLine1,
			Line2:           valueOf(r.AddressLine2),
			PostalOrZipCode: r.PostalCode,
			CountryCode:     strings.ToUpper(r.CountryCode),
			TownOrCity:      r.City,
			StateOrCounty:   valueOf(r.State),
		},
		Email:       valueOf(r.Email),
		PhoneNumber: valueOf(r.PhoneNumber),
	}

	return prodigi.CreateOrderRequest{
		MerchantReference: MerchantReference(order.ID),
		ShippingMethod:    opts.shippingMethod,
		IdempotencyKey:    IdempotencyKey(order.ID, opts.now),
		CallbackURL:       opts.callbackURL,
		Recipient:         recipient,
		Items:             items,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func valueOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
