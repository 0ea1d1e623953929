package fulfillment

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"github.com/stripe/stripe-go/v84"

	"github.com/promptlyprinted/promptly-backend/pkg/enums"
)

// OrderIDMetadataKey is the checkout metadata key carrying the local order id.
const OrderIDMetadataKey = "orderId"

// CheckoutSession is a provider-neutral view of a hosted checkout.
type CheckoutSession struct {
	ID            string
	Provider      enums.PaymentProvider
	PaymentStatus enums.PaymentStatus
	Metadata      map[string]string
	Currency      string
	AmountTotal   decimal.Decimal
	TransactionID string
	Customer      Customer
}

// Customer holds the payer details collected by the provider. Any field
// may be blank.
type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address Address
}

type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// OrderID returns the order reference from the session metadata.
func (s *CheckoutSession) OrderID() (uint, bool) {
	if s == nil {
		return 0, false
	}
	raw := strings.TrimSpace(s.Metadata[OrderIDMetadataKey])
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// PaymentGateway resolves a checkout session by its provider id.
type PaymentGateway interface {
	RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

type stripeSessionGetter interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
}

// StripeGateway reads Stripe Checkout Sessions.
type StripeGateway struct {
	client stripeSessionGetter
}

func NewStripeGateway(client stripeSessionGetter) *StripeGateway {
	return &StripeGateway{client: client}
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	sess, err := g.client.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return fromStripeSession(sess), nil
}

func fromStripeSession(sess *stripe.CheckoutSession) *CheckoutSession {
	currency := strings.ToUpper(string(sess.Currency))
	out := &CheckoutSession{
		ID:            sess.ID,
		Provider:      enums.PaymentProviderStripe,
		PaymentStatus: normalizePaymentStatus(string(sess.PaymentStatus)),
		Metadata:      map[string]string{},
		Currency:      currency,
		AmountTotal:   fromMinorUnits(sess.AmountTotal, currency),
		TransactionID: sess.ID,
	}
	for k, v := range sess.Metadata {
		out.Metadata[k] = v
	}
	if out.Metadata[OrderIDMetadataKey] == "" && sess.ClientReferenceID != "" {
		out.Metadata[OrderIDMetadataKey] = sess.ClientReferenceID
	}
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		out.TransactionID = sess.PaymentIntent.ID
	}
	if cd := sess.CustomerDetails; cd != nil {
		out.Customer = Customer{Name: cd.Name, Email: cd.Email, Phone: cd.Phone}
		if a := cd.Address; a != nil {
			out.Customer.Address = Address{
				Line1:      a.Line1,
				Line2:      a.Line2,
				City:       a.City,
				State:      a.State,
				PostalCode: a.PostalCode,
				Country:    a.Country,
			}
		}
	}
	return out
}

type squarePaymentGetter interface {
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

// SquareGateway treats a Square payment id as the session id. The order id
// travels in the payment's reference_id.
type SquareGateway struct {
	client squarePaymentGetter
}

func NewSquareGateway(client squarePaymentGetter) *SquareGateway {
	return &SquareGateway{client: client}
}

func (g *SquareGateway) RetrieveSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	payment, err := g.client.GetPayment(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return fromSquarePayment(payment), nil
}

func fromSquarePayment(p *sq.Payment) *CheckoutSession {
	out := &CheckoutSession{
		ID:            deref(p.ID),
		Provider:      enums.PaymentProviderSquare,
		PaymentStatus: enums.PaymentStatusUnpaid,
		Metadata:      map[string]string{},
		TransactionID: deref(p.ID),
	}
	if strings.EqualFold(deref(p.Status), "COMPLETED") {
		out.PaymentStatus = enums.PaymentStatusPaid
	}
	if ref := deref(p.ReferenceID); ref != "" {
		out.Metadata[OrderIDMetadataKey] = ref
	}

	money := p.TotalMoney
	if money == nil {
		money = p.AmountMoney
	}
	if money != nil {
		if money.Currency != nil {
			out.Currency = strings.ToUpper(string(*money.Currency))
		}
		if money.Amount != nil {
			out.AmountTotal = fromMinorUnits(*money.Amount, out.Currency)
		}
	}

	out.Customer.Email = deref(p.BuyerEmailAddress)
	addr := p.ShippingAddress
	if addr == nil {
		addr = p.BillingAddress
	}
	if addr != nil {
		out.Customer.Name = strings.TrimSpace(deref(addr.FirstName) + " " + deref(addr.LastName))
		out.Customer.Address = Address{
			Line1:      deref(addr.AddressLine1),
			Line2:      deref(addr.AddressLine2),
			City:       deref(addr.Locality),
			State:      deref(addr.AdministrativeDistrictLevel1),
			PostalCode: deref(addr.PostalCode),
		}
		if addr.Country != nil {
			out.Customer.Address.Country = string(*addr.Country)
		}
	}
	return out
}

func normalizePaymentStatus(raw string) enums.PaymentStatus {
	status, err := enums.ParsePaymentStatus(raw)
	if err != nil {
		return enums.PaymentStatusUnpaid
	}
	return status
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// Currencies whose smallest unit is not a hundredth. Both Stripe and Square
// report amounts in the currency's smallest unit.
var (
	zeroDecimalCurrencies = map[string]bool{
		"BIF": true, "CLP": true, "DJF": true, "GNF": true, "ISK": true, "JPY": true,
		"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true,
		"VND": true, "VUV": true, "XAF": true, "XOF": true, "XPF": true,
	}
	threeDecimalCurrencies = map[string]bool{
		"BHD": true, "JOD": true, "KWD": true, "OMR": true, "TND": true,
	}
)

func minorUnitExponent(currency string) int32 {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	switch {
	case zeroDecimalCurrencies[currency]:
		return 0
	case threeDecimalCurrencies[currency]:
		return -3
	default:
		return -2
	}
}

func fromMinorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, minorUnitExponent(currency))
}
