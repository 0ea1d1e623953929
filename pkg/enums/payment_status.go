package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus mirrors the checkout session payment_status reported by the gateway.
type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPaid,
	PaymentStatusUnpaid,
	PaymentStatusNoPaymentRequired,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// PaymentProvider identifies the gateway that collected the payment.
type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderSquare PaymentProvider = "square"
)

// ParsePaymentProvider defaults to stripe when value is blank.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(PaymentProviderStripe):
		return PaymentProviderStripe, nil
	case string(PaymentProviderSquare):
		return PaymentProviderSquare, nil
	default:
		return "", fmt.Errorf("invalid payment provider %q", value)
	}
}
