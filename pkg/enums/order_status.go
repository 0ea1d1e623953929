package enums

import "fmt"

// OrderStatus is the commerce-side lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusCompleted,
	OrderStatusCanceled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// Transition classifies a requested status change.
type Transition int

const (
	TransitionNoop Transition = iota
	TransitionAllowed
	// TransitionReopen is only honoured for an operator-initiated fulfillment retry.
	TransitionReopen
	TransitionRejected
)

func (t Transition) String() string {
	switch t {
	case TransitionNoop:
		return "noop"
	case TransitionAllowed:
		return "allowed"
	case TransitionReopen:
		return "reopen"
	default:
		return "rejected"
	}
}

var orderTransitions = map[OrderStatus]map[OrderStatus]Transition{
	OrderStatusPending: {
		OrderStatusCompleted: TransitionAllowed,
		OrderStatusCanceled:  TransitionAllowed,
	},
	OrderStatusCompleted: {
		OrderStatusPending:  TransitionRejected,
		OrderStatusCanceled: TransitionAllowed,
	},
	OrderStatusCanceled: {
		OrderStatusPending:   TransitionRejected,
		OrderStatusCompleted: TransitionReopen,
	},
}

// TransitionTo reports how moving from s to next must be treated.
func (s OrderStatus) TransitionTo(next OrderStatus) Transition {
	if s == next {
		return TransitionNoop
	}
	if !s.IsValid() || !next.IsValid() {
		return TransitionRejected
	}
	if t, ok := orderTransitions[s][next]; ok {
		return t
	}
	return TransitionRejected
}
