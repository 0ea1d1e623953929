package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder
}

// OutboxEventType is the routing key published alongside each outbox payload.
type OutboxEventType string

const (
	EventOrderFulfillmentPlaced OutboxEventType = "order.fulfillment_placed"
	EventOrderFulfillmentFailed OutboxEventType = "order.fulfillment_failed"
	EventOrderStatusChanged     OutboxEventType = "order.status_changed"
	EventOrderShipped           OutboxEventType = "order.shipped"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderFulfillmentPlaced,
	EventOrderFulfillmentFailed,
	EventOrderStatusChanged,
	EventOrderShipped,
}

// IsValid reports whether the value is a known outbox event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxDLQErrorReason records why an outbox row was dead-lettered.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
)
