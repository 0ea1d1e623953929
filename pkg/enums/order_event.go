package enums

// OrderEventKind labels an entry in an order's append-only event history.
type OrderEventKind string

const (
	OrderEventCheckoutCompleted  OrderEventKind = "checkout.completed"
	OrderEventFulfillmentPlaced  OrderEventKind = "fulfillment.placed"
	OrderEventFulfillmentFailed  OrderEventKind = "fulfillment.failed"
	OrderEventFulfillmentRetried OrderEventKind = "fulfillment.retried"
	OrderEventProviderUpdate     OrderEventKind = "provider.update"
	OrderEventStatusChanged      OrderEventKind = "status.changed"
	OrderEventIssuesReported     OrderEventKind = "issues.reported"
	OrderEventShipmentsUpdated   OrderEventKind = "shipments.updated"
)

// OrderEventSource names the actor that produced an order event.
type OrderEventSource string

const (
	OrderEventSourceCheckout OrderEventSource = "checkout"
	OrderEventSourceProdigi  OrderEventSource = "prodigi"
	OrderEventSourceStripe   OrderEventSource = "stripe"
	OrderEventSourceAdmin    OrderEventSource = "admin"
	OrderEventSourceCron     OrderEventSource = "cron"
)

// LogLevel is the severity stored on persisted diagnostic log rows.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)
