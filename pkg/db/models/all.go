package models

// All lists every model, in dependency order, for SQLite AutoMigrate.
func All() []any {
	return []any{
		&Product{},
		&Order{},
		&OrderItem{},
		&Recipient{},
		&Payment{},
		&Shipment{},
		&OrderProcessingError{},
		&Log{},
		&OrderEvent{},
		&WebhookDelivery{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
