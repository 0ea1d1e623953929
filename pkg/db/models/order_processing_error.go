package models

import "time"

// OrderProcessingError flags an order for manual intervention. RetryCount
// stays 0; nothing retries automatically.
type OrderProcessingError struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID       uint      `gorm:"column:order_id;not null;index"`
	Error         string    `gorm:"column:error;not null"`
	RetryCount    int       `gorm:"column:retry_count;not null;default:0"`
	LastAttemptAt time.Time `gorm:"column:last_attempt_at;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderProcessingError) TableName() string { return "order_processing_errors" }
