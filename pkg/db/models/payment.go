package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/promptlyprinted/promptly-backend/pkg/enums"
)

type Payment struct {
	ID            uint                  `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID       uint                  `gorm:"column:order_id;not null;index"`
	Provider      enums.PaymentProvider `gorm:"column:provider;type:varchar(16);not null"`
	TransactionID string                `gorm:"column:transaction_id;not null;uniqueIndex"`
	Status        enums.PaymentStatus   `gorm:"column:status;type:varchar(32);not null"`
	Amount        decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      string                `gorm:"column:currency;size:3;not null"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }
