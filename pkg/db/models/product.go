package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalogue entry an order item points at. The defaults fill
// gaps when the customer did not pick an option.
type Product struct {
	ID               uint            `gorm:"column:id;primaryKey;autoIncrement"`
	SKU              string          `gorm:"column:sku;not null;uniqueIndex"`
	Name             string          `gorm:"column:name;not null"`
	DefaultColor     string          `gorm:"column:default_color"`
	DefaultSize      string          `gorm:"column:default_size"`
	DefaultPrintArea string          `gorm:"column:default_print_area"`
	BasePrice        decimal.Decimal `gorm:"column:base_price;type:numeric(12,2);not null"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
