package models

import (
	"github.com/shopspring/decimal"

	"github.com/promptlyprinted/promptly-backend/pkg/types"
)

type OrderItem struct {
	ID         uint                 `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID    uint                 `gorm:"column:order_id;not null;index"`
	ProductID  uint                 `gorm:"column:product_id;not null"`
	Copies     int                  `gorm:"column:copies;not null;default:1"`
	Price      decimal.Decimal      `gorm:"column:price;type:numeric(12,2);not null"`
	Attributes types.ItemAttributes `gorm:"column:attributes;type:jsonb"`
	Assets     types.AssetList      `gorm:"column:assets;type:jsonb"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

func (OrderItem) TableName() string { return "order_items" }
