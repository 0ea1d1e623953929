package models

import (
	"time"

	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	"github.com/promptlyprinted/promptly-backend/pkg/types"
)

// Log is a persisted diagnostic record written on fulfillment failures.
type Log struct {
	ID        uint           `gorm:"column:id;primaryKey;autoIncrement"`
	Level     enums.LogLevel `gorm:"column:level;type:varchar(8);not null"`
	Message   string         `gorm:"column:message;not null"`
	Metadata  types.JSONMap  `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (Log) TableName() string { return "logs" }
