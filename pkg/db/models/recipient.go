package models

import "time"

// Recipient is the ship-to party. Exactly one per order.
type Recipient struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID      uint      `gorm:"column:order_id;not null;uniqueIndex"`
	Name         string    `gorm:"column:name;not null"`
	Email        *string   `gorm:"column:email"`
	PhoneNumber  *string   `gorm:"column:phone_number"`
	AddressLine1 string    `gorm:"column:address_line1;not null"`
	AddressLine2 *string   `gorm:"column:address_line2"`
	City         string    `gorm:"column:city;not null"`
	State        *string   `gorm:"column:state"`
	PostalCode   string    `gorm:"column:postal_code;not null"`
	CountryCode  string    `gorm:"column:country_code;size:2;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Recipient) TableName() string { return "recipients" }
