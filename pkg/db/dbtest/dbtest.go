// Package dbtest opens throwaway SQLite databases carrying the full schema
// and seeds the fixtures order tests share.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	"github.com/promptlyprinted/promptly-backend/pkg/types"
)

// Open returns an isolated in-memory database with every model migrated.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:dbtest_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// OrderFixture controls what SeedOrder writes.
type OrderFixture struct {
	Status         enums.OrderStatus
	ProdigiOrderID string
	WithRecipient  bool
	WithPayment    bool
	Items          []ItemFixture
}

// ItemFixture is one order line.
type ItemFixture struct {
	SKU        string
	Copies     int
	Attributes types.ItemAttributes
	Assets     types.AssetList
}

// DefaultOrder is a pending order with a recipient, no payment, and one
// t-shirt line whose design lives in the default bucket.
func DefaultOrder() OrderFixture {
	return OrderFixture{
		Status:        enums.OrderStatusPending,
		WithRecipient: true,
		Items: []ItemFixture{{
			SKU:        "GLOBAL-TEE-GIL-64000",
			Copies:     1,
			Attributes: types.ItemAttributes{Color: "black", Size: "M"},
			Assets:     types.AssetList{{URL: "designs/cat.png", PrintArea: "front"}},
		}},
	}
}

// SeedOrder writes an order and its children and returns it reloaded.
func SeedOrder(t *testing.T, conn *gorm.DB, fx OrderFixture) *models.Order {
	t.Helper()
	if fx.Status == "" {
		fx.Status = enums.OrderStatusPending
	}

	order := &models.Order{
		TotalPrice: decimal.RequireFromString("34.99"),
		Currency:   "USD",
		Status:     fx.Status,
	}
	if fx.ProdigiOrderID != "" {
		id := fx.ProdigiOrderID
		order.ProdigiOrderID = &id
	}
	require.NoError(t, conn.Create(order).Error)

	for _, item := range fx.Items {
		product := models.Product{}
		require.NoError(t, conn.Where(models.Product{SKU: item.SKU}).
			Attrs(models.Product{
				Name:             item.SKU,
				DefaultColor:     "white",
				DefaultSize:      "L",
				DefaultPrintArea: "front",
				BasePrice:        decimal.RequireFromString("24.99"),
			}).
			FirstOrCreate(&product).Error)
		copies := item.Copies
		if copies == 0 {
			copies = 1
		}
		require.NoError(t, conn.Create(&models.OrderItem{
			OrderID:    order.ID,
			ProductID:  product.ID,
			Copies:     copies,
			Price:      decimal.RequireFromString("34.99"),
			Attributes: item.Attributes,
			Assets:     item.Assets,
		}).Error)
	}

	if fx.WithRecipient {
		email := "ada@example.com"
		require.NoError(t, conn.Create(&models.Recipient{
			OrderID:      order.ID,
			Name:         "Ada Lovelace",
			Email:        &email,
			AddressLine1: "1 Analytical Way",
			City:         "London",
			PostalCode:   "N1 9GU",
			CountryCode:  "GB",
		}).Error)
	}

	if fx.WithPayment {
		require.NoError(t, conn.Create(&models.Payment{
			OrderID:       order.ID,
			Provider:      enums.PaymentProviderStripe,
			TransactionID: "cs_test_" + uuid.NewString(),
			Status:        enums.PaymentStatusPaid,
			Amount:        decimal.RequireFromString("34.99"),
			Currency:      "USD",
		}).Error)
	}

	var reloaded models.Order
	require.NoError(t, conn.First(&reloaded, order.ID).Error)
	return &reloaded
}
