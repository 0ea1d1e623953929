package cron

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptlyprinted/promptly-backend/internal/orders"
	"github.com/promptlyprinted/promptly-backend/pkg/db"
	"github.com/promptlyprinted/promptly-backend/pkg/db/dbtest"
	"github.com/promptlyprinted/promptly-backend/pkg/db/models"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/outbox"
)

func TestStuckFulfillmentJobFlagsOnce(t *testing.T) {
	conn := dbtest.Open(t)
	repo := orders.NewRepository(conn)

	stuckFx := dbtest.DefaultOrder()
	stuckFx.Status = enums.OrderStatusCompleted
	stuckFx.WithPayment = true
	stuck := dbtest.SeedOrder(t, conn, stuckFx)

	placedFx := stuckFx
	placedFx.ProdigiOrderID = "ord_ok"
	dbtest.SeedOrder(t, conn, placedFx)

	unpaidFx := dbtest.DefaultOrder()
	unpaidFx.Status = enums.OrderStatusCompleted
	dbtest.SeedOrder(t, conn, unpaidFx)

	job, err := NewStuckFulfillmentJob(StuckFulfillmentJobParams{
		Logger:     logger.Nop(),
		Orders:     repo,
		StuckAfter: 30 * time.Minute,
		Now:        func() time.Time { return time.Now().Add(2 * time.Hour) },
	})
	require.NoError(t, err)
	assert.Equal(t, "stuck-fulfillment", job.Name())

	ctx := context.Background()
	require.NoError(t, job.Run(ctx))
	require.NoError(t, job.Run(ctx))

	var rows []models.OrderProcessingError
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, stuck.ID, rows[0].OrderID)
	assert.True(t, strings.HasPrefix(rows[0].Error, orders.StuckFulfillmentPrefix))
	assert.Zero(t, rows[0].RetryCount)
}

func TestStuckFulfillmentJobIgnoresRecentOrders(t *testing.T) {
	conn := dbtest.Open(t)
	fx := dbtest.DefaultOrder()
	fx.Status = enums.OrderStatusCompleted
	fx.WithPayment = true
	dbtest.SeedOrder(t, conn, fx)

	job, err := NewStuckFulfillmentJob(StuckFulfillmentJobParams{Logger: logger.Nop(), Orders: orders.NewRepository(conn)})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	var n int64
	require.NoError(t, conn.Model(&models.OrderProcessingError{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestOutboxRetentionJobDeletesOnlyOldPublishedRows(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Now().UTC()
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderShipped, AggregateType: enums.AggregateOrder, AggregateID: "1", Payload: []byte(`{}`), PublishedAt: &old},
		{EventType: enums.EventOrderShipped, AggregateType: enums.AggregateOrder, AggregateID: "2", Payload: []byte(`{}`), PublishedAt: &recent},
		{EventType: enums.EventOrderShipped, AggregateType: enums.AggregateOrder, AggregateID: "3", Payload: []byte(`{}`)},
	}
	require.NoError(t, conn.Create(&rows).Error)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.Nop(),
		DB:         db.Wrap(conn),
		Repository: outbox.NewRepository(conn),
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	var left []models.OutboxEvent
	require.NoError(t, conn.Order("aggregate_id").Find(&left).Error)
	require.Len(t, left, 2)
	assert.Equal(t, "2", left[0].AggregateID)
	assert.Equal(t, "3", left[1].AggregateID)
}
