package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/promptlyprinted/promptly-backend/pkg/config"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:dbclient_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func countRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&testModel{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))
	assert.EqualValues(t, 1, countRows(t, db))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&testModel{Name: "rolled"}).Error)
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	assert.EqualValues(t, 1, countRows(t, db))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := Wrap(db)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&testModel{Name: "partial"}).Error)
			panic("kaboom")
		})
	})
	assert.EqualValues(t, 0, countRows(t, db))
}

func TestIsUniqueViolationSQLite(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&testModel{Name: "dup"}).Error)
	err := db.Create(&testModel{Name: "dup"}).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(nil, ""))
	assert.False(t, IsUniqueViolation(errors.New("other"), ""))
}

func TestNewSQLiteAndAutoMigrate(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{Driver: "SQLite", SQLitePath: "file::memory:"}, nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.AutoMigrate(context.Background()))
	require.NoError(t, client.Ping(context.Background()))
	assert.True(t, client.DB().Migrator().HasTable("order_events"))
}

func TestNewPostgresRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	require.Error(t, err)
}

func TestQueryLoggerWritesSlowAndFailedStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: &buf})
	q := newQueryLogger(logg).(*queryLogger)
	q.slow = 10 * time.Millisecond
	ctx := context.Background()
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	q.Trace(ctx, time.Now(), stmt, nil)
	assert.Zero(t, buf.Len())

	q.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	assert.Zero(t, buf.Len())

	q.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Contains(t, buf.String(), "slow query")

	buf.Reset()
	q.Trace(ctx, time.Now(), stmt, errors.New("syntax error"))
	assert.Contains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "SELECT 1")

	buf.Reset()
	q.LogMode(gormlogger.Silent).Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Zero(t, buf.Len())
}
