package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptlyprinted/promptly-backend/pkg/logger"
)

func TestLoadStampsServiceKind(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PROMPTLY_APP_ENV", "test")
	t.Setenv("PROMPTLY_APP_PORT", "8080")
	t.Setenv("PROMPTLY_USE_SQLITE", "true")

	cfg, logg, err := Load("cron-worker")
	require.NoError(t, err)
	require.NotNil(t, logg)
	assert.Equal(t, "cron-worker", cfg.Service.Kind)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
}

func TestLoadRequiresPostgresDSN(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PROMPTLY_APP_ENV", "test")
	t.Setenv("PROMPTLY_APP_PORT", "8080")
	t.Setenv("PROMPTLY_USE_SQLITE", "false")
	t.Setenv("PROMPTLY_DB_DSN", "")
	t.Setenv("PROMPTLY_DB_HOST", "")

	_, logg, err := Load("api")
	require.Error(t, err)
	assert.NotNil(t, logg)
}

func TestDatabaseSQLiteAutoMigrates(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PROMPTLY_APP_ENV", "test")
	t.Setenv("PROMPTLY_APP_PORT", "8080")
	t.Setenv("PROMPTLY_USE_SQLITE", "true")
	t.Setenv("PROMPTLY_AUTO_MIGRATE", "true")
	t.Setenv("PROMPTLY_SQLITE_PATH", "file::memory:")

	cfg, logg, err := Load("api")
	require.NoError(t, err)

	client, err := Database(context.Background(), cfg, logg)
	require.NoError(t, err)
	defer CloseWith(logg, "database", client.Close)
	assert.True(t, client.DB().Migrator().HasTable("orders"))
}

func TestCloseWithLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	CloseWith(logg, "redis", func() error { return nil })
	assert.Zero(t, buf.Len())

	CloseWith(logg, "redis", func() error { return errors.New("already closed") })
	assert.Contains(t, buf.String(), "error closing redis")
}
