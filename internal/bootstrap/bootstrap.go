// Package bootstrap holds the process setup shared by the service binaries:
// environment loading, logger construction, signal handling and the
// database connection with its startup migrations.
package bootstrap

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/promptlyprinted/promptly-backend/pkg/config"
	"github.com/promptlyprinted/promptly-backend/pkg/db"
	"github.com/promptlyprinted/promptly-backend/pkg/instance"
	"github.com/promptlyprinted/promptly-backend/pkg/logger"
	"github.com/promptlyprinted/promptly-backend/pkg/migrate"
)

// RunFunc is a service body. It returns when ctx is cancelled or on a fatal
// error.
type RunFunc func(ctx context.Context, cfg *config.Config, logg *logger.Logger) error

// Main loads configuration for service, runs fn until SIGINT or SIGTERM and
// exits non-zero on failure.
func Main(service string, fn RunFunc) {
	cfg, logg, err := Load(service)
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": service,
		"instance":    instance.GetID(),
	})

	if err := fn(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, service+" stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, service+" shut down")
}

// Load reads .env when present, then the environment. The returned logger
// is usable even when err is non-nil.
func Load(service string) (*config.Config, *logger.Logger, error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logg.Warn(context.Background(), "ignoring unreadable .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, logg, err
	}
	cfg.Service.Kind = service

	return cfg, logger.New(logger.Options{
		ServiceName: service,
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	}), nil
}

// Database connects and applies startup migrations when enabled. The caller
// owns closing the client.
func Database(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*db.Client, error) {
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, err
	}
	if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
		CloseWith(logg, "database", client.Close)
		return nil, err
	}
	return client, nil
}

// CloseWith runs closeFn and logs a failure instead of returning it.
func CloseWith(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}
