// Package migrate drives goose against the Postgres schema. SQLite mode
// never reaches goose; it builds tables from the gorm models instead.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/promptlyprinted/promptly-backend/pkg/migrate/migrations"
)

const (
	DefaultDir = "pkg/migrate/migrations"
	// EmbeddedDir selects the migrations compiled into the binary.
	EmbeddedDir = "embedded"
)

// useDir points goose at dir and returns the path goose should read.
func useDir(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("migrations dir is required")
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return "", fmt.Errorf("goose dialect: %w", err)
	}
	if dir == EmbeddedDir {
		goose.SetBaseFS(migrations.FS)
		return ".", nil
	}
	goose.SetBaseFS(nil)
	return dir, nil
}

// Run executes a goose command such as up, down or status.
func Run(ctx context.Context, db *sql.DB, dir, command string, args ...string) error {
	if db == nil {
		return errors.New("db is required")
	}
	resolved, err := useDir(dir)
	if err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, resolved, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down to target.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("version %q is not YYYYMMDDHHMMSS: %w", target, err)
	}
	resolved, err := useDir(dir)
	if err != nil {
		return err
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case current < version:
		err = goose.UpToContext(ctx, db, resolved, version)
	case current > version:
		err = goose.DownToContext(ctx, db, resolved, version)
	}
	if err != nil {
		return fmt.Errorf("goose to %d: %w", version, err)
	}
	return nil
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	return ValidateFS(migrations.FS)
}
