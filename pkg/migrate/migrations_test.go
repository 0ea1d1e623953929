package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/promptlyprinted/promptly-backend/pkg/migrate"
	"github.com/promptlyprinted/promptly-backend/pkg/migrate/migrations"
)

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestOrderMigrationsCoverUniqueKeys(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	var content strings.Builder
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		content.Write(data)
	}

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_prodigi_order_id ON orders (prodigi_order_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_transaction_id ON payments (transaction_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_recipients_order_id ON recipients (order_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_shipments_prodigi_shipment_id ON shipments (prodigi_shipment_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_order_events_event_id ON order_events (event_id)",
		"event_id    TEXT PRIMARY KEY",
		"CHECK (status IN ('PENDING', 'COMPLETED', 'CANCELED'))",
	}
	for _, sub := range checks {
		if !strings.Contains(content.String(), sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := migrate.ValidateFS(migrations.FS); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"badname.sql":                 "-- +goose Up\n-- +goose Down\n",
		"20261399000000_bad_date.sql": "-- +goose Up\n-- +goose Down\n",
		"20260105120000_no_down.sql":  "-- +goose Up\nSELECT 1;\n",
	}
	for name, body := range cases {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := migrate.ValidateDir(dir); err == nil {
			t.Errorf("expected %s to fail validation", name)
		}
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	embedded, err := migrations.FS.ReadDir(".")
	if err != nil {
		t.Fatalf("read embedded dir: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(embedded) != len(onDisk) {
		t.Fatalf("expected %d embedded migrations, got %d", len(onDisk), len(embedded))
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Shipment Carrier!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_shipment_carrier.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}
