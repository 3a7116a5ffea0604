package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/restaurant-core/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDir(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Files()); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	embedded, err := fs.Glob(migrate.Files(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(onDisk) != len(embedded) {
		t.Fatalf("expected %d embedded migrations, got %d", len(onDisk), len(embedded))
	}
}

func TestCashShiftMigrationEnforcesSingleOpenShift(t *testing.T) {
	content := readMigration(t, "*_create_cash_shifts.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_cash_shifts_one_open_per_restaurant",
		"ON cash_shifts (restaurant_id) WHERE status = 'open'",
		"amount numeric(12,2) NOT NULL CHECK (amount > 0)",
		"DROP TABLE IF EXISTS cash_shifts",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInventoryMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_inventory.sql")

	checks := []string{
		"CONSTRAINT ux_ingredient_stocks_warehouse_ingredient UNIQUE (warehouse_id, ingredient_id)",
		"CONSTRAINT ck_stock_movements_chain CHECK (quantity_after = quantity_before + quantity)",
		"CONSTRAINT ck_invoices_transfer_target",
		"DROP TABLE IF EXISTS stock_movements",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationCapsDiscounts(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")
	if !strings.Contains(content, "CHECK (discount_amount + loyalty_discount_amount <= subtotal)") {
		t.Fatal("orders migration must cap discounts at subtotal")
	}
	if !strings.Contains(content, "rounding_amount numeric(12,2) NOT NULL DEFAULT 0 CHECK (rounding_amount >= 0)") {
		t.Fatal("orders migration must keep rounding non-negative")
	}
}

func TestValidateDirRejectsBadFilenames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "create_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestValidateDirRejectsUnbalancedStatements(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_broken.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected unbalanced statement error")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	path, err := migrate.CreateSQLMigration(dir, "Add Shift Notes", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260313100000_add_shift_notes.sql" {
		t.Fatalf("unexpected path %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationStaysAfterLatest(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	if _, err := migrate.CreateSQLMigration(dir, "first", now); err != nil {
		t.Fatalf("create first: %v", err)
	}
	// a developer with a clock behind the last migration
	path, err := migrate.CreateSQLMigration(dir, "second", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if filepath.Base(path) != "20260313100001_second.sql" {
		t.Fatalf("unexpected path %q", path)
	}
	if _, err := migrate.CreateSQLMigration(dir, "   ", now); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := migrate.ParseVersion("20260105090500"); err != nil || v != 20260105090500 {
		t.Fatalf("unexpected %d %v", v, err)
	}
	for _, raw := range []string{"", "2026", "2026010509050x"} {
		if _, err := migrate.ParseVersion(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
