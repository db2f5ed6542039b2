package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openaid/aid-inventory/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestItemsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_items")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS items",
		"CHECK (current_stock_level >= 0)",
		"CONSTRAINT items_sku_key UNIQUE (sku)",
		"DROP TABLE IF EXISTS items",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestStockEventsMigrationIsAppendOnly(t *testing.T) {
	content := readMigration(t, "create_stock_events")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS stock_events",
		"CREATE TABLE IF NOT EXISTS stock_event_lines",
		"BEFORE UPDATE OR DELETE ON stock_events",
		"BEFORE UPDATE OR DELETE ON stock_event_lines",
		"CHECK (quantity > 0)",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestKitTemplatesMigrationRejectsDuplicateComponents(t *testing.T) {
	content := readMigration(t, "create_kit_templates")
	for _, sub := range []string{
		"UNIQUE (template_id, item_id)",
		"CHECK (quantity_per_kit > 0)",
		"REFERENCES items(id) ON DELETE RESTRICT",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Recipient Phone!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_recipient_phone.sql") {
		t.Fatalf("unexpected path %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatalf("expected invalid filename error")
	}
}
