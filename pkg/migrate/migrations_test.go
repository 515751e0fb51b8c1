package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/smartshop-backend/pkg/db"
	"github.com/angelmondragon/smartshop-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	src := migrate.Embedded()
	require.NoError(t, src.Validate())

	embedded, err := src.Versions()
	require.NoError(t, err)
	onDisk, err := migrate.Disk("migrations").Versions()
	require.NoError(t, err)
	require.Equal(t, onDisk, embedded)
	require.NotEmpty(t, embedded)
}

func TestValidateRejectsBrokenFiles(t *testing.T) {
	cases := map[string]string{
		"20260101000000_no_down.sql":    "-- +goose Up\nSELECT 1;\n",
		"20260101000000_unbalanced.sql": "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n",
		"20260101000000_down_first.sql": "-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;\n",
		"2026_bad_name.sql":             "-- +goose Up\n-- +goose Down\n",
	}
	for name, body := range cases {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
		require.Error(t, migrate.ValidateDir(dir), name)
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders_payments.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CONSTRAINT ux_orders_order_number UNIQUE (order_number)",
		"CONSTRAINT ux_payments_payment_id UNIQUE (payment_id)",
		"CHECK (NOT is_ordered OR payment_id IS NOT NULL)",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS order_lines",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCatalogMigrationGuardsStock(t *testing.T) {
	content := readMigration(t, "*_create_catalog.sql")
	if !strings.Contains(content, "CHECK (stock >= 0)") {
		t.Fatalf("products table must reject negative stock")
	}
}

func TestCartMigrationRequiresSingleOwner(t *testing.T) {
	content := readMigration(t, "*_create_cart_lines.sql")
	if !strings.Contains(content, "CHECK ((session_id IS NULL) <> (user_id IS NULL))") {
		t.Fatalf("cart_lines must enforce exactly one owner")
	}
	if !strings.Contains(content, "CHECK (quantity >= 1)") {
		t.Fatalf("cart_lines must reject zero quantity")
	}
}

func TestReviewsMigrationKeepsOneReviewPerUser(t *testing.T) {
	content := readMigration(t, "*_create_reviews_gallery.sql")
	for _, sub := range []string{
		"CONSTRAINT ux_reviews_user_product UNIQUE (user_id, product_id)",
		"CHECK (rating >= 0.5 AND rating <= 5)",
		"REFERENCES products(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS product_gallery_images",
	} {
		require.Contains(t, content, sub)
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Order Index")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_order_index.sql"))
	require.NoError(t, migrate.ValidateDir(dir))
}

func TestAutoMigrateModelsOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:automigrate_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	client := db.Wrap(conn)
	require.NoError(t, migrate.AutoMigrateModels(client))

	for _, table := range []string{"products", "cart_lines", "orders", "payments", "order_lines", "reviews", "product_gallery_images", "outbox_events", "outbox_dlq"} {
		require.True(t, conn.Migrator().HasTable(table), "expected table %s", table)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
