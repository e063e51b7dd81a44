package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/nordstil-checkout/pkg/migrate"
)

func TestEmbeddedMigrationsApplyOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_embedded?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	require.NoError(t, migrate.Run(ctx, sqlDB, "sqlite3", "", "up"))

	for _, table := range []string{"cart_items", "custom_items", "reconciliations"} {
		assert.True(t, conn.Migrator().HasTable(table), "expected table %s", table)
	}

	require.NoError(t, migrate.MigrateToVersion(ctx, sqlDB, "sqlite3", "", "20260301090500"))
	assert.False(t, conn.Migrator().HasTable("reconciliations"))
	assert.True(t, conn.Migrator().HasTable("custom_items"))
}

func TestRunRequiresDB(t *testing.T) {
	err := migrate.Run(context.Background(), nil, "postgres", "", "up")
	require.Error(t, err)
}

func TestMigrateToVersionRejectsBadVersion(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_badversion?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)

	err = migrate.MigrateToVersion(context.Background(), sqlDB, "sqlite3", "", "latest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid version")
}

func TestMigrationDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestCartMigrationKeepsOwnerProductSizeUnique(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_cart_items.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS cart_items",
		"CHECK (quantity > 0)",
		"ON cart_items (owner_id, product_id, size)",
		"DROP TABLE IF EXISTS cart_items",
	} {
		assert.True(t, strings.Contains(content, sub), "missing %q", sub)
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Order Notes")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_order_notes.sql"))
	require.NoError(t, migrate.ValidateDir(dir))
}
