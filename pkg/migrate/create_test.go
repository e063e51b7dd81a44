package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSQLMigrationBumpsPastNewestVersion(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "20990101000000_future.sql")
	require.NoError(t, os.WriteFile(existing, []byte(migrationTemplate("future")), 0o644))

	path, err := createSQLMigration(dir, "Add order notes", time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "20990101000001_add_order_notes.sql", filepath.Base(path))
	require.NoError(t, ValidateDir(dir))
}

func TestCreateSQLMigrationUsesClockWhenAhead(t *testing.T) {
	dir := t.TempDir()
	path, err := createSQLMigration(dir, "  index sessions!  ", time.Date(2026, 10, 19, 12, 30, 5, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "20261019123005_index_sessions.sql", filepath.Base(path))

	_, err = createSQLMigration(dir, "!!!", time.Now())
	require.Error(t, err)
}

func TestValidateFSRejectsDialectSpecificSQL(t *testing.T) {
	fsys := fstest.MapFS{
		"m/20260101000000_meta.sql": {Data: []byte("-- +goose Up\nCREATE TABLE meta (doc JSONB);\n-- +goose Down\nDROP TABLE meta;\n")},
	}
	err := ValidateFS(fsys, "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSONB")

	fsys["m/20260101000000_meta.sql"] = &fstest.MapFile{Data: []byte("-- +goose Up\n-- jsonb would not run on sqlite\nCREATE TABLE meta (doc TEXT);\n-- +goose Down\nDROP TABLE meta;\n")}
	require.NoError(t, ValidateFS(fsys, "m"))
}

func TestValidateDirDefaultsToEmbeddedSet(t *testing.T) {
	require.NoError(t, ValidateDir(""))
}
