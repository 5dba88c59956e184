package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateFS(Embedded()))
}

func TestEmbeddedMatchesSourceTree(t *testing.T) {
	embeddedNames, err := fs.Glob(Embedded(), "*.sql")
	require.NoError(t, err)
	onDisk, err := fs.Glob(os.DirFS("migrations"), "*.sql")
	require.NoError(t, err)
	assert.Equal(t, onDisk, embeddedNames)
}

func TestShippedMigrationsEnforceAssignmentIndexes(t *testing.T) {
	names, err := fs.Glob(Embedded(), "*.sql")
	require.NoError(t, err)

	var all strings.Builder
	for _, name := range names {
		b, err := fs.ReadFile(Embedded(), name)
		require.NoError(t, err)
		all.Write(b)
	}

	sql := all.String()
	assert.Contains(t, sql, "ux_shop_orders_active_worker")
	assert.Contains(t, sql, "ux_delivery_assignments_active")
	assert.Contains(t, sql, "PRIMARY KEY (shop_order_id, worker_id)")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 5, 8, 30, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Delivery OTP!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260305083000_add_delivery_otp.sql"), path)
	require.NoError(t, ValidateFS(os.DirFS(dir)))

	_, err = CreateSQLMigration(dir, "add delivery otp", now)
	assert.Error(t, err, "same version and slug must not overwrite")

	_, err = CreateSQLMigration(dir, "!!!", now)
	assert.Error(t, err)
}

func TestValidateFSRejects(t *testing.T) {
	valid := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n-- +goose Down\nSELECT 1;\n"
	cases := map[string]fstest.MapFS{
		"bad filename": {
			"init.sql": {Data: []byte(valid)},
		},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte(valid)},
			"20260101000000_b.sql": {Data: []byte(valid)},
		},
		"missing down": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		},
		"down before up": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;\n")},
		},
		"open block": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidateFS(fsys))
		})
	}
}

func TestValidateFSIgnoresOtherFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"README.md":                 {Data: []byte("notes")},
		"20260101000000_init.sql":   {Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")},
		"fixtures/20260101_bad.sql": {Data: []byte("ignored")},
	}
	assert.NoError(t, ValidateFS(fsys))
}
