package migrate

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
	require.NoError(t, ValidateFS(Migrations()))
}

func TestEmbeddedMigrationsMatchSourceDir(t *testing.T) {
	embeddedFiles, err := listMigrations(Migrations())
	require.NoError(t, err)
	onDisk, err := listMigrations(os.DirFS("migrations"))
	require.NoError(t, err)
	assert.Equal(t, onDisk, embeddedFiles)
	require.NotEmpty(t, embeddedFiles)
	assert.Equal(t, int64(20260901120000), embeddedFiles[0].version)
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("20260901120100")
	require.NoError(t, err)
	assert.Equal(t, int64(20260901120100), v)

	for _, bad := range []string{"", "2026", "2026090112010x", "202609011201000"} {
		_, err := ParseVersion(bad)
		assert.Error(t, err, bad)
	}
}

func TestBagsMigrationEnforcesTotalInvariant(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_bags.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS bags",
		"CHECK (total = subtotal - discount_total + shipping_amount)",
		"'awaiting_shipping_payment'",
		"CONSTRAINT bags_public_token_key UNIQUE (public_token)",
		"DROP TABLE IF EXISTS bags",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Bag Notes!")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^\d{14}_add_bag_notes\.sql$`), filepath.Base(path))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestCreateSQLMigrationStaysAfterNewestVersion(t *testing.T) {
	dir := t.TempDir()
	future := "29991231235959_from_the_future.sql"
	require.NoError(t, os.WriteFile(filepath.Join(dir, future), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))

	path, err := CreateSQLMigration(dir, "next")
	require.NoError(t, err)
	assert.Equal(t, "29991231235960_next.sql", filepath.Base(path))
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- +goose Up"), 0o644))
	assert.Error(t, ValidateDir(dir))

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_missing_down.sql"), []byte("-- +goose Up\nSELECT 1;"), 0o644))
	err := ValidateDir(dir)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "goose Down"))

	dir = t.TempDir()
	unbalanced := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_unbalanced.sql"), []byte(unbalanced), 0o644))
	assert.ErrorContains(t, ValidateDir(dir), "StatementBegin")
}
