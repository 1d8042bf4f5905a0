package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"payment group status", "payment_group_status"},
		{"Stock-Item-Location", "stock_item_location"},
		{"EVENT__DATE", "event_date"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func writePatches(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		for _, suffix := range []string{".up.sql", ".down.sql"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, n+suffix), []byte("SELECT 1;"), 0o644))
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))
	return dir
}

func TestListPatches(t *testing.T) {
	dir := writePatches(t, "20260312083000_event_date_type", "20260301090000_payment_group_status")

	patches, err := ListPatches(dir)
	require.NoError(t, err)
	require.Len(t, patches, 2)
	assert.Equal(t, Patch{Version: 20260301090000, Name: "payment_group_status"}, patches[0])
	assert.Equal(t, "20260312083000_event_date_type", patches[1].String())

	t.Run("missing directory", func(t *testing.T) {
		patches, err := ListPatches(filepath.Join(dir, "nope"))
		require.NoError(t, err)
		assert.Empty(t, patches)
	})

	t.Run("ignores unversioned files", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "draft_thing.up.sql"), nil, 0o644))
		patches, err := ListPatches(dir)
		require.NoError(t, err)
		assert.Len(t, patches, 2)
	})
}

func TestFindPatch(t *testing.T) {
	dir := writePatches(t, "20260301090000_payment_group_status")

	tests := []struct {
		name  string
		query string
		found bool
	}{
		{name: "exact name", query: "payment_group_status", found: true},
		{name: "loose spelling", query: "Payment-Group status", found: true},
		{name: "full base name", query: "20260301090000_payment_group_status", found: true},
		{name: "unknown", query: "drop_everything", found: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FindPatch(dir, tt.query)
			if !tt.found {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint(20260301090000), p.Version)
		})
	}
}

func TestRepositoryPatchesAreWellFormed(t *testing.T) {
	dir := filepath.Join("..", "..", "..", "migrations")
	patches, err := ListPatches(dir)
	require.NoError(t, err)
	require.NotEmpty(t, patches)

	for _, p := range patches {
		_, err := os.Stat(filepath.Join(dir, p.String()+".down.sql"))
		assert.NoError(t, err, "patch %s has no rollback", p)
	}
}
