package integration

import (
	"testing"

	"github.com/erp/retail/internal/infrastructure/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_PatchLifecycle(t *testing.T) {
	tdb := NewTestDB(t)
	dir := findMigrationsPath(t)
	patches, err := migration.ListPatches(dir)
	require.NoError(t, err)
	require.NotEmpty(t, patches)
	latest := patches[len(patches)-1]

	m := newMigrator(t, tdb.DSN)
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, latest.Version, version)

	// re-running is a no-op
	require.NoError(t, m.Up())

	require.NoError(t, m.Down(1))
	version, _, err = m.Version()
	require.NoError(t, err)
	if len(patches) > 1 {
		assert.Equal(t, patches[len(patches)-2].Version, version)
	} else {
		assert.Zero(t, version)
	}

	require.NoError(t, m.Patch(latest.Name))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, latest.Version, version)

	// applying an older patch again changes nothing
	require.NoError(t, m.Patch(patches[0].Name))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, latest.Version, version)

	var indexes int64
	require.NoError(t, tdb.DB.Raw(
		"SELECT count(*) FROM pg_indexes WHERE indexname IN ('idx_payment_group_status', 'uq_product_stock_item_location', 'idx_event_type_date')",
	).Scan(&indexes).Error)
	assert.Equal(t, int64(3), indexes)

	var tables int64
	require.NoError(t, tdb.DB.Raw(
		"SELECT count(*) FROM information_schema.tables WHERE table_name = 'returned_sale_write_off'",
	).Scan(&tables).Error)
	assert.Equal(t, int64(1), tables)

	require.NoError(t, m.Down(0))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
}
