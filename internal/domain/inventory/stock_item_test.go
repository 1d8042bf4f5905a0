package inventory

import (
	"testing"
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProductStockItem_Increase(t *testing.T) {
	t.Run("weighted average cost", func(t *testing.T) {
		item := NewProductStockItem(uuid.New(), uuid.New(), nil)
		cost := d("10")
		require.NoError(t, item.Increase(d("10"), &cost, 2))
		cost = d("20")
		require.NoError(t, item.Increase(d("30"), &cost, 2))

		assert.True(t, item.Quantity.Equal(d("40")))
		assert.True(t, item.StockCost.Equal(d("17.5")), "got %s", item.StockCost)
	})

	t.Run("without cost keeps stock cost", func(t *testing.T) {
		item := NewProductStockItem(uuid.New(), uuid.New(), nil)
		cost := d("4")
		require.NoError(t, item.Increase(d("2"), &cost, 2))
		require.NoError(t, item.Increase(d("2"), nil, 2))
		assert.True(t, item.StockCost.Equal(d("4")))
		assert.True(t, item.Quantity.Equal(d("4")))
	})

	t.Run("rounds to cost precision", func(t *testing.T) {
		item := NewProductStockItem(uuid.New(), uuid.New(), nil)
		cost := d("1")
		require.NoError(t, item.Increase(d("2"), &cost, 4))
		cost = d("2")
		require.NoError(t, item.Increase(d("1"), &cost, 4))
		assert.True(t, item.StockCost.Equal(d("1.3333")))
	})

	t.Run("rejects non positive quantity and negative cost", func(t *testing.T) {
		item := NewProductStockItem(uuid.New(), uuid.New(), nil)
		assert.ErrorIs(t, item.Increase(decimal.Zero, nil, 2), shared.ErrValueOutOfRange)
		neg := d("-1")
		assert.ErrorIs(t, item.Increase(d("1"), &neg, 2), shared.ErrValueOutOfRange)
		assert.True(t, item.Quantity.IsZero())
	})
}

func TestProductStockItem_Decrease(t *testing.T) {
	item := NewProductStockItem(uuid.New(), uuid.New(), nil)
	require.NoError(t, item.Increase(d("5"), nil, 2))

	err := item.Decrease(d("6"))
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.True(t, item.Quantity.Equal(d("5")))

	require.NoError(t, item.Decrease(d("5")))
	assert.True(t, item.Quantity.IsZero())
}

func TestNewStockTransactionHistory(t *testing.T) {
	batch := uuid.New()
	item := NewProductStockItem(uuid.New(), uuid.New(), &batch)
	obj := uuid.New()
	now := time.Now()

	h := NewStockTransactionHistory(item, d("-2"), HistoryTypeSold, uuid.New(), now).WithObject(obj)

	assert.Equal(t, item.ID, h.StockItemID)
	assert.Equal(t, &batch, h.BatchID)
	assert.Equal(t, obj, *h.ObjectID)
	assert.False(t, h.IsIncrease())
	assert.True(t, HistoryTypeSold.IsValid())
	assert.False(t, HistoryType("bogus").IsValid())
}
