package trade

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func createTestPurchase(t *testing.T) *PurchaseOrder {
	t.Helper()
	return NewPurchaseOrder(uuid.New(), uuid.New(), uuid.New(), now)
}

func createTestPurchaseItem(t *testing.T, order *PurchaseOrder, qty, cost string) PurchaseItem {
	t.Helper()
	item, err := NewPurchaseItem(order.ID, uuid.New(), decimal.RequireFromString(qty), decimal.RequireFromString(cost))
	require.NoError(t, err)
	return *item
}

// ============================================
// PurchaseStatus Tests
// ============================================

func TestPurchaseStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     PurchaseStatus
		to       PurchaseStatus
		canTrans bool
	}{
		{PurchaseStatusQuoting, PurchaseStatusPending, true},
		{PurchaseStatusQuoting, PurchaseStatusConfirmed, false},
		{PurchaseStatusPending, PurchaseStatusConsigned, true},
		{PurchaseStatusPending, PurchaseStatusClosed, false},
		{PurchaseStatusConsigned, PurchaseStatusConfirmed, true},
		{PurchaseStatusConsigned, PurchaseStatusCancelled, false},
		{PurchaseStatusConfirmed, PurchaseStatusClosed, true},
		{PurchaseStatusClosed, PurchaseStatusCancelled, false},
		{PurchaseStatusCancelled, PurchaseStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.canTrans, tt.from.CanTransitionTo(tt.to))
		})
	}
}

// ============================================
// PurchaseOrder Tests
// ============================================

func TestPurchaseOrder_Confirm(t *testing.T) {
	order := createTestPurchase(t)
	user := uuid.New()
	require.NoError(t, order.Confirm(now, user))
	assert.Equal(t, PurchaseStatusConfirmed, order.Status)
	assert.Equal(t, user, *order.ResponsibleID)

	err := order.Confirm(now, user)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	assert.Contains(t, err.Error(), "confirmed")
}

func TestPurchaseOrder_Consigned(t *testing.T) {
	order := createTestPurchase(t)
	require.NoError(t, order.SetConsigned())
	assert.True(t, order.IsConsignment())
	require.NoError(t, order.Confirm(now, uuid.New()))
	assert.Error(t, order.SetConsigned())
}

func TestPurchaseOrder_CancelAndClose(t *testing.T) {
	t.Run("partial reception blocks cancel", func(t *testing.T) {
		order := createTestPurchase(t)
		item := createTestPurchaseItem(t, order, "5", "10")
		require.NoError(t, item.Receive(decimal.NewFromInt(2)))
		items := []PurchaseItem{item}
		assert.False(t, order.CanCancel(items))
		assert.Error(t, order.Cancel(items, now))
		assert.Equal(t, PurchaseStatusPending, order.Status)
	})

	t.Run("close needs full reception", func(t *testing.T) {
		order := createTestPurchase(t)
		item := createTestPurchaseItem(t, order, "5", "10")
		require.NoError(t, order.Confirm(now, uuid.New()))
		assert.Error(t, order.Close([]PurchaseItem{item}, now))

		require.NoError(t, item.Receive(decimal.NewFromInt(5)))
		require.NoError(t, order.Close([]PurchaseItem{item}, now))
		assert.Equal(t, PurchaseStatusClosed, order.Status)
		assert.NotNil(t, order.ReceivalDate)
	})
}

func TestPurchaseOrder_Totals(t *testing.T) {
	order := createTestPurchase(t)
	a := createTestPurchaseItem(t, order, "2", "10.50")
	b := createTestPurchaseItem(t, order, "3", "4")
	order.SurchargeValue = decimal.NewFromInt(5)
	order.DiscountValue = decimal.NewFromInt(2)
	items := []PurchaseItem{a, b}

	assert.Equal(t, "33", order.Subtotal(items).String())
	assert.Equal(t, "36", order.Total(items).String())

	require.NoError(t, items[0].Receive(decimal.NewFromInt(1)))
	assert.Equal(t, "10.5", order.ReceivedTotal(items).String())
}

// ============================================
// PurchaseItem Tests
// ============================================

func TestPurchaseItem_Receive(t *testing.T) {
	order := createTestPurchase(t)
	item := createTestPurchaseItem(t, order, "5", "1")

	assert.True(t, errors.Is(item.Receive(decimal.Zero), shared.ErrValueOutOfRange))
	assert.True(t, errors.Is(item.Receive(decimal.NewFromInt(6)), shared.ErrValueOutOfRange))
	require.NoError(t, item.Receive(decimal.NewFromInt(3)))
	assert.True(t, item.HasPartialReception())
	assert.Equal(t, "2", item.PendingQuantity().String())
}

func TestPurchaseItem_Consignment(t *testing.T) {
	order := createTestPurchase(t)
	item := createTestPurchaseItem(t, order, "10", "2")
	require.NoError(t, item.Receive(decimal.NewFromInt(10)))
	require.NoError(t, item.MarkSold(decimal.NewFromInt(7)))
	require.NoError(t, item.MarkReturned(decimal.NewFromInt(3)))
	assert.True(t, item.ConsignedPending().IsZero())
	assert.Error(t, item.MarkSold(decimal.NewFromInt(1)))
}

func TestNewPurchaseItem_Validation(t *testing.T) {
	_, err := NewPurchaseItem(uuid.New(), uuid.New(), decimal.Zero, decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, shared.ErrValueOutOfRange))
	_, err = NewPurchaseItem(uuid.New(), uuid.New(), decimal.NewFromInt(1), decimal.NewFromInt(-1))
	assert.True(t, errors.Is(err, shared.ErrValueOutOfRange))
}
