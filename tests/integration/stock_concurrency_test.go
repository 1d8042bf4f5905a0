package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	inventoryapp "github.com/erp/retail/internal/application/inventory"
	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/inventory"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Concurrent decreases of one balance serialize on the row lock: every unit
// is sold exactly once and the history adds up.
func TestStockLedger_ConcurrentDecreases(t *testing.T) {
	tdb := NewTestDB(t)
	f := testutil.NewFixture(t, tdb.TestStore)
	ledger := inventoryapp.NewStockLedger(zap.NewNop())

	p := f.Product(t, "P", "10", "6", false)
	f.Stock(t, p, "10", "6", nil)

	const workers = 16
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
		unexpected   []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := tdb.Try(func(ctx context.Context, st store.Store) error {
				_, err := ledger.DecreaseStock(ctx, st, f.Ctx, inventoryapp.Movement{
					StorableID: p.Storable.ID,
					BranchID:   f.Branch.ID,
					Quantity:   testutil.D("1"),
					Type:       inventory.HistoryTypeSold,
					ObjectID:   uuid.New(),
				})
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			var de *shared.DomainError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &de) && de.Code == shared.CodeInsufficientStock:
				insufficient++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, unexpected)
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, workers-10, insufficient)

	tdb.Run(t, func(ctx context.Context, st store.Store) error {
		balance, err := ledger.GetBalance(ctx, st, p.Storable.ID)
		require.NoError(t, err)
		testutil.AssertDecimal(t, "0", balance)

		history, err := ledger.History(ctx, st, p.Storable.ID, f.Branch.ID, nil)
		require.NoError(t, err)
		sold := 0
		for _, h := range history {
			if h.Type == inventory.HistoryTypeSold {
				sold++
			}
		}
		assert.Equal(t, 10, sold)
		return nil
	})
}

// The location index rejects a second balance row for the same storable,
// branch and missing batch.
func TestStockItem_LocationIsUnique(t *testing.T) {
	tdb := NewTestDB(t)
	f := testutil.NewFixture(t, tdb.TestStore)
	p := f.Product(t, "P", "10", "6", false)
	f.Stock(t, p, "1", "6", nil)

	err := tdb.Try(func(ctx context.Context, st store.Store) error {
		return st.StockItems().Save(ctx, inventory.NewProductStockItem(p.Storable.ID, f.Branch.ID, nil))
	})
	assert.Error(t, err)
}
