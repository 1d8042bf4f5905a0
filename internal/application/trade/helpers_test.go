package trade

import (
	"context"
	"testing"

	financeapp "github.com/erp/retail/internal/application/finance"
	inventoryapp "github.com/erp/retail/internal/application/inventory"
	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/inventory"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/erp/retail/internal/infrastructure/event"
	"github.com/erp/retail/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	*testutil.Fixture
	bus         *event.InMemoryEventBus
	payments    *financeapp.PaymentService
	methods     *financeapp.MethodService
	groups      *financeapp.GroupService
	tills       *financeapp.TillService
	ledger      *inventoryapp.StockLedger
	purchases   *PurchaseService
	receivings  *ReceivingService
	quotes      *QuoteService
	commissions *CommissionService
	sales       *SaleService
	returns     *ReturnService
	loans       *LoanService
	deliveries  *DeliveryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ts := testutil.NewStore(t)
	f := testutil.NewFixture(t, ts)
	logger := zap.NewNop()

	bus := event.NewInMemoryEventBus(logger)
	payments := financeapp.NewPaymentService(nil, logger)
	methods := financeapp.NewMethodService(logger)
	tills := financeapp.NewTillService(payments, methods, nil, logger)
	groups := financeapp.NewGroupService(payments, tills, logger)
	ledger := inventoryapp.NewStockLedger(logger).WithPublisher(bus)
	purchases := NewPurchaseService(groups, methods, payments, logger)
	commissions := NewCommissionService(logger)
	sales := NewSaleService(groups, methods, payments, ledger, commissions, logger)
	sales.SetEventPublisher(bus)
	loans := NewLoanService(sales, ledger, logger)
	loans.SetEventPublisher(bus)
	deliveries := NewDeliveryService(logger)
	deliveries.SetEventPublisher(bus)

	return &testEnv{
		Fixture:     f,
		bus:         bus,
		payments:    payments,
		methods:     methods,
		groups:      groups,
		tills:       tills,
		ledger:      ledger,
		purchases:   purchases,
		receivings:  NewReceivingService(purchases, ledger, logger),
		quotes:      NewQuoteService(purchases, logger),
		commissions: commissions,
		sales:       sales,
		returns:     NewReturnService(sales, logger),
		loans:       loans,
		deliveries:  deliveries,
	}
}

func (e *testEnv) run(t *testing.T, fn func(ctx context.Context, st store.Store) error) {
	t.Helper()
	e.Store.Run(t, fn)
}

func (e *testEnv) try(fn func(ctx context.Context, st store.Store) error) error {
	return e.Store.Try(fn)
}

func (e *testEnv) balance(t *testing.T, g *testutil.Goods) decimal.Decimal {
	t.Helper()
	var balance decimal.Decimal
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		balance, err = e.ledger.GetBalanceForBranch(ctx, st, g.Storable.ID, e.Branch.ID)
		return err
	})
	return balance
}

func (e *testEnv) history(t *testing.T, g *testutil.Goods) []inventory.StockTransactionHistory {
	t.Helper()
	var rows []inventory.StockTransactionHistory
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		rows, err = e.ledger.History(ctx, st, g.Storable.ID, e.Branch.ID, nil)
		return err
	})
	return rows
}

func historyOfType(rows []inventory.StockTransactionHistory, kind inventory.HistoryType) []inventory.StockTransactionHistory {
	var out []inventory.StockTransactionHistory
	for _, row := range rows {
		if row.Type == kind {
			out = append(out, row)
		}
	}
	return out
}

func (e *testEnv) openTill(t *testing.T) *finance.Till {
	t.Helper()
	var till *finance.Till
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		till, err = e.tills.OpenTill(ctx, st, e.Ctx)
		return err
	})
	return till
}

// sale creates a sale for client with qty units of every goods, ordered
func (e *testEnv) sale(t *testing.T, clientID *uuid.UUID, lines map[*testutil.Goods]string) *trade.Sale {
	t.Helper()
	var sale *trade.Sale
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		if sale, err = e.sales.CreateSale(ctx, st, e.Ctx, clientID, nil); err != nil {
			return err
		}
		for g, qty := range lines {
			if _, err := e.sales.AddSellable(ctx, st, e.Ctx, sale, AddSellableRequest{
				SellableID: g.Sellable.ID,
				Quantity:   testutil.D(qty),
			}); err != nil {
				return err
			}
		}
		return e.sales.Order(ctx, st, e.Ctx, sale)
	})
	return sale
}

// pay adds a preview payment of method to group
func (e *testEnv) pay(t *testing.T, groupID uuid.UUID, name finance.MethodName, value string) *finance.Payment {
	t.Helper()
	var p *finance.Payment
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		p, err = e.methods.CreatePayment(ctx, st, e.Ctx, e.Method(name), financeapp.PaymentRequest{
			Type:    finance.PaymentTypeIn,
			GroupID: groupID,
			Value:   testutil.D(value),
		})
		return err
	})
	return p
}

func (e *testEnv) confirm(t *testing.T, sale *trade.Sale, till *finance.Till) {
	t.Helper()
	e.run(t, func(ctx context.Context, st store.Store) error {
		return e.sales.Confirm(ctx, st, e.Ctx, sale, till)
	})
}

func (e *testEnv) reloadSale(t *testing.T, sale *trade.Sale) *trade.Sale {
	t.Helper()
	var out *trade.Sale
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		out, err = st.Sales().FindByID(ctx, sale.ID)
		return err
	})
	return out
}

func (e *testEnv) saleItems(t *testing.T, sale *trade.Sale) []trade.SaleItem {
	t.Helper()
	var items []trade.SaleItem
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		items, err = e.sales.Items(ctx, st, sale.ID)
		return err
	})
	return items
}

func (e *testEnv) groupPayments(t *testing.T, groupID uuid.UUID) finance.Payments {
	t.Helper()
	var payments finance.Payments
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		payments, err = e.groups.GetPayments(ctx, st, groupID)
		return err
	})
	return payments
}

func (e *testEnv) fiscalEntries(t *testing.T, groupID uuid.UUID) []finance.FiscalBookEntry {
	t.Helper()
	var entries []finance.FiscalBookEntry
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		entries, err = st.FiscalEntries().FindAll(ctx, shared.Where("payment_group_id", groupID))
		return err
	})
	return entries
}

func (e *testEnv) commissionsOf(t *testing.T, sale *trade.Sale) []finance.Commission {
	t.Helper()
	var out []finance.Commission
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		out, err = st.Commissions().FindAll(ctx, shared.Where("sale_id", sale.ID))
		return err
	})
	return out
}

func requireCode(t *testing.T, err error, target *shared.DomainError) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, target)
}
