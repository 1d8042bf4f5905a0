package trade

import (
	"context"
	"testing"
	"time"

	financeapp "github.com/erp/retail/internal/application/finance"
	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/catalog"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/param"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/erp/retail/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commissioned returns a product earning 5% direct and 3% in installments
func (e *testEnv) commissioned(t *testing.T) *testutil.Goods {
	t.Helper()
	p := e.Product(t, "P", "10", "6", false)
	e.Stock(t, p, "10", "6", nil)
	e.run(t, func(ctx context.Context, st store.Store) error {
		source, err := catalog.NewSellableCommissionSource(p.Sellable.ID, testutil.D("5"), testutil.D("3"))
		if err != nil {
			return err
		}
		return st.CommissionSources().Save(ctx, source)
	})
	return p
}

// soldBy creates an ordered sale of qty units of g made by a new salesperson
func (e *testEnv) soldBy(t *testing.T, g *testutil.Goods, qty string) *trade.Sale {
	t.Helper()
	sp := e.SalesPerson(t, "Bob")
	var sale *trade.Sale
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		if sale, err = e.sales.CreateSale(ctx, st, e.Ctx, nil, &sp.ID); err != nil {
			return err
		}
		if _, err := e.sales.AddSellable(ctx, st, e.Ctx, sale, AddSellableRequest{
			SellableID: g.Sellable.ID,
			Quantity:   testutil.D(qty),
		}); err != nil {
			return err
		}
		return e.sales.Order(ctx, st, e.Ctx, sale)
	})
	return sale
}

func (e *testEnv) installments(t *testing.T, sale *trade.Sale, value string, n int) []*finance.Payment {
	t.Helper()
	dueDates := make([]time.Time, n)
	for i := range dueDates {
		dueDates[i] = testutil.Now.AddDate(0, i+1, 0)
	}
	var created []*finance.Payment
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		created, err = e.methods.CreatePayments(ctx, st, e.Ctx, e.Method(finance.MethodBill), financeapp.PaymentRequest{
			Type:    finance.PaymentTypeIn,
			GroupID: sale.GroupID,
			Value:   testutil.D(value),
		}, dueDates)
		return err
	})
	return created
}

func (e *testEnv) payPending(t *testing.T, p *finance.Payment) {
	t.Helper()
	e.run(t, func(ctx context.Context, st store.Store) error {
		fresh, err := st.Payments().FindByID(ctx, p.ID)
		if err != nil {
			return err
		}
		return e.payments.Pay(ctx, st, e.Ctx, fresh, financeapp.PayOptions{})
	})
}

func TestCommissionService_SourceFor(t *testing.T) {
	env := newTestEnv(t)
	base := catalog.NewSellableCategory("Tools", nil)
	child := catalog.NewSellableCategory("Hammers", base)
	p := env.Product(t, "H", "10", "6", false)
	loose := env.Product(t, "L", "10", "6", false)

	env.run(t, func(ctx context.Context, st store.Store) error {
		for _, c := range []*catalog.SellableCategory{base, child} {
			if err := st.Categories().Save(ctx, c); err != nil {
				return err
			}
		}
		source, err := catalog.NewCategoryCommissionSource(base.ID, testutil.D("4"), testutil.D("2"))
		if err != nil {
			return err
		}
		if err := st.CommissionSources().Save(ctx, source); err != nil {
			return err
		}
		p.Sellable.CategoryID = &child.ID
		return st.Sellables().Save(ctx, p.Sellable)
	})

	env.run(t, func(ctx context.Context, st store.Store) error {
		inherited, err := env.commissions.SourceFor(ctx, st, p.Sellable.ID)
		require.NoError(t, err)
		require.NotNil(t, inherited)
		require.NotNil(t, inherited.CategoryID)
		assert.Equal(t, base.ID, *inherited.CategoryID)

		none, err := env.commissions.SourceFor(ctx, st, loose.Sellable.ID)
		require.NoError(t, err)
		assert.Nil(t, none)

		own, err := catalog.NewSellableCommissionSource(p.Sellable.ID, testutil.D("7"), testutil.D("6"))
		require.NoError(t, err)
		require.NoError(t, st.CommissionSources().Save(ctx, own))

		found, err := env.commissions.SourceFor(ctx, st, p.Sellable.ID)
		require.NoError(t, err)
		assert.Equal(t, own.ID, found.ID)
		return nil
	})
}

func TestCommissionService_CreatedOnConfirm(t *testing.T) {
	env := newTestEnv(t)
	env.SetParam(param.SalePayCommissionWhenConfirmed, true)
	p := env.commissioned(t)
	sale := env.soldBy(t, p, "3")
	env.installments(t, sale, "30", 2)

	env.confirm(t, sale, nil)

	commissions := env.commissionsOf(t, sale)
	require.Len(t, commissions, 2)
	for _, c := range commissions {
		assert.Equal(t, finance.CommissionInstallments, c.CommissionType)
		testutil.AssertDecimal(t, "0.45", c.Value)
	}
}

func TestCommissionService_CreatedOnPay(t *testing.T) {
	env := newTestEnv(t)
	p := env.commissioned(t)
	sale := env.soldBy(t, p, "3")
	created := env.installments(t, sale, "30", 2)
	env.confirm(t, sale, nil)
	assert.Empty(t, env.commissionsOf(t, sale))

	env.payPending(t, created[0])
	commissions := env.commissionsOf(t, sale)
	require.Len(t, commissions, 1)
	assert.Equal(t, created[0].ID, commissions[0].PaymentID)
	assert.False(t, env.reloadSale(t, sale).Paid)

	env.payPending(t, created[1])
	assert.Len(t, env.commissionsOf(t, sale), 2)
	assert.True(t, env.reloadSale(t, sale).Paid)
}

func TestCommissionService_UnpaidPaymentDropsCommission(t *testing.T) {
	env := newTestEnv(t)
	p := env.commissioned(t)
	sale := env.soldBy(t, p, "3")
	created := env.installments(t, sale, "30", 1)
	env.confirm(t, sale, nil)
	env.payPending(t, created[0])
	require.Len(t, env.commissionsOf(t, sale), 1)
	require.True(t, env.reloadSale(t, sale).Paid)

	env.run(t, func(ctx context.Context, st store.Store) error {
		fresh, err := st.Payments().FindByID(ctx, created[0].ID)
		if err != nil {
			return err
		}
		return env.payments.SetNotPaid(ctx, st, env.Ctx, fresh, "bounced")
	})

	assert.Empty(t, env.commissionsOf(t, sale))
	assert.False(t, env.reloadSale(t, sale).Paid)
}

func TestCommissionService_CashSaleAndReturn(t *testing.T) {
	env := newTestEnv(t)
	p := env.commissioned(t)
	till := env.openTill(t)
	sale := env.soldBy(t, p, "3")
	env.pay(t, sale.GroupID, finance.MethodMoney, "30")
	env.confirm(t, sale, till)

	commissions := env.commissionsOf(t, sale)
	require.Len(t, commissions, 1)
	assert.Equal(t, finance.CommissionDirect, commissions[0].CommissionType)
	testutil.AssertDecimal(t, "1.5", commissions[0].Value)

	env.returnQuantity(t, env.reloadSale(t, sale), "1")

	commissions = env.commissionsOf(t, sale)
	require.Len(t, commissions, 1)
	testutil.AssertDecimal(t, "1", commissions[0].Value)
}

func TestCommissionService_NoSalesPerson(t *testing.T) {
	env := newTestEnv(t)
	p := env.commissioned(t)
	till := env.openTill(t)
	sale := env.sale(t, nil, map[*testutil.Goods]string{p: "1"})
	env.pay(t, sale.GroupID, finance.MethodMoney, "10")
	env.confirm(t, sale, till)

	assert.Empty(t, env.commissionsOf(t, sale))
}

func TestCommissionService_FactorScalesValue(t *testing.T) {
	env := newTestEnv(t)
	p := env.commissioned(t)
	sale := env.soldBy(t, p, "2")
	env.run(t, func(ctx context.Context, st store.Store) error {
		sp, err := st.SalesPersons().FindByID(ctx, *sale.SalesPersonID)
		if err != nil {
			return err
		}
		sp.CommissionFactor = testutil.D("2")
		return st.SalesPersons().Save(ctx, sp)
	})
	created := env.installments(t, sale, "20", 1)
	env.confirm(t, sale, nil)
	env.payPending(t, created[0])

	commissions := env.commissionsOf(t, sale)
	require.Len(t, commissions, 1)
	testutil.AssertDecimal(t, "2", commissions[0].Value)
}
