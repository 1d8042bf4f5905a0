package finance

import (
	"context"
	"testing"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupService_ConfirmSetsPreviewPending(t *testing.T) {
	env := newTestEnv(t)
	g := env.group(t, nil)
	a := env.payment(t, g, finance.MethodCheck, finance.PaymentTypeIn, "10", finance.PaymentStatusPreview)
	b := env.payment(t, g, finance.MethodCheck, finance.PaymentTypeIn, "10", finance.PaymentStatusPaid)

	env.run(t, func(ctx context.Context, st store.Store) error {
		return env.groups.Confirm(ctx, st, env.Ctx, g.ID)
	})

	assert.Equal(t, finance.PaymentStatusPending, env.reload(t, a).Status)
	assert.Equal(t, finance.PaymentStatusPaid, env.reload(t, b).Status)
}

func TestGroupService_CancelKeepsPaidPayments(t *testing.T) {
	env := newTestEnv(t)
	g := env.group(t, nil)
	paid := env.payment(t, g, finance.MethodBill, finance.PaymentTypeIn, "10", finance.PaymentStatusPaid)
	pending := env.payment(t, g, finance.MethodCheck, finance.PaymentTypeIn, "20", finance.PaymentStatusPending)
	preview := env.payment(t, g, finance.MethodBill, finance.PaymentTypeIn, "30", finance.PaymentStatusPreview)

	env.run(t, func(ctx context.Context, st store.Store) error {
		return env.groups.Cancel(ctx, st, env.Ctx, g.ID, "order dropped")
	})

	assert.Equal(t, finance.PaymentStatusPaid, env.reload(t, paid).Status)
	assert.Equal(t, finance.PaymentStatusCancelled, env.reload(t, pending).Status)
	assert.Equal(t, finance.PaymentStatusCancelled, env.reload(t, preview).Status)
	assert.Len(t, env.transactions(t, paid), 1)
}

func TestGroupService_Totals(t *testing.T) {
	env := newTestEnv(t)
	g := env.group(t, nil)
	env.payment(t, g, finance.MethodBill, finance.PaymentTypeIn, "100", finance.PaymentStatusPaid)
	env.payment(t, g, finance.MethodBill, finance.PaymentTypeOut, "30", finance.PaymentStatusPaid)
	env.payment(t, g, finance.MethodCheck, finance.PaymentTypeIn, "80", finance.PaymentStatusCancelled)
	discounted := env.payment(t, g, finance.MethodCheck, finance.PaymentTypeIn, "50", finance.PaymentStatusPending)
	env.run(t, func(ctx context.Context, st store.Store) error {
		if err := discounted.SetDiscount(testutil.D("5")); err != nil {
			return err
		}
		return st.Payments().Save(ctx, discounted)
	})

	var totalPaid, totalValue, totalDiscount decimal.Decimal
	var valid, pending finance.Payments
	env.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		if totalPaid, err = env.groups.GetTotalPaid(ctx, st, g.ID); err != nil {
			return err
		}
		if totalValue, err = env.groups.GetTotalValue(ctx, st, g.ID); err != nil {
			return err
		}
		if totalDiscount, err = env.groups.GetTotalDiscount(ctx, st, g.ID); err != nil {
			return err
		}
		if valid, err = env.groups.GetValidPayments(ctx, st, g.ID); err != nil {
			return err
		}
		pending, err = env.groups.GetPendingPayments(ctx, st, g.ID)
		return err
	})

	testutil.AssertDecimal(t, "70", totalPaid)
	testutil.AssertDecimal(t, "120", totalValue)
	testutil.AssertDecimal(t, "5", totalDiscount)
	assert.Len(t, valid, 3)
	require.Len(t, pending, 1)
	assert.Equal(t, discounted.ID, pending[0].ID)
}

func TestGroupService_PayMoneyPayments(t *testing.T) {
	env := newTestEnv(t)
	till := openTill(t, env)
	g := env.group(t, nil)
	money := env.payment(t, g, finance.MethodMoney, finance.PaymentTypeIn, "25", finance.PaymentStatusPending)
	bill := env.payment(t, g, finance.MethodBill, finance.PaymentTypeIn, "75", finance.PaymentStatusPending)

	var paid []*finance.Payment
	env.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		paid, err = env.groups.PayMoneyPayments(ctx, st, env.Ctx, g.ID, till)
		return err
	})

	require.Len(t, paid, 1)
	assert.Equal(t, money.ID, paid[0].ID)
	assert.Equal(t, finance.PaymentStatusPaid, env.reload(t, money).Status)
	assert.Equal(t, finance.PaymentStatusPending, env.reload(t, bill).Status)
	assert.Equal(t, till.StationID, *env.reload(t, money).StationID)

	env.run(t, func(ctx context.Context, st store.Store) error {
		entries, err := st.TillEntries().FindAll(ctx, shared.Where("till_id", till.ID))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		testutil.AssertDecimal(t, "25", entries[0].Value)
		return nil
	})
}

func TestGroupService_PayMoneyPaymentsWithoutTill(t *testing.T) {
	env := newTestEnv(t)
	g := env.group(t, nil)
	money := env.payment(t, g, finance.MethodMoney, finance.PaymentTypeOut, "12", finance.PaymentStatusPending)

	env.run(t, func(ctx context.Context, st store.Store) error {
		_, err := env.groups.PayMoneyPayments(ctx, st, env.Ctx, g.ID, nil)
		return err
	})
	assert.Equal(t, finance.PaymentStatusPaid, env.reload(t, money).Status)
}
