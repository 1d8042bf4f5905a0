package finance

import (
	"context"
	"testing"
	"time"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodService_CreatePaymentDefaults(t *testing.T) {
	env := newTestEnv(t)
	g := env.group(t, nil)
	p := env.payment(t, g, finance.MethodBill, finance.PaymentTypeIn, "10", finance.PaymentStatusPreview)

	assert.Equal(t, finance.PaymentStatusPreview, p.Status)
	assert.Equal(t, "Bill payment", p.Description)
	assert.Equal(t, env.Branch.ID, p.BranchID)
	assert.Positive(t, p.Identifier)
	assert.True(t, p.DueDate.Equal(env.Ctx.Today()))
	testutil.AssertDecimal(t, "10", p.BaseValue)
}

func TestMethodService_CreatePaymentValidation(t *testing.T) {
	tests := []struct {
		name    string
		method  finance.MethodName
		value   string
		prepare func(env *testEnv, m *finance.PaymentMethod)
		wantErr *shared.DomainError
	}{
		{name: "zero value", method: finance.MethodBill, value: "0", wantErr: shared.ErrValueOutOfRange},
		{name: "negative value", method: finance.MethodBill, value: "-1", wantErr: shared.ErrValueOutOfRange},
		{
			name:   "inactive method",
			method: finance.MethodCheck,
			value:  "10",
			prepare: func(_ *testEnv, m *finance.PaymentMethod) {
				m.IsActive = false
			},
			wantErr: shared.ErrPaymentMethod,
		},
		{name: "credit without client", method: finance.MethodCredit, value: "10", wantErr: shared.ErrPaymentMethod},
		{name: "store credit without client", method: finance.MethodStoreCredit, value: "10", wantErr: shared.ErrPaymentMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			g := env.group(t, nil)
			method := *env.Method(tt.method)
			if tt.prepare != nil {
				tt.prepare(env, &method)
			}
			err := env.try(func(ctx context.Context, st store.Store) error {
				_, err := env.methods.CreatePayment(ctx, st, env.Ctx, &method, PaymentRequest{
					Type:    finance.PaymentTypeIn,
					GroupID: g.ID,
					Value:   testutil.D(tt.value),
				})
				return err
			})
			requireCode(t, err, tt.wantErr)
		})
	}
}

func TestMethodService_CreatePaymentsSplitsValue(t *testing.T) {
	env := newTestEnv(t)
	g := env.group(t, nil)
	dueDates := []time.Time{
		testutil.Now,
		testutil.Now.AddDate(0, 1, 0),
		testutil.Now.AddDate(0, 2, 0),
	}

	var payments []*finance.Payment
	env.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		payments, err = env.methods.CreatePayments(ctx, st, env.Ctx, env.Method(finance.MethodCheck), PaymentRequest{
			Type:        finance.PaymentTypeIn,
			GroupID:     g.ID,
			Value:       testutil.D("100"),
			Description: "Sale 7",
		}, dueDates)
		return err
	})

	require.Len(t, payments, 3)
	testutil.AssertDecimal(t, "33.33", payments[0].Value)
	testutil.AssertDecimal(t, "33.33", payments[1].Value)
	testutil.AssertDecimal(t, "33.34", payments[2].Value)
	assert.Equal(t, "1/3 Sale 7", payments[0].Description)
	assert.Equal(t, "3/3 Sale 7", payments[2].Description)
	for i, p := range payments {
		assert.True(t, p.DueDate.Equal(dueDates[i]))
	}

	var total decimal.Decimal
	env.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		total, err = env.groups.GetTotalValue(ctx, st, g.ID)
		return err
	})
	testutil.AssertDecimal(t, "100", total)
}

func TestMethodService_CreatePaymentsSingleDueDateKeepsDescription(t *testing.T) {
	env := newTestEnv(t)
	g := env.group(t, nil)

	var payments []*finance.Payment
	env.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		payments, err = env.methods.CreatePayments(ctx, st, env.Ctx, env.Method(finance.MethodBill), PaymentRequest{
			Type:        finance.PaymentTypeOut,
			GroupID:     g.ID,
			Value:       testutil.D("15"),
			Description: "Rent",
		}, []time.Time{testutil.Now})
		return err
	})
	require.Len(t, payments, 1)
	assert.Equal(t, "Rent", payments[0].Description)

	err := env.try(func(ctx context.Context, st store.Store) error {
		_, err := env.methods.CreatePayments(ctx, st, env.Ctx, env.Method(finance.MethodBill), PaymentRequest{
			Type:    finance.PaymentTypeOut,
			GroupID: g.ID,
			Value:   testutil.D("15"),
		}, nil)
		return err
	})
	requireCode(t, err, shared.ErrInvalidInput)
}

func TestMethodService_InstallmentCap(t *testing.T) {
	env := newTestEnv(t)
	g := env.group(t, nil)
	money := env.Method(finance.MethodMoney)
	first := env.payment(t, g, finance.MethodMoney, finance.PaymentTypeIn, "10", finance.PaymentStatusPreview)

	create := func() error {
		return env.try(func(ctx context.Context, st store.Store) error {
			_, err := env.methods.CreatePayment(ctx, st, env.Ctx, money, PaymentRequest{
				Type:    finance.PaymentTypeIn,
				GroupID: g.ID,
				Value:   testutil.D("10"),
			})
			return err
		})
	}

	requireCode(t, create(), shared.ErrPaymentMethod)

	// outpayments are not capped
	env.payment(t, g, finance.MethodMoney, finance.PaymentTypeOut, "3", finance.PaymentStatusPreview)
	env.payment(t, g, finance.MethodMoney, finance.PaymentTypeOut, "3", finance.PaymentStatusPreview)

	// a row inserted behind the service back exceeds the cap
	env.run(t, func(ctx context.Context, st store.Store) error {
		extra, err := finance.NewPayment(finance.PaymentTypeIn, money, g.ID, env.Branch.ID, testutil.D("1"), testutil.Now, testutil.Now)
		if err != nil {
			return err
		}
		extra.Identifier = first.Identifier + 100
		return st.Payments().Save(ctx, extra)
	})
	requireCode(t, create(), shared.ErrDatabaseInconsistency)
}

func TestMethodService_CancelledPaymentsFreeTheCap(t *testing.T) {
	env := newTestEnv(t)
	g := env.group(t, nil)
	env.payment(t, g, finance.MethodMoney, finance.PaymentTypeIn, "10", finance.PaymentStatusCancelled)
	p := env.payment(t, g, finance.MethodMoney, finance.PaymentTypeIn, "10", finance.PaymentStatusPreview)
	assert.NotNil(t, p)
}

func TestMethodService_MethodDataRows(t *testing.T) {
	env := newTestEnv(t)
	g := env.group(t, nil)
	check := env.payment(t, g, finance.MethodCheck, finance.PaymentTypeIn, "10", finance.PaymentStatusPreview)
	card := env.payment(t, g, finance.MethodCard, finance.PaymentTypeIn, "10", finance.PaymentStatusPreview)
	bill := env.payment(t, g, finance.MethodBill, finance.PaymentTypeIn, "10", finance.PaymentStatusPreview)

	env.run(t, func(ctx context.Context, st store.Store) error {
		n, err := st.CheckData().Count(ctx, shared.Where("payment_id", check.ID))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = st.CardData().Count(ctx, shared.Where("payment_id", card.ID))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = st.CheckData().Count(ctx, shared.Where("payment_id", bill.ID))
		require.NoError(t, err)
		assert.EqualValues(t, 0, n)
		return nil
	})
}

func TestMethodService_StoreCreditLimit(t *testing.T) {
	env := newTestEnv(t)
	client := env.Client(t, "Bruno")
	client.CreditLimit = testutil.D("100")
	env.run(t, func(ctx context.Context, st store.Store) error {
		return st.Clients().Save(ctx, client)
	})

	first := env.group(t, &client.PersonID)
	env.payment(t, first, finance.MethodStoreCredit, finance.PaymentTypeIn, "70", finance.PaymentStatusPending)

	second := env.group(t, &client.PersonID)
	create := func(value string) error {
		return env.try(func(ctx context.Context, st store.Store) error {
			_, err := env.methods.CreatePayment(ctx, st, env.Ctx, env.Method(finance.MethodStoreCredit), PaymentRequest{
				Type:    finance.PaymentTypeIn,
				GroupID: second.ID,
				Value:   testutil.D(value),
			})
			return err
		})
	}

	requireCode(t, create("40"), shared.ErrPaymentMethod)
	require.NoError(t, create("30"))
}

func TestMethodService_CreditNeedsBalance(t *testing.T) {
	env := newTestEnv(t)
	client := env.Client(t, "Carla")
	client.CreditBalance = testutil.D("20")
	env.run(t, func(ctx context.Context, st store.Store) error {
		return st.Clients().Save(ctx, client)
	})
	g := env.group(t, &client.PersonID)

	create := func(value string) error {
		return env.try(func(ctx context.Context, st store.Store) error {
			_, err := env.methods.CreatePayment(ctx, st, env.Ctx, env.Method(finance.MethodCredit), PaymentRequest{
				Type:    finance.PaymentTypeIn,
				GroupID: g.ID,
				Value:   testutil.D(value),
			})
			return err
		})
	}
	requireCode(t, create("25"), shared.ErrPaymentMethod)
	require.NoError(t, create("20"))
}

func TestMethodService_CreateRepeated(t *testing.T) {
	t.Run("monthly clamps to the end of shorter months", func(t *testing.T) {
		env := newTestEnv(t)
		g := env.group(t, nil)
		p := env.payment(t, g, finance.MethodBill, finance.PaymentTypeOut, "99.90", finance.PaymentStatusPreview)
		p.Description = "Rent"

		start := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC)
		var series []*finance.Payment
		env.run(t, func(ctx context.Context, st store.Store) error {
			var err error
			series, err = env.methods.CreateRepeated(ctx, st, env.Ctx, p, finance.RepeatMonthly, start, end)
			return err
		})

		require.Len(t, series, 4)
		want := []time.Time{
			start,
			time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
			time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
			end,
		}
		for i, s := range series {
			assert.True(t, s.DueDate.Equal(want[i]), "installment %d due %s", i+1, s.DueDate)
			testutil.AssertDecimal(t, "99.90", s.Value)
			assert.Equal(t, g.ID, s.GroupID)
		}
		assert.Equal(t, p.ID, series[0].ID)
		assert.Equal(t, "1/4 Rent", env.reload(t, p).Description)
		assert.Equal(t, "4/4 Rent", series[3].Description)
	})

	t.Run("a single date is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		g := env.group(t, nil)
		p := env.payment(t, g, finance.MethodBill, finance.PaymentTypeOut, "10", finance.PaymentStatusPreview)

		err := env.try(func(ctx context.Context, st store.Store) error {
			_, err := env.methods.CreateRepeated(ctx, st, env.Ctx, p, finance.RepeatYearly, testutil.Now, testutil.Now.AddDate(0, 6, 0))
			return err
		})
		requireCode(t, err, shared.ErrInvalidInput)
	})
}
