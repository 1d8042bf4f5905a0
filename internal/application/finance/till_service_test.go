package finance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/param"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTill(t *testing.T, env *testEnv) *finance.Till {
	t.Helper()
	var till *finance.Till
	env.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		till, err = env.tills.OpenTill(ctx, st, env.Ctx)
		return err
	})
	return till
}

func reloadTill(t *testing.T, env *testEnv, till *finance.Till) *finance.Till {
	t.Helper()
	var out *finance.Till
	env.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		out, err = st.Tills().FindByID(ctx, till.ID)
		return err
	})
	return out
}

func (e *testEnv) credit(t *testing.T, till *finance.Till, value string) {
	t.Helper()
	e.run(t, func(ctx context.Context, st store.Store) error {
		_, err := e.tills.AddCredit(ctx, st, e.Ctx, till, testutil.D(value), "float")
		return err
	})
}

func (e *testEnv) closeTill(t *testing.T, till *finance.Till, removeCash string) {
	t.Helper()
	e.run(t, func(ctx context.Context, st store.Store) error {
		return e.tills.CloseTill(ctx, st, e.Ctx, till, testutil.D(removeCash))
	})
}

func (e *testEnv) balance(t *testing.T, till *finance.Till) decimal.Decimal {
	t.Helper()
	var balance decimal.Decimal
	e.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		balance, err = e.tills.GetBalance(ctx, st, till)
		return err
	})
	return balance
}

func TestTillService_CarriesCashForward(t *testing.T) {
	env := newTestEnv(t)
	first := openTill(t, env)
	testutil.AssertDecimal(t, "0", first.InitialCashAmount)
	assert.Positive(t, first.Identifier)

	env.credit(t, first, "50")
	testutil.AssertDecimal(t, "50", env.balance(t, first))
	env.closeTill(t, first, "0")

	closed := reloadTill(t, env, first)
	assert.Equal(t, finance.TillStatusClosed, closed.Status)
	require.NotNil(t, closed.FinalCashAmount)
	testutil.AssertDecimal(t, "50", *closed.FinalCashAmount)

	env.At(testutil.Now.AddDate(0, 0, 1))
	second := openTill(t, env)
	testutil.AssertDecimal(t, "50", second.InitialCashAmount)
	assert.NotEqual(t, first.ID, second.ID)

	var last *finance.Till
	env.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		last, err = env.tills.GetLastClosed(ctx, st, env.Ctx.StationID)
		return err
	})
	assert.Equal(t, first.ID, last.ID)
}

func TestTillService_OpenTillRejections(t *testing.T) {
	t.Run("station already has an open till", func(t *testing.T) {
		env := newTestEnv(t)
		openTill(t, env)
		err := env.try(func(ctx context.Context, st store.Store) error {
			_, err := env.tills.OpenTill(ctx, st, env.Ctx)
			return err
		})
		requireCode(t, err, shared.ErrInvalidState)
	})

	t.Run("till already closed today", func(t *testing.T) {
		env := newTestEnv(t)
		till := openTill(t, env)
		env.closeTill(t, till, "0")
		err := env.try(func(ctx context.Context, st store.Store) error {
			_, err := env.tills.OpenTill(ctx, st, env.Ctx)
			return err
		})
		requireCode(t, err, shared.ErrInvalidState)
	})

	t.Run("other stations are independent", func(t *testing.T) {
		env := newTestEnv(t)
		openTill(t, env)
		env.Ctx.StationID = testutil.NewTestUUID("second-station")
		till := openTill(t, env)
		assert.Equal(t, env.Ctx.StationID, till.StationID)
	})
}

func TestTillService_GetCurrent(t *testing.T) {
	env := newTestEnv(t)
	err := env.try(func(ctx context.Context, st store.Store) error {
		_, err := env.tills.GetCurrent(ctx, st, env.Ctx.StationID)
		return err
	})
	requireCode(t, err, shared.ErrTillClosed)

	err = env.try(func(ctx context.Context, st store.Store) error {
		_, err := env.tills.GetLastClosed(ctx, st, env.Ctx.StationID)
		return err
	})
	requireCode(t, err, shared.ErrNotFound)

	till := openTill(t, env)
	env.run(t, func(ctx context.Context, st store.Store) error {
		current, err := env.tills.GetCurrent(ctx, st, env.Ctx.StationID)
		require.NoError(t, err)
		assert.Equal(t, till.ID, current.ID)
		return nil
	})
}

func TestTillService_CloseWithDeficitFails(t *testing.T) {
	env := newTestEnv(t)
	till := openTill(t, env)
	env.run(t, func(ctx context.Context, st store.Store) error {
		_, err := env.tills.AddDebit(ctx, st, env.Ctx, till, testutil.D("30"), "supplier paid in cash")
		return err
	})
	testutil.AssertDecimal(t, "-30", env.balance(t, till))

	err := env.try(func(ctx context.Context, st store.Store) error {
		current, err := env.tills.GetCurrent(ctx, st, env.Ctx.StationID)
		if err != nil {
			return err
		}
		return env.tills.CloseTill(ctx, st, env.Ctx, current, decimal.Zero)
	})
	requireCode(t, err, shared.ErrValueOutOfRange)

	got := reloadTill(t, env, till)
	assert.Equal(t, finance.TillStatusOpen, got.Status)
	assert.Nil(t, got.FinalCashAmount)
}

func TestTillService_CloseRemovingCash(t *testing.T) {
	env := newTestEnv(t)
	till := openTill(t, env)
	env.credit(t, till, "100")
	env.closeTill(t, till, "60")

	got := reloadTill(t, env, till)
	require.NotNil(t, got.FinalCashAmount)
	testutil.AssertDecimal(t, "40", *got.FinalCashAmount)

	err := env.try(func(ctx context.Context, st store.Store) error {
		return env.tills.CloseTill(ctx, st, env.Ctx, got, decimal.Zero)
	})
	requireCode(t, err, shared.ErrInvalidState)
}

func TestTillService_CloseOutdatedTill(t *testing.T) {
	env := newTestEnv(t)
	till := openTill(t, env)
	env.credit(t, till, "100")

	env.At(testutil.Now.AddDate(0, 0, 1))
	env.closeTill(t, till, "100")

	got := reloadTill(t, env, till)
	require.NotNil(t, got.FinalCashAmount)
	testutil.AssertDecimal(t, "0", *got.FinalCashAmount)
}

func TestTillService_RejectsNegativeRemoval(t *testing.T) {
	env := newTestEnv(t)
	till := openTill(t, env)
	err := env.try(func(ctx context.Context, st store.Store) error {
		return env.tills.CloseTill(ctx, st, env.Ctx, till, testutil.D("-1"))
	})
	requireCode(t, err, shared.ErrValueOutOfRange)
}

func TestTillService_UnusableTill(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, env *testEnv, till *finance.Till)
		wantErr bool
	}{
		{
			name: "closed till",
			prepare: func(t *testing.T, env *testEnv, till *finance.Till) {
				env.closeTill(t, till, "0")
			},
			wantErr: true,
		},
		{
			name: "till opened on a previous day",
			prepare: func(_ *testing.T, env *testEnv, _ *finance.Till) {
				env.At(testutil.Now.AddDate(0, 0, 1))
			},
			wantErr: true,
		},
		{
			name: "outdated operations allowed",
			prepare: func(_ *testing.T, env *testEnv, _ *finance.Till) {
				env.At(testutil.Now.AddDate(0, 0, 1))
				env.SetParam(param.AllowOutdatedOperations, true)
			},
		},
		{
			name: "within the closing tolerance",
			prepare: func(_ *testing.T, env *testEnv, _ *finance.Till) {
				env.At(testutil.Now.AddDate(0, 0, 1))
				env.SetParam(param.TillToleranceForClosing, 24)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			till := openTill(t, env)
			tt.prepare(t, env, till)
			current := reloadTill(t, env, till)

			g := env.group(t, nil)
			p := env.payment(t, g, finance.MethodMoney, finance.PaymentTypeIn, "10", finance.PaymentStatusPending)
			err := env.try(func(ctx context.Context, st store.Store) error {
				_, err := env.tills.AddEntry(ctx, st, env.Ctx, current, p)
				return err
			})
			if tt.wantErr {
				requireCode(t, err, shared.ErrTillClosed)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTillService_OutgoingEntriesOnClosedTill(t *testing.T) {
	env := newTestEnv(t)
	till := openTill(t, env)
	env.closeTill(t, till, "0")
	closed := reloadTill(t, env, till)

	g := env.group(t, nil)
	bill := env.payment(t, g, finance.MethodBill, finance.PaymentTypeOut, "10", finance.PaymentStatusPending)
	money := env.payment(t, g, finance.MethodMoney, finance.PaymentTypeOut, "10", finance.PaymentStatusPending)

	env.run(t, func(ctx context.Context, st store.Store) error {
		_, err := env.tills.AddEntry(ctx, st, env.Ctx, closed, bill)
		return err
	})

	err := env.try(func(ctx context.Context, st store.Store) error {
		_, err := env.tills.AddEntry(ctx, st, env.Ctx, closed, money)
		return err
	})
	requireCode(t, err, shared.ErrTillClosed)

	env.SetParam(param.RequireOpenTillForOutMoney, false)
	env.run(t, func(ctx context.Context, st store.Store) error {
		_, err := env.tills.AddEntry(ctx, st, env.Ctx, closed, money)
		return err
	})
}

func TestTillService_CashAmountCountsPaidMoneyOnly(t *testing.T) {
	env := newTestEnv(t)
	till := openTill(t, env)
	env.credit(t, till, "20")

	g := env.group(t, nil)
	unpaid := env.payment(t, g, finance.MethodMoney, finance.PaymentTypeIn, "7", finance.PaymentStatusPending)
	card := env.payment(t, g, finance.MethodCard, finance.PaymentTypeIn, "90", finance.PaymentStatusPending)
	env.run(t, func(ctx context.Context, st store.Store) error {
		if _, err := env.tills.AddEntry(ctx, st, env.Ctx, till, unpaid); err != nil {
			return err
		}
		if _, err := env.tills.AddEntry(ctx, st, env.Ctx, till, card); err != nil {
			return err
		}
		return env.payments.Pay(ctx, st, env.Ctx, card, PayOptions{})
	})

	var cash decimal.Decimal
	env.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		cash, err = env.tills.GetCashAmount(ctx, st, till)
		return err
	})
	testutil.AssertDecimal(t, "20", cash)

	env.run(t, func(ctx context.Context, st store.Store) error {
		return env.payments.Pay(ctx, st, env.Ctx, unpaid, PayOptions{})
	})
	testutil.AssertDecimal(t, "27", env.balance(t, till))
}

func TestTillService_Verify(t *testing.T) {
	env := newTestEnv(t)
	till := openTill(t, env)

	err := env.try(func(ctx context.Context, st store.Store) error {
		return env.tills.Verify(ctx, st, till, "")
	})
	requireCode(t, err, shared.ErrInvalidState)

	env.closeTill(t, till, "0")
	env.run(t, func(ctx context.Context, st store.Store) error {
		return env.tills.Verify(ctx, st, till, "counted twice")
	})
	got := reloadTill(t, env, till)
	assert.Equal(t, finance.TillStatusVerified, got.Status)
	assert.Equal(t, "counted twice", got.Observations)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[uuid.UUID]string)}
}

func (l *fakeLocker) Acquire(_ context.Context, stationID uuid.UUID, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[stationID]; ok {
		return "", shared.NewDomainError(shared.CodeConcurrencyConflict, "station is locked")
	}
	token := uuid.NewString()
	l.held[stationID] = token
	return token, nil
}

func (l *fakeLocker) Release(_ context.Context, stationID uuid.UUID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[stationID] == token {
		delete(l.held, stationID)
	}
	return nil
}

func TestTillService_StationLock(t *testing.T) {
	env := newTestEnv(t)
	locker := newFakeLocker()
	env.tills = NewTillService(env.payments, env.methods, locker, zap.NewNop())

	_, err := locker.Acquire(context.Background(), env.Ctx.StationID, time.Minute)
	require.NoError(t, err)
	err = env.try(func(ctx context.Context, st store.Store) error {
		_, err := env.tills.OpenTill(ctx, st, env.Ctx)
		return err
	})
	requireCode(t, err, shared.ErrConcurrencyConflict)

	locker.held = make(map[uuid.UUID]string)
	openTill(t, env)
	assert.Empty(t, locker.held)
}
