package finance

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

func TestTillLifecycle(t *testing.T) {
	user := uuid.New()
	till := NewTill(uuid.New(), uuid.New())
	require.NoError(t, till.Open(decimal.NewFromInt(50), today, user))
	assert.True(t, till.IsOpen())
	assert.Error(t, till.Open(decimal.Zero, today, user))

	err := till.Close(decimal.NewFromInt(-20), today, user)
	assert.True(t, errors.Is(err, shared.ErrValueOutOfRange))
	assert.True(t, till.IsOpen())
	assert.Nil(t, till.FinalCashAmount)

	require.NoError(t, till.Close(decimal.NewFromInt(80), today, user))
	assert.Equal(t, "80", till.CarriedAmount().String())
	require.NoError(t, till.Verify("ok"))
	assert.Equal(t, TillStatusVerified, till.Status)
}

func TestTillNeedsClosing(t *testing.T) {
	till := NewTill(uuid.New(), uuid.New())
	yesterday := today.AddDate(0, 0, -1)
	require.NoError(t, till.Open(decimal.Zero, yesterday, uuid.New()))

	assert.True(t, till.NeedsClosing(today, 0))
	assert.False(t, till.NeedsClosing(today, 24))
	assert.False(t, till.NeedsClosing(yesterday.Add(2*time.Hour), 0))
}

func TestEntryCountsAsCash(t *testing.T) {
	money, err := NewPaymentMethod(MethodMoney)
	require.NoError(t, err)
	bill := newBillMethod(t)

	in, err := NewPayment(PaymentTypeIn, money, uuid.New(), uuid.New(), decimal.NewFromInt(10), today, today)
	require.NoError(t, err)
	require.NoError(t, in.SetPending())
	out, err := NewPayment(PaymentTypeOut, money, uuid.New(), uuid.New(), decimal.NewFromInt(10), today, today)
	require.NoError(t, err)
	require.NoError(t, out.SetPending())

	assert.True(t, EntryCountsAsCash(nil, nil))
	assert.False(t, EntryCountsAsCash(in, money))
	assert.True(t, EntryCountsAsCash(out, money))
	assert.False(t, EntryCountsAsCash(out, bill))

	require.NoError(t, in.Pay(today, in.Value))
	assert.True(t, EntryCountsAsCash(in, money))
}
