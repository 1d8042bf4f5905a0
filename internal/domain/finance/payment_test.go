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

var today = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newBillMethod(t *testing.T) *PaymentMethod {
	t.Helper()
	m, err := NewPaymentMethod(MethodBill)
	require.NoError(t, err)
	require.NoError(t, m.SetRates(decimal.NewFromInt(1), decimal.NewFromInt(1)))
	return m
}

func newTestPayment(t *testing.T, m *PaymentMethod, value string, open, due time.Time) *Payment {
	t.Helper()
	p, err := NewPayment(PaymentTypeIn, m, uuid.New(), uuid.New(), decimal.RequireFromString(value), open, due)
	require.NoError(t, err)
	return p
}

func TestNewPayment(t *testing.T) {
	m := newBillMethod(t)

	t.Run("starts as preview with base value", func(t *testing.T) {
		p := newTestPayment(t, m, "50", today, today)
		assert.Equal(t, PaymentStatusPreview, p.Status)
		assert.True(t, p.BaseValue.Equal(decimal.NewFromInt(50)))
		assert.False(t, p.IsListed())
	})

	t.Run("rejects negative value", func(t *testing.T) {
		_, err := NewPayment(PaymentTypeIn, m, uuid.New(), uuid.New(), decimal.NewFromInt(-1), today, today)
		assert.True(t, errors.Is(err, shared.ErrValueOutOfRange))
	})

	t.Run("rejects invalid type", func(t *testing.T) {
		_, err := NewPayment("sideways", m, uuid.New(), uuid.New(), decimal.NewFromInt(1), today, today)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestPaymentLifecycle(t *testing.T) {
	m := newBillMethod(t)

	t.Run("preview cannot be paid directly", func(t *testing.T) {
		p := newTestPayment(t, m, "10", today, today)
		err := p.Pay(today, decimal.NewFromInt(10))
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
		assert.Equal(t, PaymentStatusPreview, p.Status)
		assert.Nil(t, p.PaidDate)
	})

	t.Run("pending to paid sets paid data", func(t *testing.T) {
		p := newTestPayment(t, m, "10", today, today)
		require.NoError(t, p.SetPending())
		require.NoError(t, p.Pay(today, decimal.NewFromInt(10)))
		assert.True(t, p.IsPaid())
		require.NotNil(t, p.PaidDate)
		assert.True(t, p.PaidValue.Equal(decimal.NewFromInt(10)))
	})

	t.Run("cancelled is terminal", func(t *testing.T) {
		p := newTestPayment(t, m, "10", today, today)
		require.NoError(t, p.SetPending())
		wasPaid, err := p.Cancel(today)
		require.NoError(t, err)
		assert.False(t, wasPaid)
		require.NotNil(t, p.CancelDate)

		assert.Error(t, p.Pay(today, decimal.NewFromInt(10)))
		assert.Error(t, p.SetPending())
		_, err = p.Cancel(today)
		assert.Error(t, err)
		assert.Equal(t, PaymentStatusCancelled, p.Status)
	})

	t.Run("cancel of paid payment reports it", func(t *testing.T) {
		p := newTestPayment(t, m, "10", today, today)
		require.NoError(t, p.SetPending())
		require.NoError(t, p.Pay(today, decimal.NewFromInt(10)))
		wasPaid, err := p.Cancel(today)
		require.NoError(t, err)
		assert.True(t, wasPaid)
	})

	t.Run("set not paid clears paid data", func(t *testing.T) {
		p := newTestPayment(t, m, "10", today, today)
		require.NoError(t, p.SetPending())
		assert.Error(t, p.SetNotPaid())
		require.NoError(t, p.Pay(today, decimal.NewFromInt(10)))
		require.NoError(t, p.SetNotPaid())
		assert.True(t, p.IsPending())
		assert.Nil(t, p.PaidDate)
		assert.True(t, p.PaidValue.IsZero())
	})

	t.Run("due date is frozen once paid", func(t *testing.T) {
		p := newTestPayment(t, m, "10", today, today)
		require.NoError(t, p.ChangeDueDate(today.AddDate(0, 0, 3)))
		require.NoError(t, p.SetPending())
		require.NoError(t, p.Pay(today, decimal.NewFromInt(10)))
		assert.True(t, errors.Is(p.ChangeDueDate(today), shared.ErrInvalidState))
	})
}

func TestPaymentInterest(t *testing.T) {
	m := newBillMethod(t)

	t.Run("late bill charges penalty and interest", func(t *testing.T) {
		p := newTestPayment(t, m, "100", today.AddDate(0, 0, -10), today.AddDate(0, 0, -5))
		require.NoError(t, p.SetPending())

		penalty, err := p.GetPenalty(m, today, today)
		require.NoError(t, err)
		assert.Equal(t, "1", penalty.String())

		interest, err := p.GetInterest(m, today, today, true)
		require.NoError(t, err)
		assert.Equal(t, "5.05", interest.String())

		noPenalty, err := p.GetInterest(m, today, today, false)
		require.NoError(t, err)
		assert.Equal(t, "5", noPenalty.String())

		payable, err := p.GetPayableValue(m, today)
		require.NoError(t, err)
		assert.Equal(t, "105.05", payable.String())

		p.Interest = interest
		p.Penalty = penalty
		assert.Equal(t, "105.05", p.DefaultPaidValue().String())
	})

	t.Run("on time payment has no interest", func(t *testing.T) {
		p := newTestPayment(t, m, "100", today.AddDate(0, 0, -1), today)
		interest, err := p.GetInterest(m, today, today, true)
		require.NoError(t, err)
		assert.True(t, interest.IsZero())
		penalty, err := p.GetPenalty(m, today, today)
		require.NoError(t, err)
		assert.True(t, penalty.IsZero())
	})

	t.Run("dates outside bounds are rejected", func(t *testing.T) {
		p := newTestPayment(t, m, "100", today.AddDate(0, 0, -3), today.AddDate(0, 0, -5))
		_, err := p.GetPenalty(m, today.AddDate(0, 0, -4), today)
		assert.True(t, errors.Is(err, shared.ErrValueOutOfRange))
		_, err = p.GetInterest(m, today.AddDate(0, 0, 1), today, true)
		assert.True(t, errors.Is(err, shared.ErrValueOutOfRange))
	})

	t.Run("payable value by status", func(t *testing.T) {
		p := newTestPayment(t, m, "100", today.AddDate(0, 0, -10), today.AddDate(0, 0, -5))
		v, err := p.GetPayableValue(m, today)
		require.NoError(t, err)
		assert.Equal(t, "100", v.String())

		require.NoError(t, p.SetPending())
		require.NoError(t, p.Pay(today, decimal.RequireFromString("103")))
		v, err = p.GetPayableValue(m, today)
		require.NoError(t, err)
		assert.Equal(t, "103", v.String())
	})
}

func TestSignedPaidValue(t *testing.T) {
	m := newBillMethod(t)
	p, err := NewPayment(PaymentTypeOut, m, uuid.New(), uuid.New(), decimal.NewFromInt(20), today, today)
	require.NoError(t, err)
	require.NoError(t, p.SetPending())
	require.NoError(t, p.Pay(today, decimal.NewFromInt(20)))
	assert.Equal(t, "-20", p.SignedPaidValue().String())
}
