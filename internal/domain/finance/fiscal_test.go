package finance

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiscalReversal(t *testing.T) {
	entry := NewProductEntry(uuid.New(), uuid.New(), "5.102", decimal.RequireFromString("5.40"), decimal.Zero, today)

	rev, err := entry.Reverse(decimal.RequireFromString("0.5"), "1.202", today)
	require.NoError(t, err)
	assert.True(t, rev.IsReversal)
	assert.Equal(t, "2.7", rev.IcmsValue.String())

	totals := NetFiscalTotals([]FiscalBookEntry{*entry, *rev})
	assert.Equal(t, "2.7", totals.Icms.String())

	_, err = rev.Reverse(decimal.NewFromInt(1), "", today)
	assert.Error(t, err)
	_, err = entry.Reverse(decimal.NewFromInt(2), "", today)
	assert.Error(t, err)
}

func TestPaymentsAggregates(t *testing.T) {
	m := newBillMethod(t)
	group := NewPaymentGroup(nil, nil)
	mk := func(pt PaymentType, v int64) Payment {
		p, err := NewPayment(pt, m, group.ID, uuid.New(), decimal.NewFromInt(v), today, today)
		require.NoError(t, err)
		require.NoError(t, p.SetPending())
		return *p
	}
	a := mk(PaymentTypeIn, 30)
	require.NoError(t, a.Pay(today, a.Value))
	b := mk(PaymentTypeOut, 10)
	require.NoError(t, b.Pay(today, b.Value))
	c := mk(PaymentTypeIn, 5)
	_, err := c.Cancel(today)
	require.NoError(t, err)

	ps := Payments{a, b, c}
	assert.Len(t, ps.Valid(), 2)
	assert.Equal(t, "20", ps.TotalPaid().String())
	assert.Equal(t, "20", ps.TotalValue().String())
	assert.True(t, ps.AllPaid())
	assert.False(t, Payments{}.AllPaid())

	refund := mk(PaymentTypeOut, 15)
	owed := append(ps, refund)
	assert.False(t, owed.AllPaid())
	assert.True(t, owed.InpaymentsPaid())
	assert.Equal(t, "20", ps.Refundable().String())
	assert.Equal(t, "5", owed.Refundable().String())
}

func TestPaymentGroupOwnership(t *testing.T) {
	g := NewPaymentGroup(nil, nil)
	assert.True(t, g.IsLonely())
	owner := uuid.New()
	require.NoError(t, g.AttachTo(OwnerSale, owner))
	require.NoError(t, g.AttachTo(OwnerSale, owner))
	assert.Error(t, g.AttachTo(OwnerPurchase, uuid.New()))
	assert.True(t, g.IsOwnedBy(OwnerSale))
	g.Detach()
	assert.True(t, g.IsLonely())
}

func TestAccountTransactionReverse(t *testing.T) {
	m := newBillMethod(t)
	p := newTestPayment(t, m, "40", today, today)
	require.NoError(t, p.SetPending())
	require.NoError(t, p.Pay(today, p.Value))

	src, dst := uuid.New(), uuid.New()
	tx, err := NewAccountTransaction(src, dst, p, "")
	require.NoError(t, err)
	rev := tx.Reverse(today)
	assert.Equal(t, dst, rev.SourceAccountID)
	assert.Equal(t, src, rev.DestinationAccountID)
	assert.True(t, rev.Value.Equal(tx.Value))
	assert.True(t, rev.IsReversal())
	assert.Equal(t, tx.ID, *rev.ReversalOfID)

	_, err = NewAccountTransaction(src, src, p, "")
	assert.Error(t, err)
}
