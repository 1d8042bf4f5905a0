package trade

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoan_Lifecycle(t *testing.T) {
	loan := NewLoan(uuid.New(), uuid.New(), nil, now)
	require.NoError(t, loan.Close(now))
	assert.Equal(t, LoanStatusClosed, loan.Status)
	assert.Error(t, loan.Cancel(now))
}

func TestLoanItem_ApplySplit(t *testing.T) {
	item, err := NewLoanItem(uuid.New(), uuid.New(), decimal.NewFromInt(5), decimal.NewFromInt(10))
	require.NoError(t, err)

	err = item.ApplySplit(LoanSplit{Returned: decimal.NewFromInt(2), Sold: decimal.NewFromInt(2), Lost: decimal.Zero})
	assert.Error(t, err)
	err = item.ApplySplit(LoanSplit{Returned: decimal.NewFromInt(-1), Sold: decimal.NewFromInt(6), Lost: decimal.Zero})
	assert.Error(t, err)

	require.NoError(t, item.ApplySplit(LoanSplit{Returned: decimal.NewFromInt(2), Sold: decimal.NewFromInt(2), Lost: decimal.NewFromInt(1)}))
	assert.Equal(t, "2", item.SaleQuantity.String())
}

func TestDelivery_SetStatus(t *testing.T) {
	sale := NewSale(uuid.New(), uuid.New(), now)
	d := NewDelivery(sale, "Main street 1")

	assert.Error(t, d.SetStatus(DeliveryStatusSent, now))
	require.NoError(t, d.SetStatus(DeliveryStatusPicked, now))
	require.NoError(t, d.SetStatus(DeliveryStatusPacked, now))
	require.NoError(t, d.SetStatus(DeliveryStatusSent, now))
	require.NoError(t, d.SetStatus(DeliveryStatusReceived, now))
	assert.NotNil(t, d.ReceiveDate)
	assert.Error(t, d.SetStatus(DeliveryStatusCancelled, now))

	events := d.GetDomainEvents()
	require.Len(t, events, 4)
	last := events[3].(*DeliveryStatusChangedEvent)
	assert.Equal(t, DeliveryStatusSent, last.OldStatus)
	assert.Equal(t, DeliveryStatusReceived, last.NewStatus)
}

func TestSaleToken(t *testing.T) {
	token := NewSaleToken("T1", "Table 1")
	sale := uuid.New()
	require.NoError(t, token.Occupy(sale))
	assert.Error(t, token.Occupy(uuid.New()))
	token.Release()
	assert.Equal(t, SaleTokenAvailable, token.Status)
	assert.Nil(t, token.SaleID)
}

func TestReturnedSale(t *testing.T) {
	sale := NewSale(uuid.New(), uuid.New(), now)
	_, err := NewReturnedSale(sale, uuid.New(), now, false)
	assert.Error(t, err)

	require.NoError(t, sale.Order(1, true))
	require.NoError(t, sale.Confirm(now, uuid.New()))
	item := createTestSaleItem(t, sale, "3", "10")

	returned, err := NewReturnedSale(sale, uuid.New(), now, true)
	require.NoError(t, err)
	assert.True(t, returned.IsPending())

	ri := NewReturnedSaleItem(returned, item)
	assert.Error(t, ri.SetQuantity(decimal.NewFromInt(4)))
	require.NoError(t, ri.SetQuantity(decimal.NewFromInt(2)))
	assert.Equal(t, "20", returned.Total([]ReturnedSaleItem{*ri}).String())

	assert.Error(t, returned.Undo("oops", now))
	require.NoError(t, returned.Confirm(now, uuid.New()))
	require.NoError(t, returned.Undo("oops", now))
	assert.Equal(t, ReturnedSaleStatusCancelled, returned.Status)
}
