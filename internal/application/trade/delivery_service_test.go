package trade

import (
	"context"
	"testing"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/erp/retail/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryService_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	p := env.Product(t, "P", "10", "6", false)
	env.Stock(t, p, "5", "6", nil)
	sale := env.sale(t, nil, map[*testutil.Goods]string{p: "1"})

	handler := testutil.NewMockEventHandler(trade.EventTypeDeliveryStatusChanged)
	env.bus.Subscribe(handler, trade.EventTypeDeliveryStatusChanged)

	var delivery *trade.Delivery
	env.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		if delivery, err = env.deliveries.Create(ctx, st, sale, "Rua das Flores 12"); err != nil {
			return err
		}
		for _, target := range []trade.DeliveryStatus{
			trade.DeliveryStatusPicked,
			trade.DeliveryStatusPacked,
			trade.DeliveryStatusSent,
			trade.DeliveryStatusReceived,
		} {
			if err := env.deliveries.SetStatus(ctx, st, env.Ctx, delivery, target); err != nil {
				return err
			}
		}
		return nil
	})

	assert.Equal(t, trade.DeliveryStatusReceived, delivery.Status)
	assert.Equal(t, sale.ID, delivery.SaleID)
	assert.NotNil(t, delivery.PickDate)
	assert.NotNil(t, delivery.SendDate)
	assert.NotNil(t, delivery.ReceiveDate)
	assert.Nil(t, delivery.CancelDate)

	events := handler.HandledOfType(trade.EventTypeDeliveryStatusChanged)
	require.Len(t, events, 4)
	last, ok := events[3].(*trade.DeliveryStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, trade.DeliveryStatusSent, last.OldStatus)
	assert.Equal(t, trade.DeliveryStatusReceived, last.NewStatus)
}

func TestDeliveryService_RejectsSkippedSteps(t *testing.T) {
	env := newTestEnv(t)
	p := env.Product(t, "P", "10", "6", false)
	sale := env.sale(t, nil, map[*testutil.Goods]string{p: "1"})

	var delivery *trade.Delivery
	env.run(t, func(ctx context.Context, st store.Store) error {
		var err error
		delivery, err = env.deliveries.Create(ctx, st, sale, "")
		return err
	})

	err := env.try(func(ctx context.Context, st store.Store) error {
		return env.deliveries.SetStatus(ctx, st, env.Ctx, delivery, trade.DeliveryStatusSent)
	})
	requireCode(t, err, shared.ErrInvalidState)
	assert.Equal(t, trade.DeliveryStatusInitial, delivery.Status)

	env.run(t, func(ctx context.Context, st store.Store) error {
		if err := env.deliveries.SetStatus(ctx, st, env.Ctx, delivery, trade.DeliveryStatusCancelled); err != nil {
			return err
		}
		requireCode(t, env.deliveries.SetStatus(ctx, st, env.Ctx, delivery, trade.DeliveryStatusPicked), shared.ErrInvalidState)
		return nil
	})
	assert.NotNil(t, delivery.CancelDate)
}

func TestDeliveryService_CancelledSale(t *testing.T) {
	env := newTestEnv(t)
	p := env.Product(t, "P", "10", "6", false)
	sale := env.sale(t, nil, map[*testutil.Goods]string{p: "1"})
	env.run(t, func(ctx context.Context, st store.Store) error {
		return env.sales.Cancel(ctx, st, env.Ctx, sale, "changed mind", false)
	})

	err := env.try(func(ctx context.Context, st store.Store) error {
		_, err := env.deliveries.Create(ctx, st, sale, "")
		return err
	})
	requireCode(t, err, shared.ErrInvalidState)
}
