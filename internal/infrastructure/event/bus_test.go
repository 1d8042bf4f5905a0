package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingHandler implements EventHandler for testing
type recordingHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	mu         sync.Mutex
}

func newRecordingHandler(eventTypes ...string) *recordingHandler {
	return &recordingHandler{eventTypes: eventTypes}
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func newSale(t *testing.T) *trade.Sale {
	t.Helper()
	return trade.NewSale(uuid.New(), uuid.New(), time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC))
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	t.Run("delivers to typed and wildcard handlers", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		typed := newRecordingHandler(trade.EventTypeSaleStatusChanged)
		other := newRecordingHandler(trade.EventTypeDeliveryStatusChanged)
		all := newRecordingHandler()
		bus.Subscribe(typed)
		bus.Subscribe(other)
		bus.Subscribe(all)

		sale := newSale(t)
		err := bus.Publish(context.Background(),
			trade.NewSaleStatusChangedEvent(sale, trade.SaleStatusInitial),
			trade.NewSaleIsExternalEvent(sale))

		require.NoError(t, err)
		assert.Equal(t, 1, typed.count())
		assert.Equal(t, 0, other.count())
		assert.Equal(t, 2, all.count())
	})

	t.Run("handler errors propagate after every handler ran", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := newRecordingHandler(trade.EventTypeSaleStatusChanged)
		failing.err = errors.New("handler error")
		next := newRecordingHandler(trade.EventTypeSaleStatusChanged)
		bus.Subscribe(failing)
		bus.Subscribe(next)

		err := bus.Publish(context.Background(), trade.NewSaleStatusChangedEvent(newSale(t), trade.SaleStatusInitial))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "handler error")
		assert.Equal(t, 1, next.count())
	})

	t.Run("panics become errors", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		On(bus, trade.EventTypeSaleIsExternal, func(ctx context.Context, e *trade.SaleIsExternalEvent) error {
			panic("boom")
		})

		err := bus.Publish(context.Background(), trade.NewSaleIsExternalEvent(newSale(t)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panicked")
	})
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newRecordingHandler(trade.EventTypeSaleStatusChanged)
	bus.Subscribe(handler)

	sale := newSale(t)
	require.NoError(t, bus.Publish(context.Background(), trade.NewSaleStatusChangedEvent(sale, trade.SaleStatusInitial)))
	bus.Unsubscribe(handler)
	require.NoError(t, bus.Publish(context.Background(), trade.NewSaleStatusChangedEvent(sale, trade.SaleStatusInitial)))

	assert.Equal(t, 1, handler.count())
}

func TestOn_QueryEventsCarryAnswers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	On(bus, trade.EventTypeSaleCanCancel, func(ctx context.Context, e *trade.SaleCanCancelEvent) error {
		e.CanCancel = false
		return nil
	})

	query := trade.NewSaleCanCancelEvent(newSale(t), true)
	require.NoError(t, bus.Publish(context.Background(), query))
	assert.False(t, query.CanCancel)
}

func TestTypedHandler_RejectsOtherPayloads(t *testing.T) {
	h := &TypedHandler[*trade.SaleCanCancelEvent]{
		eventType: trade.EventTypeSaleCanCancel,
		fn:        func(ctx context.Context, e *trade.SaleCanCancelEvent) error { return nil },
	}
	err := h.Handle(context.Background(), trade.NewSaleIsExternalEvent(newSale(t)))
	assert.Error(t, err)
	assert.Equal(t, []string{trade.EventTypeSaleCanCancel}, h.EventTypes())
}
