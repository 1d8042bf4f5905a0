package event

import (
	"context"
	"fmt"

	"github.com/erp/retail/internal/domain/shared"
)

// TypedHandler adapts a function over a concrete event payload to
// shared.EventHandler. Events of another Go type are rejected.
type TypedHandler[E shared.DomainEvent] struct {
	eventType string
	fn        func(ctx context.Context, event E) error
}

// Handle implements shared.EventHandler
func (h *TypedHandler[E]) Handle(ctx context.Context, event shared.DomainEvent) error {
	typed, ok := event.(E)
	if !ok {
		return fmt.Errorf("event %s: unexpected payload %T", h.eventType, event)
	}
	return h.fn(ctx, typed)
}

// EventTypes implements shared.EventHandler
func (h *TypedHandler[E]) EventTypes() []string {
	return []string{h.eventType}
}

// On subscribes fn to eventType and returns the handler so it can be
// unsubscribed later.
//
//	event.On(bus, trade.EventTypeSaleCanCancel, func(ctx context.Context, e *trade.SaleCanCancelEvent) error {
//		e.CanCancel = false
//		return nil
//	})
func On[E shared.DomainEvent](bus shared.EventSubscriber, eventType string, fn func(ctx context.Context, event E) error) shared.EventHandler {
	h := &TypedHandler[E]{eventType: eventType, fn: fn}
	bus.Subscribe(h, eventType)
	return h
}
