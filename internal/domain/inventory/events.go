package inventory

import (
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// AggregateTypeStockItem is the aggregate type of stock balance events
	AggregateTypeStockItem = "ProductStockItem"

	// EventTypeStockBelowMinimum is published when a decrease leaves a balance
	// under the storable minimum quantity
	EventTypeStockBelowMinimum = "StockBelowMinimum"
)

// StockBelowMinimumEvent reports a balance under its storable minimum
type StockBelowMinimumEvent struct {
	shared.BaseDomainEvent
	StockItemID     uuid.UUID       `json:"stock_item_id"`
	StorableID      uuid.UUID       `json:"storable_id"`
	BatchID         *uuid.UUID      `json:"batch_id,omitempty"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	MinimumQuantity decimal.Decimal `json:"minimum_quantity"`
}

// NewStockBelowMinimumEvent creates the event for item
func NewStockBelowMinimumEvent(item *ProductStockItem, minimum decimal.Decimal) *StockBelowMinimumEvent {
	return &StockBelowMinimumEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockBelowMinimum, AggregateTypeStockItem, item.ID, item.BranchID),
		StockItemID:     item.ID,
		StorableID:      item.StorableID,
		BatchID:         item.BatchID,
		CurrentQuantity: item.Quantity,
		MinimumQuantity: minimum,
	}
}

// IsOutOfStock reports a zero or negative balance
func (e *StockBelowMinimumEvent) IsOutOfStock() bool {
	return !e.CurrentQuantity.IsPositive()
}
