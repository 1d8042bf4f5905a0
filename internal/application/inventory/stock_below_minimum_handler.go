package inventory

import (
	"context"
	"fmt"

	"github.com/erp/retail/internal/domain/inventory"
	"github.com/erp/retail/internal/domain/shared"
	"go.uber.org/zap"
)

// StockAlert is a low stock notification
type StockAlert struct {
	BranchID        string `json:"branch_id"`
	StorableID      string `json:"storable_id"`
	StockItemID     string `json:"stock_item_id"`
	CurrentQuantity string `json:"current_quantity"`
	MinimumQuantity string `json:"minimum_quantity"`
	AlertType       string `json:"alert_type"` // "low_stock", "out_of_stock"
}

// StockAlertNotifier delivers stock alerts (log, mail, purchase suggestion...)
type StockAlertNotifier interface {
	SendAlert(ctx context.Context, alert StockAlert) error
}

// StockBelowMinimumHandler turns StockBelowMinimum events into alerts
type StockBelowMinimumHandler struct {
	logger   *zap.Logger
	notifier StockAlertNotifier
}

// NewStockBelowMinimumHandler creates the handler
func NewStockBelowMinimumHandler(logger *zap.Logger) *StockBelowMinimumHandler {
	return &StockBelowMinimumHandler{logger: logger}
}

// WithNotifier sets the notifier alerts are sent to
func (h *StockBelowMinimumHandler) WithNotifier(notifier StockAlertNotifier) *StockBelowMinimumHandler {
	h.notifier = notifier
	return h
}

// EventTypes implements shared.EventHandler
func (h *StockBelowMinimumHandler) EventTypes() []string {
	return []string{inventory.EventTypeStockBelowMinimum}
}

// Handle implements shared.EventHandler. Notifier failures are logged and
// never abort the stock movement.
func (h *StockBelowMinimumHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*inventory.StockBelowMinimumEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inventory.EventTypeStockBelowMinimum, event.EventType())
	}

	alertType := "low_stock"
	if e.IsOutOfStock() {
		alertType = "out_of_stock"
	}
	alert := StockAlert{
		BranchID:        e.BranchID().String(),
		StorableID:      e.StorableID.String(),
		StockItemID:     e.StockItemID.String(),
		CurrentQuantity: e.CurrentQuantity.String(),
		MinimumQuantity: e.MinimumQuantity.String(),
		AlertType:       alertType,
	}

	h.logger.Warn("stock below minimum",
		zap.String("branch_id", alert.BranchID),
		zap.String("storable_id", alert.StorableID),
		zap.String("current_quantity", alert.CurrentQuantity),
		zap.String("minimum_quantity", alert.MinimumQuantity),
	)

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.SendAlert(ctx, alert); err != nil {
		h.logger.Error("failed to send stock alert", zap.String("storable_id", alert.StorableID), zap.Error(err))
	}
	return nil
}

var _ shared.EventHandler = (*StockBelowMinimumHandler)(nil)

// LoggingStockAlertNotifier writes alerts to the log
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a LoggingStockAlertNotifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	return &LoggingStockAlertNotifier{logger: logger}
}

// SendAlert logs the alert
func (n *LoggingStockAlertNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("storable_id", alert.StorableID),
		zap.String("branch_id", alert.BranchID),
		zap.String("current_qty", alert.CurrentQuantity),
		zap.String("minimum_qty", alert.MinimumQuantity),
	)
	return nil
}
