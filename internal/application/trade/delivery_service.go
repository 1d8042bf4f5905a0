package trade

import (
	"context"
	"fmt"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/trade"
	"go.uber.org/zap"
)

// DeliveryService tracks the shipping of sales
type DeliveryService struct {
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewDeliveryService creates a new DeliveryService
func NewDeliveryService(logger *zap.Logger) *DeliveryService {
	return &DeliveryService{logger: logger}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *DeliveryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// Create opens a delivery of sale to address
func (s *DeliveryService) Create(ctx context.Context, st store.Store, sale *trade.Sale, address string) (*trade.Delivery, error) {
	if sale.Status == trade.SaleStatusCancelled {
		return nil, shared.InvalidStatef("cannot deliver cancelled sale %d", sale.Identifier)
	}
	delivery := trade.NewDelivery(sale, address)
	if err := st.Deliveries().Save(ctx, delivery); err != nil {
		return nil, fmt.Errorf("save delivery: %w", err)
	}
	return delivery, nil
}

// SetStatus moves the delivery and publishes DeliveryStatusChanged
func (s *DeliveryService) SetStatus(ctx context.Context, st store.Store, c shared.Context, delivery *trade.Delivery, target trade.DeliveryStatus) error {
	if err := delivery.SetStatus(target, c.Now()); err != nil {
		return err
	}
	if err := st.Deliveries().Save(ctx, delivery); err != nil {
		return fmt.Errorf("save delivery: %w", err)
	}
	s.logger.Debug("delivery status changed",
		zap.String("delivery_id", delivery.ID.String()),
		zap.String("status", string(target)),
	)
	return publishPending(ctx, s.publisher, delivery)
}
