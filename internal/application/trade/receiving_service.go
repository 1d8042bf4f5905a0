package trade

import (
	"context"
	"fmt"

	financeapp "github.com/erp/retail/internal/application/finance"
	inventoryapp "github.com/erp/retail/internal/application/inventory"
	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/inventory"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReceivingService brings purchased goods into stock
type ReceivingService struct {
	purchases *PurchaseService
	ledger    *inventoryapp.StockLedger
	logger    *zap.Logger
}

// NewReceivingService creates a new ReceivingService
func NewReceivingService(purchases *PurchaseService, ledger *inventoryapp.StockLedger, logger *zap.Logger) *ReceivingService {
	return &ReceivingService{purchases: purchases, ledger: ledger, logger: logger}
}

// ReceivingItemRequest describes a standalone received line
type ReceivingItemRequest struct {
	SellableID     uuid.UUID
	Quantity       decimal.Decimal
	Cost           decimal.Decimal
	BatchID        *uuid.UUID
	PurchaseItemID *uuid.UUID
	IcmsValue      decimal.Decimal
	IpiValue       decimal.Decimal
}

// CreateFromPurchases creates a pending receiving of everything the orders
// still wait for. Orders must be confirmed or consigned and share the
// supplier; their freight, surcharge and discount go into the invoice.
func (s *ReceivingService) CreateFromPurchases(ctx context.Context, st store.Store, c shared.Context, orders []*trade.PurchaseOrder, invoiceNumber int64) (*trade.ReceivingOrder, error) {
	if len(orders) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "a receiving needs at least one purchase")
	}
	first := orders[0]
	invoice := trade.NewReceivingInvoice(first.SupplierID, first.BranchID, invoiceNumber)
	invoice.GroupID = &first.GroupID
	invoice.TransporterID = first.TransporterID
	invoice.FreightType = first.FreightType
	for _, order := range orders {
		if order.Status != trade.PurchaseStatusConfirmed && order.Status != trade.PurchaseStatusConsigned {
			return nil, shared.InvalidStatef("cannot receive purchase %d in status %s", order.Identifier, order.Status)
		}
		if order.SupplierID != first.SupplierID {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "purchases received together must share the supplier")
		}
		invoice.FreightTotal = invoice.FreightTotal.Add(order.ExpectedFreight)
		invoice.SurchargeValue = invoice.SurchargeValue.Add(order.SurchargeValue)
		invoice.DiscountValue = invoice.DiscountValue.Add(order.DiscountValue)
	}
	if err := st.ReceivingInvoices().Save(ctx, invoice); err != nil {
		return nil, fmt.Errorf("save receiving invoice: %w", err)
	}

	recv := trade.NewReceivingOrder(first.BranchID, c.UserID, c.Now())
	recv.InvoiceID = &invoice.ID
	var err error
	if recv.Identifier, err = shared.AllocateIdentifier(ctx, st.Identifiers(), c, shared.IdentifierReceiving, recv.BranchID); err != nil {
		return nil, fmt.Errorf("allocate receiving identifier: %w", err)
	}
	if err := st.Receivings().Save(ctx, recv); err != nil {
		return nil, fmt.Errorf("save receiving: %w", err)
	}

	for _, order := range orders {
		if err := st.PurchaseReceivings().Save(ctx, trade.NewPurchaseReceivingMap(order.ID, recv.ID)); err != nil {
			return nil, fmt.Errorf("link purchase to receiving: %w", err)
		}
		items, err := s.purchases.Items(ctx, st, order.ID)
		if err != nil {
			return nil, err
		}
		created := make(map[uuid.UUID]uuid.UUID, len(items))
		for _, item := range items {
			pending := item.PendingQuantity()
			if !pending.IsPositive() {
				continue
			}
			purchaseItemID := item.ID
			ri, err := s.AddItem(ctx, st, recv, ReceivingItemRequest{
				SellableID:     item.SellableID,
				Quantity:       pending,
				Cost:           item.Cost,
				PurchaseItemID: &purchaseItemID,
			})
			if err != nil {
				return nil, err
			}
			created[item.ID] = ri.ID
			if item.ParentItemID != nil {
				if parent, ok := created[*item.ParentItemID]; ok {
					ri.ParentItemID = &parent
					if err := st.ReceivingItems().Save(ctx, ri); err != nil {
						return nil, fmt.Errorf("save receiving item: %w", err)
					}
				}
			}
		}
	}
	return recv, nil
}

// AddItem adds a line to a pending receiving
func (s *ReceivingService) AddItem(ctx context.Context, st store.Store, recv *trade.ReceivingOrder, req ReceivingItemRequest) (*trade.ReceivingOrderItem, error) {
	if recv.Status != trade.ReceivingStatusPending {
		return nil, shared.InvalidStatef("cannot add items to receiving %d in status %s", recv.Identifier, recv.Status)
	}
	item, err := trade.NewReceivingOrderItem(recv.ID, req.SellableID, req.Quantity, req.Cost)
	if err != nil {
		return nil, err
	}
	item.BatchID = req.BatchID
	item.PurchaseItemID = req.PurchaseItemID
	item.IcmsValue = req.IcmsValue
	item.IpiValue = req.IpiValue
	if err := st.ReceivingItems().Save(ctx, item); err != nil {
		return nil, fmt.Errorf("save receiving item: %w", err)
	}
	return item, nil
}

// Confirm receives every line: linked purchase items get their received
// quantity raised and stocked sellables enter stock as received
func (s *ReceivingService) Confirm(ctx context.Context, st store.Store, c shared.Context, recv *trade.ReceivingOrder) error {
	if err := recv.Confirm(c.Now()); err != nil {
		return err
	}
	items, err := st.ReceivingItems().FindAll(ctx, shared.Where("receiving_order_id", recv.ID))
	if err != nil {
		return fmt.Errorf("load receiving items: %w", err)
	}

	total := decimal.Zero
	icms := decimal.Zero
	ipi := decimal.Zero
	for i := range items {
		item := &items[i]
		if item.PurchaseItemID != nil {
			pi, err := st.PurchaseItems().FindByID(ctx, *item.PurchaseItemID)
			if err != nil {
				return fmt.Errorf("load purchase item: %w", err)
			}
			if err := s.purchases.ReceiveItem(ctx, st, pi, item.Quantity); err != nil {
				return err
			}
		}
		storable, err := storableOf(ctx, st, item.SellableID)
		if err != nil {
			return err
		}
		if storable != nil {
			cost := item.Cost
			if _, err := s.ledger.IncreaseStock(ctx, st, c, inventoryapp.Movement{
				StorableID: storable.ID,
				BranchID:   recv.BranchID,
				BatchID:    item.BatchID,
				Quantity:   item.Quantity,
				Type:       inventory.HistoryTypeReceived,
				ObjectID:   item.ID,
				UnitCost:   &cost,
			}); err != nil {
				return err
			}
		}
		total = total.Add(item.Total())
		icms = icms.Add(item.IcmsValue)
		ipi = ipi.Add(item.IpiValue)
	}

	if recv.InvoiceID != nil {
		invoice, err := st.ReceivingInvoices().FindByID(ctx, *recv.InvoiceID)
		if err != nil {
			return fmt.Errorf("load receiving invoice: %w", err)
		}
		invoice.IcmsTotal = icms
		invoice.IpiTotal = ipi
		invoice.InvoiceTotal = total.Add(invoice.FreightTotal).Add(invoice.SurchargeValue).
			Sub(invoice.DiscountValue).Add(ipi).RoundBank(2)
		if err := st.ReceivingInvoices().Save(ctx, invoice); err != nil {
			return fmt.Errorf("save receiving invoice: %w", err)
		}
	}
	if err := s.markPurchasesReceived(ctx, st, c, recv); err != nil {
		return err
	}
	if err := st.Receivings().Save(ctx, recv); err != nil {
		return fmt.Errorf("save receiving: %w", err)
	}

	s.logger.Info("receiving confirmed",
		zap.String("receiving_id", recv.ID.String()),
		zap.Int("items", len(items)),
		zap.String("total", total.String()),
	)
	return nil
}

func (s *ReceivingService) markPurchasesReceived(ctx context.Context, st store.Store, c shared.Context, recv *trade.ReceivingOrder) error {
	links, err := st.PurchaseReceivings().FindAll(ctx, shared.Where("receiving_id", recv.ID))
	if err != nil {
		return fmt.Errorf("load purchase links: %w", err)
	}
	for _, link := range links {
		order, err := st.Purchases().FindByID(ctx, link.PurchaseID)
		if err != nil {
			return fmt.Errorf("load purchase: %w", err)
		}
		now := c.Now()
		order.ReceivalDate = &now
		if err := st.Purchases().Save(ctx, order); err != nil {
			return fmt.Errorf("save purchase: %w", err)
		}
	}
	return nil
}

// SellConsigned accounts qty received consigned units of item as sold
func (s *ReceivingService) SellConsigned(ctx context.Context, st store.Store, order *trade.PurchaseOrder, item *trade.PurchaseItem, qty decimal.Decimal) error {
	if !order.IsConsignment() {
		return shared.InvalidStatef("purchase %d is not a consignment", order.Identifier)
	}
	if err := item.MarkSold(qty); err != nil {
		return err
	}
	return st.PurchaseItems().Save(ctx, item)
}

// ReturnConsigned gives qty consigned units of item back to the supplier,
// taking them out of stock
func (s *ReceivingService) ReturnConsigned(ctx context.Context, st store.Store, c shared.Context, order *trade.PurchaseOrder, item *trade.PurchaseItem, qty decimal.Decimal) error {
	if !order.IsConsignment() {
		return shared.InvalidStatef("purchase %d is not a consignment", order.Identifier)
	}
	returnedBefore := item.QuantityReturned
	if err := item.MarkReturned(qty); err != nil {
		return err
	}
	storable, err := storableOf(ctx, st, item.SellableID)
	if err != nil {
		return err
	}
	if storable != nil {
		shares, err := s.receivedBatches(ctx, st, item)
		if err != nil {
			return err
		}
		for _, share := range takeShares(shares, returnedBefore, qty) {
			if _, err := s.ledger.DecreaseStock(ctx, st, c, inventoryapp.Movement{
				StorableID: storable.ID,
				BranchID:   order.BranchID,
				BatchID:    share.batchID,
				Quantity:   share.quantity,
				Type:       inventory.HistoryTypeConsignmentReturned,
				ObjectID:   item.ID,
			}); err != nil {
				return err
			}
		}
	}
	return st.PurchaseItems().Save(ctx, item)
}

// batchShare is a quantity received in one batch, nil for unbatched stock
type batchShare struct {
	batchID  *uuid.UUID
	quantity decimal.Decimal
}

// receivedBatches lists what confirmed receivings brought in for item, in
// receiving order
func (s *ReceivingService) receivedBatches(ctx context.Context, st store.Store, item *trade.PurchaseItem) ([]batchShare, error) {
	rows, err := st.ReceivingItems().FindAll(ctx, shared.Where("purchase_item_id", item.ID).OrderedBy("te_created", "asc"))
	if err != nil {
		return nil, fmt.Errorf("load receiving items: %w", err)
	}
	shares := make([]batchShare, 0, len(rows))
	for _, row := range rows {
		recv, err := st.Receivings().FindByID(ctx, row.ReceivingOrderID)
		if err != nil {
			return nil, fmt.Errorf("load receiving: %w", err)
		}
		if recv.Status != trade.ReceivingStatusClosed {
			continue
		}
		shares = append(shares, batchShare{batchID: row.BatchID, quantity: row.Quantity})
	}
	return shares, nil
}

// takeShares splits qty over shares after skipping the first skip units,
// which earlier returns already took back
func takeShares(shares []batchShare, skip, qty decimal.Decimal) []batchShare {
	var out []batchShare
	for _, share := range shares {
		if !qty.IsPositive() {
			break
		}
		available := share.quantity
		if skip.IsPositive() {
			used := decimal.Min(skip, available)
			skip = skip.Sub(used)
			available = available.Sub(used)
		}
		if !available.IsPositive() {
			continue
		}
		take := decimal.Min(available, qty)
		out = append(out, batchShare{batchID: share.batchID, quantity: take})
		qty = qty.Sub(take)
	}
	if qty.IsPositive() {
		out = append(out, batchShare{quantity: qty})
	}
	return out
}

// CloseConsignment settles a consignment once every received unit is either
// sold or returned: the supplier gets a money payment for the sold units and
// the order is confirmed and closed.
func (s *ReceivingService) CloseConsignment(ctx context.Context, st store.Store, c shared.Context, order *trade.PurchaseOrder) (*finance.Payment, error) {
	if !order.IsConsignment() {
		return nil, shared.InvalidStatef("purchase %d is not a consignment", order.Identifier)
	}
	items, err := s.purchases.Items(ctx, st, order.ID)
	if err != nil {
		return nil, err
	}
	sold := decimal.Zero
	for _, item := range items {
		if item.ConsignedPending().IsPositive() {
			return nil, shared.InvalidStatef("purchase %d still has %s consigned units neither sold nor returned",
				order.Identifier, item.ConsignedPending())
		}
		sold = sold.Add(item.QuantitySold.Mul(item.Cost))
	}

	if order.Status == trade.PurchaseStatusConsigned {
		if err := s.purchases.Confirm(ctx, st, c, order); err != nil {
			return nil, err
		}
	}

	var payment *finance.Payment
	if sold = sold.RoundBank(pricePlaces(c)); sold.IsPositive() {
		money, err := financeapp.FindMethod(ctx, st, finance.MethodMoney)
		if err != nil {
			return nil, err
		}
		payment, err = s.purchases.methods.CreatePayment(ctx, st, c, money, financeapp.PaymentRequest{
			Type:        finance.PaymentTypeOut,
			GroupID:     order.GroupID,
			BranchID:    order.BranchID,
			Value:       sold,
			Description: fmt.Sprintf("Consignment settlement of purchase %d", order.Identifier),
		})
		if err != nil {
			return nil, err
		}
		if err := s.purchases.payments.SetPending(ctx, st, c, payment); err != nil {
			return nil, err
		}
	}
	if err := s.purchases.Close(ctx, st, c, order); err != nil {
		return nil, err
	}
	return payment, nil
}
