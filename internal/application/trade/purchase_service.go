package trade

import (
	"context"
	"fmt"

	financeapp "github.com/erp/retail/internal/application/finance"
	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/catalog"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PurchaseService handles purchase order business operations
type PurchaseService struct {
	groups   *financeapp.GroupService
	methods  *financeapp.MethodService
	payments *financeapp.PaymentService
	logger   *zap.Logger
}

// NewPurchaseService creates a new PurchaseService
func NewPurchaseService(groups *financeapp.GroupService, methods *financeapp.MethodService, payments *financeapp.PaymentService, logger *zap.Logger) *PurchaseService {
	return &PurchaseService{groups: groups, methods: methods, payments: payments, logger: logger}
}

// Create opens a purchase with supplierID on the context branch. Quotes start
// in quoting status, every other order in pending.
func (s *PurchaseService) Create(ctx context.Context, st store.Store, c shared.Context, supplierID uuid.UUID, quoting bool) (*trade.PurchaseOrder, error) {
	supplier, err := st.Suppliers().FindByID(ctx, supplierID)
	if err != nil {
		return nil, fmt.Errorf("load supplier: %w", err)
	}
	payer, err := branchPersonID(ctx, st, c.BranchID)
	if err != nil {
		return nil, err
	}
	group, err := s.groups.CreateGroup(ctx, st, payer, &supplier.PersonID)
	if err != nil {
		return nil, err
	}

	order := trade.NewPurchaseOrder(supplierID, c.BranchID, group.ID, c.Now())
	if quoting {
		order.Status = trade.PurchaseStatusQuoting
	}
	if order.Identifier, err = shared.AllocateIdentifier(ctx, st.Identifiers(), c, shared.IdentifierPurchase, c.BranchID); err != nil {
		return nil, fmt.Errorf("allocate purchase identifier: %w", err)
	}
	if err := group.AttachTo(finance.OwnerPurchase, order.ID); err != nil {
		return nil, err
	}
	if err := st.PaymentGroups().Save(ctx, group); err != nil {
		return nil, fmt.Errorf("save payment group: %w", err)
	}
	if err := st.Purchases().Save(ctx, order); err != nil {
		return nil, fmt.Errorf("save purchase: %w", err)
	}
	return order, nil
}

// Items returns the items of order in insertion order
func (s *PurchaseService) Items(ctx context.Context, st store.Store, orderID uuid.UUID) ([]trade.PurchaseItem, error) {
	items, err := st.PurchaseItems().FindAll(ctx, shared.Where("order_id", orderID).OrderedBy("seq", "asc"))
	if err != nil {
		return nil, fmt.Errorf("load purchase items: %w", err)
	}
	return items, nil
}

// AddItem adds quantity of sellable at cost. A package adds a parent item
// costing nothing plus one child per component, priced at the component price.
func (s *PurchaseService) AddItem(ctx context.Context, st store.Store, order *trade.PurchaseOrder, sellableID uuid.UUID, quantity, cost decimal.Decimal) ([]*trade.PurchaseItem, error) {
	if order.Status != trade.PurchaseStatusQuoting && order.Status != trade.PurchaseStatusPending {
		return nil, shared.InvalidStatef("cannot add items to purchase %d in status %s", order.Identifier, order.Status)
	}
	sellable, err := st.Sellables().FindByID(ctx, sellableID)
	if err != nil {
		return nil, fmt.Errorf("load sellable: %w", err)
	}
	if !sellable.CanBePurchased() {
		return nil, shared.InvalidStatef("sellable %s is %s and cannot be purchased", sellable.Code, sellable.Status)
	}
	components, isPackage, err := packageComponents(ctx, st, sellableID)
	if err != nil {
		return nil, err
	}
	seq, err := st.PurchaseItems().Count(ctx, shared.Where("order_id", order.ID))
	if err != nil {
		return nil, fmt.Errorf("count purchase items: %w", err)
	}

	if isPackage {
		cost = decimal.Zero
	}
	parent, err := trade.NewPurchaseItem(order.ID, sellableID, quantity, cost)
	if err != nil {
		return nil, err
	}
	seq++
	parent.Seq = int(seq)
	added := []*trade.PurchaseItem{parent}
	for i := range components {
		child, err := trade.NewPurchaseItem(order.ID, components[i].ComponentID, components[i].ChildQuantity(quantity), components[i].Price)
		if err != nil {
			return nil, err
		}
		seq++
		child.Seq = int(seq)
		child.ParentItemID = &parent.ID
		added = append(added, child)
	}
	for _, item := range added {
		if err := st.PurchaseItems().Save(ctx, item); err != nil {
			return nil, fmt.Errorf("save purchase item: %w", err)
		}
	}
	return added, nil
}

// ValidateComposition checks that every package child item holds
// parent.quantity x component.quantity units
func (s *PurchaseService) ValidateComposition(ctx context.Context, st store.Store, orderID uuid.UUID) error {
	items, err := s.Items(ctx, st, orderID)
	if err != nil {
		return err
	}
	return validateComposition(ctx, st, purchaseLines(items))
}

// SetItemsDiscount reprices the items so the order subtotal drops by
// percentage. It returns the new subtotal.
func (s *PurchaseService) SetItemsDiscount(ctx context.Context, st store.Store, c shared.Context, order *trade.PurchaseOrder, percentage decimal.Decimal) (decimal.Decimal, error) {
	items, err := s.Items(ctx, st, order.ID)
	if err != nil {
		return decimal.Zero, err
	}
	parents := parentIDs(purchaseLines(items))
	lines := make([]trade.DiscountLine, len(items))
	for i := range items {
		item := &items[i]
		lines[i] = trade.DiscountLine{
			Base:      item.BaseCost,
			Quantity:  item.Quantity,
			IsPackage: parents[item.ID],
			Set:       func(price decimal.Decimal) { item.Cost = price },
		}
	}
	total, err := trade.RedistributeDiscount(lines, percentage, pricePlaces(c))
	if err != nil {
		return decimal.Zero, err
	}
	for i := range items {
		if err := st.PurchaseItems().Save(ctx, &items[i]); err != nil {
			return decimal.Zero, fmt.Errorf("save purchase item: %w", err)
		}
	}
	return total, nil
}

// Confirm confirms a pending or consigned order. The payments of a pending
// order become pending.
func (s *PurchaseService) Confirm(ctx context.Context, st store.Store, c shared.Context, order *trade.PurchaseOrder) error {
	wasPending := order.Status == trade.PurchaseStatusPending
	if err := order.Confirm(c.Now(), c.UserID); err != nil {
		return err
	}
	if wasPending {
		if err := s.groups.Confirm(ctx, st, c, order.GroupID); err != nil {
			return err
		}
	}
	if err := st.Purchases().Save(ctx, order); err != nil {
		return fmt.Errorf("save purchase: %w", err)
	}

	total, err := s.GetPurchaseTotal(ctx, st, order)
	if err != nil {
		return err
	}
	supplier := s.supplierName(ctx, st, order)
	if err := financeapp.LogEvent(ctx, st, c, finance.EventTypeOrder, "Order %d, total value %s, supplier '%s' is now confirmed",
		order.Identifier, financeapp.FormatMoney(c, total), supplier); err != nil {
		return err
	}

	s.logger.Info("purchase confirmed",
		zap.String("purchase_id", order.ID.String()),
		zap.Int64("identifier", order.Identifier),
		zap.String("total", total.String()),
	)
	return nil
}

// SetConsigned marks a pending order as consigned
func (s *PurchaseService) SetConsigned(ctx context.Context, st store.Store, order *trade.PurchaseOrder) error {
	if err := order.SetConsigned(); err != nil {
		return err
	}
	return st.Purchases().Save(ctx, order)
}

// ReceiveItem accounts qty units of item as received
func (s *PurchaseService) ReceiveItem(ctx context.Context, st store.Store, item *trade.PurchaseItem, qty decimal.Decimal) error {
	if err := item.Receive(qty); err != nil {
		return err
	}
	if err := st.PurchaseItems().Save(ctx, item); err != nil {
		return fmt.Errorf("save purchase item: %w", err)
	}
	return nil
}

// IncreaseQuantityReceived receives qty units of sellable, filling the items
// of that sellable in order
func (s *PurchaseService) IncreaseQuantityReceived(ctx context.Context, st store.Store, order *trade.PurchaseOrder, sellableID uuid.UUID, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.OutOfRangef("received quantity must be positive: %s", qty)
	}
	items, err := s.Items(ctx, st, order.ID)
	if err != nil {
		return err
	}
	remaining := qty
	for i := range items {
		item := &items[i]
		if item.SellableID != sellableID || !item.PendingQuantity().IsPositive() {
			continue
		}
		part := decimal.Min(remaining, item.PendingQuantity())
		if err := s.ReceiveItem(ctx, st, item, part); err != nil {
			return err
		}
		remaining = remaining.Sub(part)
		if remaining.IsZero() {
			return nil
		}
	}
	return shared.OutOfRangef("purchase %d has no pending quantity left for %s more units", order.Identifier, remaining)
}

// Cancel cancels the order. Money already paid comes back through a paid
// money payment and the payments not yet paid are cancelled; paid payments
// stay paid.
func (s *PurchaseService) Cancel(ctx context.Context, st store.Store, c shared.Context, order *trade.PurchaseOrder, reason string) error {
	items, err := s.Items(ctx, st, order.ID)
	if err != nil {
		return err
	}
	if err := order.Cancel(items, c.Now()); err != nil {
		return err
	}

	paid, err := s.groups.GetTotalPaid(ctx, st, order.GroupID)
	if err != nil {
		return err
	}
	// paid is negative once the supplier got money, so the payback is an
	// inpayment: the supplier returns the money to the branch. It is an
	// outpayment only when the group holds a net inflow.
	if !paid.IsZero() {
		if _, err := s.payback(ctx, st, c, order, paid); err != nil {
			return err
		}
	}
	if err := s.groups.Cancel(ctx, st, c, order.GroupID, reason); err != nil {
		return err
	}
	if err := st.Purchases().Save(ctx, order); err != nil {
		return fmt.Errorf("save purchase: %w", err)
	}
	if err := financeapp.LogEvent(ctx, st, c, finance.EventTypeOrder, "Order %d, supplier '%s' was cancelled",
		order.Identifier, s.supplierName(ctx, st, order)); err != nil {
		return err
	}

	s.logger.Info("purchase cancelled",
		zap.String("purchase_id", order.ID.String()),
		zap.String("paid_back", paid.Abs().String()),
	)
	return nil
}

// payback returns paid, the signed total paid of the group, through a money
// payment flowing the other way
func (s *PurchaseService) payback(ctx context.Context, st store.Store, c shared.Context, order *trade.PurchaseOrder, paid decimal.Decimal) (*finance.Payment, error) {
	money, err := financeapp.FindMethod(ctx, st, finance.MethodMoney)
	if err != nil {
		return nil, err
	}
	paymentType := finance.PaymentTypeIn
	if paid.IsPositive() {
		paymentType = finance.PaymentTypeOut
	}
	p, err := s.methods.CreatePayment(ctx, st, c, money, financeapp.PaymentRequest{
		Type:        paymentType,
		GroupID:     order.GroupID,
		BranchID:    order.BranchID,
		Value:       paid.Abs(),
		Description: fmt.Sprintf("Money returned for purchase %d", order.Identifier),
	})
	if err != nil {
		return nil, err
	}
	if err := s.payments.SetPending(ctx, st, c, p); err != nil {
		return nil, err
	}
	if err := s.payments.Pay(ctx, st, c, p, financeapp.PayOptions{}); err != nil {
		return nil, err
	}
	return p, nil
}

// Close closes a confirmed and fully received order
func (s *PurchaseService) Close(ctx context.Context, st store.Store, c shared.Context, order *trade.PurchaseOrder) error {
	items, err := s.Items(ctx, st, order.ID)
	if err != nil {
		return err
	}
	if err := order.Close(items, c.Now()); err != nil {
		return err
	}
	if err := st.Purchases().Save(ctx, order); err != nil {
		return fmt.Errorf("save purchase: %w", err)
	}
	if err := financeapp.LogEvent(ctx, st, c, finance.EventTypeOrder, "Order %d, total value %s, supplier '%s' is now closed",
		order.Identifier, financeapp.FormatMoney(c, order.Total(items)), s.supplierName(ctx, st, order)); err != nil {
		return err
	}
	s.logger.Info("purchase closed", zap.String("purchase_id", order.ID.String()))
	return nil
}

// GetPurchaseSubtotal sums the cost of every item
func (s *PurchaseService) GetPurchaseSubtotal(ctx context.Context, st store.Store, order *trade.PurchaseOrder) (decimal.Decimal, error) {
	items, err := s.Items(ctx, st, order.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return order.Subtotal(items), nil
}

// GetPurchaseTotal is the subtotal plus surcharge minus discount
func (s *PurchaseService) GetPurchaseTotal(ctx context.Context, st store.Store, order *trade.PurchaseOrder) (decimal.Decimal, error) {
	items, err := s.Items(ctx, st, order.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return order.Total(items), nil
}

// GetReceivedTotal sums the cost of the received quantities
func (s *PurchaseService) GetReceivedTotal(ctx context.Context, st store.Store, order *trade.PurchaseOrder) (decimal.Decimal, error) {
	items, err := s.Items(ctx, st, order.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return order.ReceivedTotal(items), nil
}

// IsPaid reports whether every valid payment of the order is paid
func (s *PurchaseService) IsPaid(ctx context.Context, st store.Store, order *trade.PurchaseOrder) (bool, error) {
	payments, err := s.groups.GetPayments(ctx, st, order.GroupID)
	if err != nil {
		return false, err
	}
	return payments.AllPaid(), nil
}

// GetPendingItems returns the items still waiting to be received
func (s *PurchaseService) GetPendingItems(ctx context.Context, st store.Store, order *trade.PurchaseOrder) ([]trade.PurchaseItem, error) {
	items, err := s.Items(ctx, st, order.ID)
	if err != nil {
		return nil, err
	}
	pending := make([]trade.PurchaseItem, 0, len(items))
	for _, item := range items {
		if !item.IsFullyReceived() {
			pending = append(pending, item)
		}
	}
	return pending, nil
}

// CanCancel reports whether Cancel would be accepted
func (s *PurchaseService) CanCancel(ctx context.Context, st store.Store, order *trade.PurchaseOrder) (bool, error) {
	items, err := s.Items(ctx, st, order.ID)
	if err != nil {
		return false, err
	}
	return order.CanCancel(items), nil
}

// CanClose reports whether Close would be accepted
func (s *PurchaseService) CanClose(ctx context.Context, st store.Store, order *trade.PurchaseOrder) (bool, error) {
	items, err := s.Items(ctx, st, order.ID)
	if err != nil {
		return false, err
	}
	return order.CanClose(items), nil
}

func (s *PurchaseService) supplierName(ctx context.Context, st store.Store, order *trade.PurchaseOrder) string {
	supplier, err := st.Suppliers().FindByID(ctx, order.SupplierID)
	if err != nil {
		return ""
	}
	return personName(ctx, st, supplier.PersonID)
}

// compositionLine is the part of a purchase or sale item package checks need
type compositionLine struct {
	ID         uuid.UUID
	SellableID uuid.UUID
	ParentID   *uuid.UUID
	Quantity   decimal.Decimal
}

func purchaseLines(items []trade.PurchaseItem) []compositionLine {
	lines := make([]compositionLine, len(items))
	for i, item := range items {
		lines[i] = compositionLine{ID: item.ID, SellableID: item.SellableID, ParentID: item.ParentItemID, Quantity: item.Quantity}
	}
	return lines
}

func parentIDs(lines []compositionLine) map[uuid.UUID]bool {
	parents := make(map[uuid.UUID]bool)
	for _, l := range lines {
		if l.ParentID != nil {
			parents[*l.ParentID] = true
		}
	}
	return parents
}

func validateComposition(ctx context.Context, st store.Store, lines []compositionLine) error {
	byID := make(map[uuid.UUID]compositionLine, len(lines))
	for _, l := range lines {
		byID[l.ID] = l
	}
	components := make(map[uuid.UUID]map[uuid.UUID]catalog.ProductComponent)
	for _, l := range lines {
		if l.ParentID == nil {
			continue
		}
		parent, ok := byID[*l.ParentID]
		if !ok {
			return shared.Inconsistencyf("item %s points to a missing parent item", l.ID)
		}
		comps, ok := components[parent.SellableID]
		if !ok {
			found, _, err := packageComponents(ctx, st, parent.SellableID)
			if err != nil {
				return err
			}
			comps = make(map[uuid.UUID]catalog.ProductComponent, len(found))
			for _, comp := range found {
				comps[comp.ComponentID] = comp
			}
			components[parent.SellableID] = comps
		}
		comp, ok := comps[l.SellableID]
		if !ok {
			return shared.Inconsistencyf("item %s is not a component of its package", l.ID)
		}
		if want := comp.ChildQuantity(parent.Quantity); !l.Quantity.Equal(want) {
			return shared.Inconsistencyf("package child %s holds %s units where %s are expected", l.ID, l.Quantity, want)
		}
	}
	return nil
}
