package persistence

import (
	"context"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/catalog"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/inventory"
	"github.com/erp/retail/internal/domain/partner"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/trade"
	"gorm.io/gorm"
)

// GormScope implements store.Scope using GORM transactions.
type GormScope struct {
	db *gorm.DB
}

// NewGormScope creates a new GormScope.
func NewGormScope(db *gorm.DB) *GormScope {
	return &GormScope{db: db}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormScope) Execute(ctx context.Context, fn func(st store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}

// GormStore provides every repository bound to one transaction
type GormStore struct {
	tx *gorm.DB
}

// NewGormStore creates a store over tx
func NewGormStore(tx *gorm.DB) *GormStore {
	return &GormStore{tx: tx}
}

func repo[T any](s *GormStore) shared.Repository[T] {
	return NewGormRepository[T](s.tx)
}

func (s *GormStore) Persons() shared.Repository[partner.Person] { return repo[partner.Person](s) }
func (s *GormStore) Individuals() shared.Repository[partner.Individual] {
	return repo[partner.Individual](s)
}
func (s *GormStore) Companies() shared.Repository[partner.Company]  { return repo[partner.Company](s) }
func (s *GormStore) Clients() shared.Repository[partner.Client]     { return repo[partner.Client](s) }
func (s *GormStore) Suppliers() shared.Repository[partner.Supplier] { return repo[partner.Supplier](s) }
func (s *GormStore) Employees() shared.Repository[partner.Employee] { return repo[partner.Employee](s) }
func (s *GormStore) LoginUsers() shared.Repository[partner.LoginUser] {
	return repo[partner.LoginUser](s)
}
func (s *GormStore) Branches() shared.Repository[partner.Branch] { return repo[partner.Branch](s) }
func (s *GormStore) SalesPersons() shared.Repository[partner.SalesPerson] {
	return repo[partner.SalesPerson](s)
}
func (s *GormStore) Transporters() shared.Repository[partner.Transporter] {
	return repo[partner.Transporter](s)
}
func (s *GormStore) CreditProviders() shared.Repository[partner.CreditProvider] {
	return repo[partner.CreditProvider](s)
}

func (s *GormStore) Sellables() shared.Repository[catalog.Sellable] { return repo[catalog.Sellable](s) }
func (s *GormStore) Products() shared.Repository[catalog.Product]   { return repo[catalog.Product](s) }
func (s *GormStore) Services() shared.Repository[catalog.Service]   { return repo[catalog.Service](s) }
func (s *GormStore) Storables() shared.Repository[catalog.Storable] { return repo[catalog.Storable](s) }
func (s *GormStore) Batches() shared.Repository[catalog.StorableBatch] {
	return repo[catalog.StorableBatch](s)
}
func (s *GormStore) Components() shared.Repository[catalog.ProductComponent] {
	return repo[catalog.ProductComponent](s)
}
func (s *GormStore) Categories() shared.Repository[catalog.SellableCategory] {
	return repo[catalog.SellableCategory](s)
}
func (s *GormStore) CommissionSources() shared.Repository[catalog.CommissionSource] {
	return repo[catalog.CommissionSource](s)
}
func (s *GormStore) Units() shared.Repository[catalog.SellableUnit] {
	return repo[catalog.SellableUnit](s)
}
func (s *GormStore) TaxConstants() shared.Repository[catalog.SellableTaxConstant] {
	return repo[catalog.SellableTaxConstant](s)
}

func (s *GormStore) Payments() shared.Repository[finance.Payment] { return repo[finance.Payment](s) }
func (s *GormStore) PaymentMethods() shared.Repository[finance.PaymentMethod] {
	return repo[finance.PaymentMethod](s)
}
func (s *GormStore) PaymentGroups() shared.Repository[finance.PaymentGroup] {
	return repo[finance.PaymentGroup](s)
}
func (s *GormStore) PaymentHistory() shared.Repository[finance.PaymentChangeHistory] {
	return repo[finance.PaymentChangeHistory](s)
}
func (s *GormStore) CheckData() shared.Repository[finance.CheckData] {
	return repo[finance.CheckData](s)
}
func (s *GormStore) CardData() shared.Repository[finance.CardPaymentData] {
	return repo[finance.CardPaymentData](s)
}
func (s *GormStore) Accounts() shared.Repository[finance.Account] { return repo[finance.Account](s) }
func (s *GormStore) AccountTransactions() shared.Repository[finance.AccountTransaction] {
	return repo[finance.AccountTransaction](s)
}
func (s *GormStore) Tills() shared.Repository[finance.Till] { return repo[finance.Till](s) }
func (s *GormStore) TillEntries() shared.Repository[finance.TillEntry] {
	return repo[finance.TillEntry](s)
}
func (s *GormStore) FiscalEntries() shared.Repository[finance.FiscalBookEntry] {
	return repo[finance.FiscalBookEntry](s)
}
func (s *GormStore) Commissions() shared.Repository[finance.Commission] {
	return repo[finance.Commission](s)
}
func (s *GormStore) Events() shared.Repository[finance.Event] { return repo[finance.Event](s) }

func (s *GormStore) Purchases() shared.Repository[trade.PurchaseOrder] {
	return repo[trade.PurchaseOrder](s)
}
func (s *GormStore) PurchaseItems() shared.Repository[trade.PurchaseItem] {
	return repo[trade.PurchaseItem](s)
}
func (s *GormStore) QuoteGroups() shared.Repository[trade.QuoteGroup] {
	return repo[trade.QuoteGroup](s)
}
func (s *GormStore) Quotations() shared.Repository[trade.Quotation] { return repo[trade.Quotation](s) }
func (s *GormStore) Receivings() shared.Repository[trade.ReceivingOrder] {
	return repo[trade.ReceivingOrder](s)
}
func (s *GormStore) ReceivingItems() shared.Repository[trade.ReceivingOrderItem] {
	return repo[trade.ReceivingOrderItem](s)
}
func (s *GormStore) ReceivingInvoices() shared.Repository[trade.ReceivingInvoice] {
	return repo[trade.ReceivingInvoice](s)
}
func (s *GormStore) PurchaseReceivings() shared.Repository[trade.PurchaseReceivingMap] {
	return repo[trade.PurchaseReceivingMap](s)
}
func (s *GormStore) Sales() shared.Repository[trade.Sale]         { return repo[trade.Sale](s) }
func (s *GormStore) SaleItems() shared.Repository[trade.SaleItem] { return repo[trade.SaleItem](s) }
func (s *GormStore) ReturnedSales() shared.Repository[trade.ReturnedSale] {
	return repo[trade.ReturnedSale](s)
}
func (s *GormStore) ReturnedSaleItems() shared.Repository[trade.ReturnedSaleItem] {
	return repo[trade.ReturnedSaleItem](s)
}
func (s *GormStore) ReturnedSaleWriteOffs() shared.Repository[trade.ReturnedSaleWriteOff] {
	return repo[trade.ReturnedSaleWriteOff](s)
}
func (s *GormStore) WorkOrders() shared.Repository[trade.WorkOrder] { return repo[trade.WorkOrder](s) }
func (s *GormStore) WorkOrderItems() shared.Repository[trade.WorkOrderItem] {
	return repo[trade.WorkOrderItem](s)
}
func (s *GormStore) Loans() shared.Repository[trade.Loan]         { return repo[trade.Loan](s) }
func (s *GormStore) LoanItems() shared.Repository[trade.LoanItem] { return repo[trade.LoanItem](s) }
func (s *GormStore) Deliveries() shared.Repository[trade.Delivery] {
	return repo[trade.Delivery](s)
}
func (s *GormStore) SaleTokens() shared.Repository[trade.SaleToken] { return repo[trade.SaleToken](s) }

// StockItems returns the stock item repository with row locking support
func (s *GormStore) StockItems() inventory.StockItemRepository {
	return NewGormStockItemRepository(s.tx)
}

// StockHistory returns the append-only stock history repository
func (s *GormStore) StockHistory() inventory.HistoryRepository {
	return NewGormHistoryRepository(s.tx)
}

// Identifiers returns the identifier allocator bound to the transaction
func (s *GormStore) Identifiers() shared.IdentifierAllocator {
	return NewGormIdentifierAllocator(s.tx)
}

var (
	_ store.Scope = (*GormScope)(nil)
	_ store.Store = (*GormStore)(nil)
)
