// Package store defines the unit of work every lifecycle operation runs in.
package store

import (
	"context"

	"github.com/erp/retail/internal/domain/catalog"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/inventory"
	"github.com/erp/retail/internal/domain/partner"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/trade"
)

// Scope opens stores. Execute commits when fn returns nil and rolls back
// otherwise; a store must not be used after fn returns.
type Scope interface {
	Execute(ctx context.Context, fn func(st Store) error) error
}

// Store gives access to every repository bound to one database transaction.
// Operations observe their own writes.
type Store interface {
	PartnerRepositories
	CatalogRepositories
	FinanceRepositories
	TradeRepositories

	StockItems() inventory.StockItemRepository
	StockHistory() inventory.HistoryRepository
	Identifiers() shared.IdentifierAllocator
}

// PartnerRepositories exposes persons and their facets
type PartnerRepositories interface {
	Persons() shared.Repository[partner.Person]
	Individuals() shared.Repository[partner.Individual]
	Companies() shared.Repository[partner.Company]
	Clients() shared.Repository[partner.Client]
	Suppliers() shared.Repository[partner.Supplier]
	Employees() shared.Repository[partner.Employee]
	LoginUsers() shared.Repository[partner.LoginUser]
	Branches() shared.Repository[partner.Branch]
	SalesPersons() shared.Repository[partner.SalesPerson]
	Transporters() shared.Repository[partner.Transporter]
	CreditProviders() shared.Repository[partner.CreditProvider]
}

// CatalogRepositories exposes sellables and their refinements
type CatalogRepositories interface {
	Sellables() shared.Repository[catalog.Sellable]
	Products() shared.Repository[catalog.Product]
	Services() shared.Repository[catalog.Service]
	Storables() shared.Repository[catalog.Storable]
	Batches() shared.Repository[catalog.StorableBatch]
	Components() shared.Repository[catalog.ProductComponent]
	Categories() shared.Repository[catalog.SellableCategory]
	CommissionSources() shared.Repository[catalog.CommissionSource]
	Units() shared.Repository[catalog.SellableUnit]
	TaxConstants() shared.Repository[catalog.SellableTaxConstant]
}

// FinanceRepositories exposes payments, tills and the fiscal and event logs
type FinanceRepositories interface {
	Payments() shared.Repository[finance.Payment]
	PaymentMethods() shared.Repository[finance.PaymentMethod]
	PaymentGroups() shared.Repository[finance.PaymentGroup]
	PaymentHistory() shared.Repository[finance.PaymentChangeHistory]
	CheckData() shared.Repository[finance.CheckData]
	CardData() shared.Repository[finance.CardPaymentData]
	Accounts() shared.Repository[finance.Account]
	AccountTransactions() shared.Repository[finance.AccountTransaction]
	Tills() shared.Repository[finance.Till]
	TillEntries() shared.Repository[finance.TillEntry]
	FiscalEntries() shared.Repository[finance.FiscalBookEntry]
	Commissions() shared.Repository[finance.Commission]
	Events() shared.Repository[finance.Event]
}

// TradeRepositories exposes purchases, sales and their satellites
type TradeRepositories interface {
	Purchases() shared.Repository[trade.PurchaseOrder]
	PurchaseItems() shared.Repository[trade.PurchaseItem]
	QuoteGroups() shared.Repository[trade.QuoteGroup]
	Quotations() shared.Repository[trade.Quotation]
	Receivings() shared.Repository[trade.ReceivingOrder]
	ReceivingItems() shared.Repository[trade.ReceivingOrderItem]
	ReceivingInvoices() shared.Repository[trade.ReceivingInvoice]
	PurchaseReceivings() shared.Repository[trade.PurchaseReceivingMap]
	Sales() shared.Repository[trade.Sale]
	SaleItems() shared.Repository[trade.SaleItem]
	ReturnedSales() shared.Repository[trade.ReturnedSale]
	ReturnedSaleItems() shared.Repository[trade.ReturnedSaleItem]
	ReturnedSaleWriteOffs() shared.Repository[trade.ReturnedSaleWriteOff]
	WorkOrders() shared.Repository[trade.WorkOrder]
	WorkOrderItems() shared.Repository[trade.WorkOrderItem]
	Loans() shared.Repository[trade.Loan]
	LoanItems() shared.Repository[trade.LoanItem]
	Deliveries() shared.Repository[trade.Delivery]
	SaleTokens() shared.Repository[trade.SaleToken]
}
