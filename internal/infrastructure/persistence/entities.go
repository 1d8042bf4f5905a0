package persistence

import (
	"github.com/erp/retail/internal/domain/catalog"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/inventory"
	"github.com/erp/retail/internal/domain/partner"
	"github.com/erp/retail/internal/domain/trade"
)

// Entities lists every persisted type, in dependency order, for AutoMigrate
// and schema drops.
func Entities() []any {
	return []any{
		&partner.Person{},
		&partner.Individual{},
		&partner.Company{},
		&partner.Client{},
		&partner.Supplier{},
		&partner.Employee{},
		&partner.LoginUser{},
		&partner.Branch{},
		&partner.SalesPerson{},
		&partner.Transporter{},
		&partner.CreditProvider{},

		&catalog.SellableUnit{},
		&catalog.SellableTaxConstant{},
		&catalog.SellableCategory{},
		&catalog.Sellable{},
		&catalog.Product{},
		&catalog.Service{},
		&catalog.Storable{},
		&catalog.StorableBatch{},
		&catalog.ProductComponent{},
		&catalog.CommissionSource{},

		&inventory.ProductStockItem{},
		&inventory.StockTransactionHistory{},

		&finance.Account{},
		&finance.PaymentMethod{},
		&finance.PaymentGroup{},
		&finance.Payment{},
		&finance.PaymentChangeHistory{},
		&finance.CheckData{},
		&finance.CardPaymentData{},
		&finance.AccountTransaction{},
		&finance.Till{},
		&finance.TillEntry{},
		&finance.FiscalBookEntry{},
		&finance.Commission{},
		&finance.Event{},

		&trade.PurchaseOrder{},
		&trade.PurchaseItem{},
		&trade.QuoteGroup{},
		&trade.Quotation{},
		&trade.ReceivingInvoice{},
		&trade.ReceivingOrder{},
		&trade.ReceivingOrderItem{},
		&trade.PurchaseReceivingMap{},
		&trade.SaleToken{},
		&trade.Sale{},
		&trade.SaleItem{},
		&trade.ReturnedSale{},
		&trade.ReturnedSaleItem{},
		&trade.ReturnedSaleWriteOff{},
		&trade.WorkOrder{},
		&trade.WorkOrderItem{},
		&trade.Loan{},
		&trade.LoanItem{},
		&trade.Delivery{},

		&IdentifierSequence{},
	}
}

// CreateSchema creates every table and index
func (d *Database) CreateSchema() error {
	return d.DB.AutoMigrate(Entities()...)
}

// DropSchema drops every table, dependents first
func (d *Database) DropSchema() error {
	entities := Entities()
	for i, j := 0, len(entities)-1; i < j; i, j = i+1, j-1 {
		entities[i], entities[j] = entities[j], entities[i]
	}
	return d.DB.Migrator().DropTable(entities...)
}
