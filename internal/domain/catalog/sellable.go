package catalog

import (
	"strings"
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SellableStatus represents whether a sellable can be traded
type SellableStatus string

const (
	SellableStatusAvailable SellableStatus = "available"
	SellableStatusClosed    SellableStatus = "closed"
	SellableStatusBlocked   SellableStatus = "blocked"
)

// IsValid checks if the status is a valid value
func (s SellableStatus) IsValid() bool {
	switch s {
	case SellableStatusAvailable, SellableStatusClosed, SellableStatusBlocked:
		return true
	}
	return false
}

// Sellable unifies products and services in sales and purchases.
// Product, Service and Storable rows share the sellable primary key.
type Sellable struct {
	shared.BaseEntity
	Code          string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Barcode       string          `gorm:"type:varchar(50);index"`
	Description   string          `gorm:"type:varchar(300);not null"`
	BasePrice     decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	OnSalePrice   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	OnSaleStart   *time.Time
	OnSaleEnd     *time.Time
	Cost          decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	Status        SellableStatus  `gorm:"type:varchar(20);not null"`
	UnitID        *uuid.UUID      `gorm:"type:uuid"`
	CategoryID    *uuid.UUID      `gorm:"type:uuid;index"`
	TaxConstantID *uuid.UUID      `gorm:"type:uuid"`
	// IsService is set for sellables refined by a Service instead of a Product
	IsService bool
}

// TableName returns the table name for GORM
func (Sellable) TableName() string {
	return "sellable"
}

// NewSellable creates an available sellable
func NewSellable(code, description string, basePrice decimal.Decimal) (*Sellable, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Sellable code cannot be empty")
	}
	if strings.TrimSpace(description) == "" {
		return nil, shared.NewDomainError("INVALID_DESCRIPTION", "Sellable description cannot be empty")
	}
	if basePrice.IsNegative() {
		return nil, shared.OutOfRangef("base price cannot be negative: %s", basePrice)
	}
	return &Sellable{
		BaseEntity:  shared.NewBaseEntity(),
		Code:        code,
		Description: description,
		BasePrice:   basePrice,
		OnSalePrice: decimal.Zero,
		Cost:        decimal.Zero,
		Status:      SellableStatusAvailable,
	}, nil
}

// SetCost updates the reference cost
func (s *Sellable) SetCost(cost decimal.Decimal) error {
	if cost.IsNegative() {
		return shared.OutOfRangef("cost cannot be negative: %s", cost)
	}
	s.Cost = cost
	return nil
}

// SetOnSale configures a promotional price valid inside [start, end]
func (s *Sellable) SetOnSale(price decimal.Decimal, start, end time.Time) error {
	if price.IsNegative() {
		return shared.OutOfRangef("on sale price cannot be negative: %s", price)
	}
	if end.Before(start) {
		return shared.OutOfRangef("on sale window ends before it starts")
	}
	s.OnSalePrice = price
	s.OnSaleStart = &start
	s.OnSaleEnd = &end
	return nil
}

// IsOnSale reports whether the promotional window contains today
func (s *Sellable) IsOnSale(today time.Time) bool {
	if s.OnSalePrice.IsZero() || s.OnSaleStart == nil || s.OnSaleEnd == nil {
		return false
	}
	day := shared.StartOfDay(today)
	return !day.Before(shared.StartOfDay(*s.OnSaleStart)) && !day.After(shared.StartOfDay(*s.OnSaleEnd))
}

// Price returns the on sale price when today is inside the window, else the base price
func (s *Sellable) Price(today time.Time) decimal.Decimal {
	if s.IsOnSale(today) {
		return s.OnSalePrice
	}
	return s.BasePrice
}

// Close takes the sellable out of trade
func (s *Sellable) Close() error {
	if s.Status == SellableStatusClosed {
		return shared.InvalidStatef("sellable %s is already closed", s.Code)
	}
	s.Status = SellableStatusClosed
	return nil
}

// Block prevents selling the sellable while it can still be purchased
func (s *Sellable) Block() {
	s.Status = SellableStatusBlocked
}

// Reopen makes a closed or blocked sellable available again
func (s *Sellable) Reopen() {
	s.Status = SellableStatusAvailable
}

// CanBeSold reports whether the sellable may appear in a sale
func (s *Sellable) CanBeSold() bool {
	return s.Status == SellableStatusAvailable
}

// CanBePurchased reports whether the sellable may appear in a purchase
func (s *Sellable) CanBePurchased() bool {
	return s.Status != SellableStatusClosed
}

// SellableUnit describes the unit of measure
type SellableUnit struct {
	shared.BaseEntity
	Description   string `gorm:"type:varchar(50);not null"`
	AllowFraction bool
}

// TableName returns the table name for GORM
func (SellableUnit) TableName() string {
	return "sellable_unit"
}

// TaxType classifies a tax constant
type TaxType string

const (
	TaxTypeCustom       TaxType = "custom"
	TaxTypeExempt       TaxType = "exempt"
	TaxTypeSubstitution TaxType = "substitution"
	TaxTypeService      TaxType = "service"
)

// SellableTaxConstant carries the ICMS/ISS rate applied to a sellable
type SellableTaxConstant struct {
	shared.BaseEntity
	Description string          `gorm:"type:varchar(100);not null"`
	TaxType     TaxType         `gorm:"type:varchar(20);not null"`
	TaxValue    decimal.Decimal `gorm:"type:decimal(10,4);not null"`
}

// TableName returns the table name for GORM
func (SellableTaxConstant) TableName() string {
	return "sellable_tax_constant"
}

// Rate returns the percentage to apply, zero for exempt and substitution taxes
func (t *SellableTaxConstant) Rate() decimal.Decimal {
	if t.TaxType == TaxTypeExempt || t.TaxType == TaxTypeSubstitution {
		return decimal.Zero
	}
	return t.TaxValue
}
