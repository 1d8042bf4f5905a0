package catalog

import (
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product refines a Sellable with stock related data. Its ID is the sellable ID.
type Product struct {
	shared.BaseEntity
	// IsPackage marks products sold as a bundle of ProductComponents
	IsPackage    bool
	IsComposed   bool
	Manufacturer string          `gorm:"type:varchar(100)"`
	NCM          string          `gorm:"type:varchar(10)"`
	Width        decimal.Decimal `gorm:"type:decimal(10,3);not null"`
	Height       decimal.Decimal `gorm:"type:decimal(10,3);not null"`
	Weight       decimal.Decimal `gorm:"type:decimal(10,3);not null"`
	// Consignment products are received before being paid for
	Consignment bool
	// Manage stock is false for products not tracked by a Storable
	ManageStock bool
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "product"
}

// NewProduct creates the product refinement of sellable
func NewProduct(sellable *Sellable) *Product {
	return &Product{
		BaseEntity:  shared.NewBaseEntityWithID(sellable.ID),
		Width:       decimal.Zero,
		Height:      decimal.Zero,
		Weight:      decimal.Zero,
		ManageStock: true,
	}
}

// Service refines a Sellable that has no stock. Its ID is the sellable ID.
type Service struct {
	shared.BaseEntity
	ServiceListItemCode string `gorm:"type:varchar(10)"`
	CityTaxationCode    string `gorm:"type:varchar(20)"`
}

// TableName returns the table name for GORM
func (Service) TableName() string {
	return "service"
}

// NewService creates the service refinement of sellable
func NewService(sellable *Sellable) *Service {
	sellable.IsService = true
	return &Service{BaseEntity: shared.NewBaseEntityWithID(sellable.ID)}
}

// ProductComponent is one part of a package or composed product
type ProductComponent struct {
	shared.BaseEntity
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ComponentID uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	// Price is the price of one component unit inside the package
	Price decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	// DesignReference is free text printed on production orders
	DesignReference string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (ProductComponent) TableName() string {
	return "product_component"
}

// NewProductComponent creates a component entry. A product cannot contain itself.
func NewProductComponent(productID, componentID uuid.UUID, quantity, price decimal.Decimal) (*ProductComponent, error) {
	if productID == componentID {
		return nil, shared.NewDomainError("INVALID_COMPONENT", "A product cannot be a component of itself")
	}
	if !quantity.IsPositive() {
		return nil, shared.OutOfRangef("component quantity must be positive: %s", quantity)
	}
	if price.IsNegative() {
		return nil, shared.OutOfRangef("component price cannot be negative: %s", price)
	}
	return &ProductComponent{
		BaseEntity:  shared.NewBaseEntity(),
		ProductID:   productID,
		ComponentID: componentID,
		Quantity:    quantity,
		Price:       price,
	}, nil
}

// ChildQuantity returns the quantity of a child item for parentQuantity packages
func (c *ProductComponent) ChildQuantity(parentQuantity decimal.Decimal) decimal.Decimal {
	return parentQuantity.Mul(c.Quantity)
}
