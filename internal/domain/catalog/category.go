package catalog

import (
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SellableCategory groups sellables. A category without parent is a base category.
type SellableCategory struct {
	shared.BaseEntity
	Description string     `gorm:"type:varchar(100);not null"`
	ParentID    *uuid.UUID `gorm:"type:uuid;index"`
	// SuggestedMarkup is the percentage over cost suggested for new prices
	SuggestedMarkup decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}

// TableName returns the table name for GORM
func (SellableCategory) TableName() string {
	return "sellable_category"
}

// NewSellableCategory creates a category under parent (nil for a base category)
func NewSellableCategory(description string, parent *SellableCategory) *SellableCategory {
	c := &SellableCategory{
		BaseEntity:      shared.NewBaseEntity(),
		Description:     description,
		SuggestedMarkup: decimal.Zero,
	}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	return c
}

// IsBase reports whether the category has no parent
func (c *SellableCategory) IsBase() bool {
	return c.ParentID == nil
}

// CommissionSource holds the commission rates for a sellable or a category.
// Exactly one of SellableID and CategoryID is set.
type CommissionSource struct {
	shared.BaseEntity
	SellableID *uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	CategoryID *uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	// DirectValue is the percentage for single payment sales
	DirectValue decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	// InstallmentsValue is the percentage for sales paid in installments
	InstallmentsValue decimal.Decimal `gorm:"type:decimal(10,2);not null"`
}

// TableName returns the table name for GORM
func (CommissionSource) TableName() string {
	return "commission_source"
}

// NewSellableCommissionSource creates rates specific to a sellable
func NewSellableCommissionSource(sellableID uuid.UUID, direct, installments decimal.Decimal) (*CommissionSource, error) {
	if err := validateRates(direct, installments); err != nil {
		return nil, err
	}
	return &CommissionSource{
		BaseEntity:        shared.NewBaseEntity(),
		SellableID:        &sellableID,
		DirectValue:       direct,
		InstallmentsValue: installments,
	}, nil
}

// NewCategoryCommissionSource creates rates for every sellable of a category
func NewCategoryCommissionSource(categoryID uuid.UUID, direct, installments decimal.Decimal) (*CommissionSource, error) {
	if err := validateRates(direct, installments); err != nil {
		return nil, err
	}
	return &CommissionSource{
		BaseEntity:        shared.NewBaseEntity(),
		CategoryID:        &categoryID,
		DirectValue:       direct,
		InstallmentsValue: installments,
	}, nil
}

// Rate returns the percentage to apply for a sale paid in installments or not
func (c *CommissionSource) Rate(installments bool) decimal.Decimal {
	if installments {
		return c.InstallmentsValue
	}
	return c.DirectValue
}

func validateRates(direct, installments decimal.Decimal) error {
	hundred := decimal.NewFromInt(100)
	for _, v := range []decimal.Decimal{direct, installments} {
		if v.IsNegative() || v.GreaterThan(hundred) {
			return shared.OutOfRangef("commission rate must be within [0, 100]: %s", v)
		}
	}
	return nil
}
