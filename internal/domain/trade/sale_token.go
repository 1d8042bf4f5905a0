package trade

import (
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
)

// SaleTokenStatus tells whether a token (a table, a card) is in use
type SaleTokenStatus string

const (
	SaleTokenAvailable SaleTokenStatus = "available"
	SaleTokenOccupied  SaleTokenStatus = "occupied"
)

// SaleToken identifies an open sale by a physical token
type SaleToken struct {
	shared.BaseEntity
	Code     string          `gorm:"type:varchar(30);not null;uniqueIndex"`
	Name     string          `gorm:"type:varchar(100)"`
	Status   SaleTokenStatus `gorm:"type:varchar(20);not null"`
	BranchID *uuid.UUID      `gorm:"type:uuid"`
	SaleID   *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (SaleToken) TableName() string {
	return "sale_token"
}

// NewSaleToken creates an available token
func NewSaleToken(code, name string) *SaleToken {
	return &SaleToken{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
		Status:     SaleTokenAvailable,
	}
}

// Occupy assigns the token to a sale
func (t *SaleToken) Occupy(saleID uuid.UUID) error {
	if t.Status != SaleTokenAvailable {
		return shared.InvalidStatef("token %s is %s", t.Code, t.Status)
	}
	t.Status = SaleTokenOccupied
	t.SaleID = &saleID
	return nil
}

// Release frees the token
func (t *SaleToken) Release() {
	t.Status = SaleTokenAvailable
	t.SaleID = nil
}
