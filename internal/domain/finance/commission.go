package finance

import (
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionType tells which rate produced a commission
type CommissionType string

const (
	CommissionDirect       CommissionType = "direct"
	CommissionInstallments CommissionType = "installments"
)

// Commission is the salesperson share of one sale payment
type Commission struct {
	shared.BaseEntity
	SalesPersonID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	SaleID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	CommissionType CommissionType  `gorm:"type:varchar(20);not null"`
	Value          decimal.Decimal `gorm:"type:decimal(20,2);not null"`
}

// TableName returns the table name for GORM
func (Commission) TableName() string {
	return "commission"
}

// NewCommission creates a commission for a payment
func NewCommission(salesPersonID, saleID, paymentID uuid.UUID, commissionType CommissionType, value decimal.Decimal) *Commission {
	return &Commission{
		BaseEntity:     shared.NewBaseEntity(),
		SalesPersonID:  salesPersonID,
		SaleID:         saleID,
		PaymentID:      paymentID,
		CommissionType: commissionType,
		Value:          value.RoundBank(2),
	}
}
