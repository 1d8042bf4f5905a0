package finance

import (
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckData holds the bank data of a check payment
type CheckData struct {
	shared.BaseEntity
	PaymentID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	BankNumber  string    `gorm:"type:varchar(10)"`
	BankBranch  string    `gorm:"type:varchar(20)"`
	BankAccount string    `gorm:"type:varchar(30)"`
	CheckNumber string    `gorm:"type:varchar(30)"`
}

// TableName returns the table name for GORM
func (CheckData) TableName() string {
	return "check_data"
}

// NewCheckData creates empty check data for a payment
func NewCheckData(paymentID uuid.UUID) *CheckData {
	return &CheckData{BaseEntity: shared.NewBaseEntity(), PaymentID: paymentID}
}

// CardType distinguishes card payment modalities
type CardType string

const (
	CardCredit             CardType = "credit"
	CardDebit              CardType = "debit"
	CardCreditInstallments CardType = "credit_installments_store"
)

// CardPaymentData holds the card authorization of a payment
type CardPaymentData struct {
	shared.BaseEntity
	PaymentID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	ProviderID   *uuid.UUID      `gorm:"type:uuid"`
	CardType     CardType        `gorm:"type:varchar(30)"`
	Auth         string          `gorm:"type:varchar(50)"`
	Installments int             `gorm:"not null"`
	Fee          decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	FeeValue     decimal.Decimal `gorm:"type:decimal(20,2);not null"`
}

// TableName returns the table name for GORM
func (CardPaymentData) TableName() string {
	return "card_payment_data"
}

// NewCardPaymentData creates card data for a single installment credit payment
func NewCardPaymentData(paymentID uuid.UUID) *CardPaymentData {
	return &CardPaymentData{
		BaseEntity:   shared.NewBaseEntity(),
		PaymentID:    paymentID,
		CardType:     CardCredit,
		Installments: 1,
		Fee:          decimal.Zero,
		FeeValue:     decimal.Zero,
	}
}
