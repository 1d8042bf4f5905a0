package finance

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType classifies ledger accounts
type AccountType string

const (
	AccountTypeCash      AccountType = "cash"
	AccountTypeBank      AccountType = "bank"
	AccountTypeIncome    AccountType = "income"
	AccountTypeExpense   AccountType = "expense"
	AccountTypeImbalance AccountType = "imbalance"
)

// Account is a ledger account money moves between
type Account struct {
	shared.BaseEntity
	Description string      `gorm:"type:varchar(100);not null"`
	AccountType AccountType `gorm:"type:varchar(20);not null"`
	Code        string      `gorm:"type:varchar(20)"`
	ParentID    *uuid.UUID  `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (Account) TableName() string {
	return "account"
}

// NewAccount creates an account
func NewAccount(description string, accountType AccountType) *Account {
	return &Account{
		BaseEntity:  shared.NewBaseEntity(),
		Description: description,
		AccountType: accountType,
	}
}

// AccountTransaction moves value from a source account to a destination account
type AccountTransaction struct {
	shared.BaseEntity
	SourceAccountID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	DestinationAccountID uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID            *uuid.UUID      `gorm:"type:uuid;index"`
	Value                decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Date                 time.Time       `gorm:"not null"`
	Code                 string          `gorm:"type:varchar(50)"`
	Description          string          `gorm:"type:varchar(300)"`
	// ReversalOfID links a reversal to the transaction it undoes
	ReversalOfID *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (AccountTransaction) TableName() string {
	return "account_transaction"
}

// NewAccountTransaction creates a transaction for a paid payment
func NewAccountTransaction(source, destination uuid.UUID, payment *Payment, code string) (*AccountTransaction, error) {
	if source == destination {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "source and destination accounts must differ")
	}
	date := time.Now()
	if payment.PaidDate != nil {
		date = *payment.PaidDate
	}
	pid := payment.ID
	return &AccountTransaction{
		BaseEntity:           shared.NewBaseEntity(),
		SourceAccountID:      source,
		DestinationAccountID: destination,
		PaymentID:            &pid,
		Value:                payment.PaidValue,
		Date:                 date,
		Code:                 code,
		Description:          payment.Description,
	}, nil
}

// Reverse creates the transaction undoing t: accounts swapped, same value
func (t *AccountTransaction) Reverse(at time.Time) *AccountTransaction {
	orig := t.ID
	return &AccountTransaction{
		BaseEntity:           shared.NewBaseEntity(),
		SourceAccountID:      t.DestinationAccountID,
		DestinationAccountID: t.SourceAccountID,
		PaymentID:            t.PaymentID,
		Value:                t.Value,
		Date:                 at,
		Code:                 t.Code,
		Description:          "Reversal: " + t.Description,
		ReversalOfID:         &orig,
	}
}

// IsReversal reports a reversal transaction
func (t *AccountTransaction) IsReversal() bool {
	return t.ReversalOfID != nil
}
