package finance

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
)

// PaymentChangeHistory audits status and due date changes of a payment
type PaymentChangeHistory struct {
	shared.BaseEntity
	PaymentID   uuid.UUID     `gorm:"type:uuid;not null;index"`
	LastStatus  PaymentStatus `gorm:"type:varchar(20)"`
	NewStatus   PaymentStatus `gorm:"type:varchar(20)"`
	LastDueDate *time.Time
	NewDueDate  *time.Time
	ChangeDate  time.Time `gorm:"not null"`
	Reason      string    `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentChangeHistory) TableName() string {
	return "payment_change_history"
}

// NewStatusChange records a status transition
func NewStatusChange(paymentID uuid.UUID, from, to PaymentStatus, at time.Time, reason string) *PaymentChangeHistory {
	return &PaymentChangeHistory{
		BaseEntity: shared.NewBaseEntity(),
		PaymentID:  paymentID,
		LastStatus: from,
		NewStatus:  to,
		ChangeDate: at,
		Reason:     reason,
	}
}

// NewDueDateChange records a due date change
func NewDueDateChange(paymentID uuid.UUID, from, to time.Time, at time.Time, reason string) *PaymentChangeHistory {
	return &PaymentChangeHistory{
		BaseEntity:  shared.NewBaseEntity(),
		PaymentID:   paymentID,
		LastDueDate: &from,
		NewDueDate:  &to,
		ChangeDate:  at,
		Reason:      reason,
	}
}
