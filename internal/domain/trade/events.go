package trade

import (
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constants
const (
	AggregateTypeSale     = "Sale"
	AggregateTypeDelivery = "Delivery"
	AggregateTypeLoan     = "Loan"
)

// Event type constants. The set is closed: collaborators subscribe by these names.
const (
	EventTypeSaleStatusChanged     = "SaleStatusChanged"
	EventTypeSaleIsExternal        = "SaleIsExternal"
	EventTypeSaleCanCancel         = "SaleCanCancel"
	EventTypeDeliveryStatusChanged = "DeliveryStatusChanged"
	EventTypeNewLoanWizardFinish   = "NewLoanWizardFinish"
	EventTypeCloseLoanWizardFinish = "CloseLoanWizardFinish"
)

// SaleStatusChangedEvent is raised on every status change of a sale
type SaleStatusChangedEvent struct {
	shared.BaseDomainEvent
	SaleID    uuid.UUID  `json:"sale_id"`
	OldStatus SaleStatus `json:"old_status"`
	NewStatus SaleStatus `json:"new_status"`
}

// NewSaleStatusChangedEvent creates a SaleStatusChangedEvent
func NewSaleStatusChangedEvent(sale *Sale, old SaleStatus) *SaleStatusChangedEvent {
	return &SaleStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleStatusChanged, AggregateTypeSale, sale.ID, sale.BranchID),
		SaleID:          sale.ID,
		OldStatus:       old,
		NewStatus:       sale.Status,
	}
}

// SaleIsExternalEvent asks subscribers whether a sale was made outside the
// store (for instance by an e-commerce integration). Handlers set IsExternal.
type SaleIsExternalEvent struct {
	shared.BaseDomainEvent
	SaleID     uuid.UUID `json:"sale_id"`
	IsExternal bool      `json:"is_external"`
}

// NewSaleIsExternalEvent creates a SaleIsExternalEvent
func NewSaleIsExternalEvent(sale *Sale) *SaleIsExternalEvent {
	return &SaleIsExternalEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleIsExternal, AggregateTypeSale, sale.ID, sale.BranchID),
		SaleID:          sale.ID,
	}
}

// SaleCanCancelEvent lets subscribers veto the cancellation of a sale by
// clearing CanCancel.
type SaleCanCancelEvent struct {
	shared.BaseDomainEvent
	SaleID    uuid.UUID `json:"sale_id"`
	CanCancel bool      `json:"can_cancel"`
}

// NewSaleCanCancelEvent creates a SaleCanCancelEvent carrying the status based answer
func NewSaleCanCancelEvent(sale *Sale, canCancel bool) *SaleCanCancelEvent {
	return &SaleCanCancelEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleCanCancel, AggregateTypeSale, sale.ID, sale.BranchID),
		SaleID:          sale.ID,
		CanCancel:       canCancel,
	}
}

// DeliveryStatusChangedEvent is raised on every status change of a delivery
type DeliveryStatusChangedEvent struct {
	shared.BaseDomainEvent
	DeliveryID uuid.UUID      `json:"delivery_id"`
	SaleID     uuid.UUID      `json:"sale_id"`
	OldStatus  DeliveryStatus `json:"old_status"`
	NewStatus  DeliveryStatus `json:"new_status"`
}

// NewDeliveryStatusChangedEvent creates a DeliveryStatusChangedEvent
func NewDeliveryStatusChangedEvent(d *Delivery, old DeliveryStatus) *DeliveryStatusChangedEvent {
	return &DeliveryStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryStatusChanged, AggregateTypeDelivery, d.ID, d.BranchID),
		DeliveryID:      d.ID,
		SaleID:          d.SaleID,
		OldStatus:       old,
		NewStatus:       d.Status,
	}
}

// NewLoanWizardFinishEvent is raised once a loan is opened
type NewLoanWizardFinishEvent struct {
	shared.BaseDomainEvent
	LoanID uuid.UUID `json:"loan_id"`
}

// NewNewLoanWizardFinishEvent creates a NewLoanWizardFinishEvent
func NewNewLoanWizardFinishEvent(loan *Loan) *NewLoanWizardFinishEvent {
	return &NewLoanWizardFinishEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeNewLoanWizardFinish, AggregateTypeLoan, loan.ID, loan.BranchID),
		LoanID:          loan.ID,
	}
}

// CloseLoanWizardFinishEvent is raised once a loan is closed. SaleID is set
// when part of the loan was sold.
type CloseLoanWizardFinishEvent struct {
	shared.BaseDomainEvent
	LoanID uuid.UUID  `json:"loan_id"`
	SaleID *uuid.UUID `json:"sale_id,omitempty"`
}

// NewCloseLoanWizardFinishEvent creates a CloseLoanWizardFinishEvent
func NewCloseLoanWizardFinishEvent(loan *Loan, saleID *uuid.UUID) *CloseLoanWizardFinishEvent {
	return &CloseLoanWizardFinishEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCloseLoanWizardFinish, AggregateTypeLoan, loan.ID, loan.BranchID),
		LoanID:          loan.ID,
		SaleID:          saleID,
	}
}
