package dto

import "time"

// StockBalanceQuery narrows a balance to one branch. Without branch_id the
// balance covers every branch.
type StockBalanceQuery struct {
	BranchID string `form:"branch_id" binding:"omitempty,uuid"`
}

// CloseTillRequest closes a till, optionally withdrawing cash first
type CloseTillRequest struct {
	RemoveCash string `json:"remove_cash" binding:"omitempty,decimal,nonnegative"`
}

// ConfirmSaleRequest confirms an ordered sale. A till is needed for money payments.
type ConfirmSaleRequest struct {
	TillID string `json:"till_id" binding:"omitempty,uuid"`
}

// CancelSaleRequest cancels a sale
type CancelSaleRequest struct {
	Reason string `json:"reason" binding:"required,max=300"`
	Force  bool   `json:"force"`
}

// PayPaymentRequest pays a pending payment. Omitted values default to the
// payable value and today.
type PayPaymentRequest struct {
	PaidDate          *time.Time `json:"paid_date"`
	PaidValue         string     `json:"paid_value" binding:"omitempty,decimal,nonnegative"`
	TransactionNumber string     `json:"transaction_number" binding:"max=50"`
}

// CancelPaymentRequest cancels a payment
type CancelPaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=300"`
}

// IDRequest represents a request with an ID path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// StorableRequest represents a request with a storable path parameter
type StorableRequest struct {
	StorableID string `uri:"storable" binding:"required,uuid"`
}
