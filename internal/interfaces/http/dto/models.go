package dto

import (
	"time"

	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceResponse is the stock on hand of a storable
type BalanceResponse struct {
	StorableID uuid.UUID       `json:"storable_id"`
	BranchID   *uuid.UUID      `json:"branch_id,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// TillResponse describes a till
type TillResponse struct {
	ID                uuid.UUID        `json:"id"`
	Identifier        int64            `json:"identifier"`
	StationID         uuid.UUID        `json:"station_id"`
	Status            string           `json:"status"`
	InitialCashAmount decimal.Decimal  `json:"initial_cash_amount"`
	FinalCashAmount   *decimal.Decimal `json:"final_cash_amount,omitempty"`
	OpeningDate       *time.Time       `json:"opening_date,omitempty"`
	ClosingDate       *time.Time       `json:"closing_date,omitempty"`
}

// NewTillResponse converts a till
func NewTillResponse(t *finance.Till) TillResponse {
	return TillResponse{
		ID:                t.ID,
		Identifier:        t.Identifier,
		StationID:         t.StationID,
		Status:            string(t.Status),
		InitialCashAmount: t.InitialCashAmount,
		FinalCashAmount:   t.FinalCashAmount,
		OpeningDate:       t.OpeningDate,
		ClosingDate:       t.ClosingDate,
	}
}

// SaleResponse describes a sale
type SaleResponse struct {
	ID           uuid.UUID  `json:"id"`
	Identifier   int64      `json:"identifier"`
	Status       string     `json:"status"`
	ClientID     *uuid.UUID `json:"client_id,omitempty"`
	Paid         bool       `json:"paid"`
	ConfirmDate  *time.Time `json:"confirm_date,omitempty"`
	CancelDate   *time.Time `json:"cancel_date,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

// NewSaleResponse converts a sale
func NewSaleResponse(s *trade.Sale) SaleResponse {
	return SaleResponse{
		ID:           s.ID,
		Identifier:   s.Identifier,
		Status:       string(s.Status),
		ClientID:     s.ClientID,
		Paid:         s.Paid,
		ConfirmDate:  s.ConfirmDate,
		CancelDate:   s.CancelDate,
		CancelReason: s.CancelReason,
	}
}

// PaymentResponse describes a payment
type PaymentResponse struct {
	ID          uuid.UUID       `json:"id"`
	Identifier  int64           `json:"identifier"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Value       decimal.Decimal `json:"value"`
	PaidValue   decimal.Decimal `json:"paid_value"`
	DueDate     time.Time       `json:"due_date"`
	PaidDate    *time.Time      `json:"paid_date,omitempty"`
	CancelDate  *time.Time      `json:"cancel_date,omitempty"`
	Description string          `json:"description,omitempty"`
}

// NewPaymentResponse converts a payment
func NewPaymentResponse(p *finance.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID,
		Identifier:  p.Identifier,
		Type:        string(p.PaymentType),
		Status:      string(p.Status),
		Value:       p.Value,
		PaidValue:   p.PaidValue,
		DueDate:     p.DueDate,
		PaidDate:    p.PaidDate,
		CancelDate:  p.CancelDate,
		Description: p.Description,
	}
}

// PurchaseResponse describes a purchase order
type PurchaseResponse struct {
	ID          uuid.UUID       `json:"id"`
	Identifier  int64           `json:"identifier"`
	Status      string          `json:"status"`
	SupplierID  uuid.UUID       `json:"supplier_id"`
	Total       decimal.Decimal `json:"total"`
	ConfirmDate *time.Time      `json:"confirm_date,omitempty"`
}

// NewPurchaseResponse converts a purchase order and its total
func NewPurchaseResponse(o *trade.PurchaseOrder, total decimal.Decimal) PurchaseResponse {
	return PurchaseResponse{
		ID:          o.ID,
		Identifier:  o.Identifier,
		Status:      string(o.Status),
		SupplierID:  o.SupplierID,
		Total:       total,
		ConfirmDate: o.ConfirmDate,
	}
}
