package handler

import (
	financeapp "github.com/erp/retail/internal/application/finance"
	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentHandler pays and cancels payments
type PaymentHandler struct {
	BaseHandler
	scope    store.Scope
	payments *financeapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(scope store.Scope, payments *financeapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{scope: scope, payments: payments}
}

// Pay pays a pending payment
func (h *PaymentHandler) Pay(c *gin.Context) {
	sc, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.PayPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	opts := financeapp.PayOptions{
		PaidDate:          req.PaidDate,
		TransactionNumber: req.TransactionNumber,
	}
	if req.PaidValue != "" {
		v := decimal.RequireFromString(req.PaidValue)
		opts.PaidValue = &v
	}

	var payment *finance.Payment
	err := h.scope.Execute(c.Request.Context(), func(st store.Store) error {
		var err error
		if payment, err = h.load(c, st, sc, id); err != nil {
			return err
		}
		return h.payments.Pay(c.Request.Context(), st, sc, payment, opts)
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewPaymentResponse(payment))
}

// Cancel cancels a payment
func (h *PaymentHandler) Cancel(c *gin.Context) {
	sc, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.CancelPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	var payment *finance.Payment
	err := h.scope.Execute(c.Request.Context(), func(st store.Store) error {
		var err error
		if payment, err = h.load(c, st, sc, id); err != nil {
			return err
		}
		return h.payments.Cancel(c.Request.Context(), st, sc, payment, req.Reason)
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewPaymentResponse(payment))
}

func (h *PaymentHandler) load(c *gin.Context, st store.Store, sc shared.Context, id uuid.UUID) (*finance.Payment, error) {
	payment, err := st.Payments().FindByID(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return payment, sameBranch(sc, payment.BranchID)
}
