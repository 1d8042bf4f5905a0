package handler

import (
	"github.com/erp/retail/internal/application/store"
	tradeapp "github.com/erp/retail/internal/application/trade"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/erp/retail/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PurchaseHandler confirms purchase orders
type PurchaseHandler struct {
	BaseHandler
	scope     store.Scope
	purchases *tradeapp.PurchaseService
}

// NewPurchaseHandler creates a new PurchaseHandler
func NewPurchaseHandler(scope store.Scope, purchases *tradeapp.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{scope: scope, purchases: purchases}
}

// Confirm confirms a pending purchase order
func (h *PurchaseHandler) Confirm(c *gin.Context) {
	sc, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var (
		order *trade.PurchaseOrder
		total decimal.Decimal
	)
	err := h.scope.Execute(c.Request.Context(), func(st store.Store) error {
		ctx := c.Request.Context()
		var err error
		if order, err = st.Purchases().FindByID(ctx, id); err != nil {
			return err
		}
		if err := sameBranch(sc, order.BranchID); err != nil {
			return err
		}
		if err := h.purchases.Confirm(ctx, st, sc, order); err != nil {
			return err
		}
		total, err = h.purchases.GetPurchaseTotal(ctx, st, order)
		return err
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewPurchaseResponse(order, total))
}
