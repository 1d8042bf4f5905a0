package handler

import (
	"github.com/erp/retail/internal/application/store"
	tradeapp "github.com/erp/retail/internal/application/trade"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/erp/retail/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SaleHandler drives the sale lifecycle
type SaleHandler struct {
	BaseHandler
	scope store.Scope
	sales *tradeapp.SaleService
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(scope store.Scope, sales *tradeapp.SaleService) *SaleHandler {
	return &SaleHandler{scope: scope, sales: sales}
}

// Confirm confirms an ordered sale. till_id is needed when the sale is paid
// with money.
func (h *SaleHandler) Confirm(c *gin.Context) {
	sc, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.ConfirmSaleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	var sale *trade.Sale
	err := h.scope.Execute(c.Request.Context(), func(st store.Store) error {
		ctx := c.Request.Context()
		var err error
		if sale, err = h.load(c, st, sc, id); err != nil {
			return err
		}
		var till *finance.Till
		if req.TillID != "" {
			if till, err = st.Tills().FindByID(ctx, uuid.MustParse(req.TillID)); err != nil {
				return err
			}
			if err := sameBranch(sc, till.BranchID); err != nil {
				return err
			}
		}
		return h.sales.Confirm(ctx, st, sc, sale, till)
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSaleResponse(sale))
}

// Cancel cancels a sale. force allows cancelling a confirmed sale.
func (h *SaleHandler) Cancel(c *gin.Context) {
	sc, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.CancelSaleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	var sale *trade.Sale
	err := h.scope.Execute(c.Request.Context(), func(st store.Store) error {
		var err error
		if sale, err = h.load(c, st, sc, id); err != nil {
			return err
		}
		return h.sales.Cancel(c.Request.Context(), st, sc, sale, req.Reason, req.Force)
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSaleResponse(sale))
}

func (h *SaleHandler) load(c *gin.Context, st store.Store, sc shared.Context, id uuid.UUID) (*trade.Sale, error) {
	sale, err := st.Sales().FindByID(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return sale, sameBranch(sc, sale.BranchID)
}
