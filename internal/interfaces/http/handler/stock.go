package handler

import (
	inventoryapp "github.com/erp/retail/internal/application/inventory"
	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/interfaces/http/dto"
	"github.com/erp/retail/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockHandler answers stock queries
type StockHandler struct {
	BaseHandler
	scope  store.Scope
	ledger *inventoryapp.StockLedger
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(scope store.Scope, ledger *inventoryapp.StockLedger) *StockHandler {
	return &StockHandler{scope: scope, ledger: ledger}
}

// GetBalance returns the quantity on hand of a storable, in one branch when
// branch_id is given and across branches otherwise
func (h *StockHandler) GetBalance(c *gin.Context) {
	var uri dto.StorableRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	var query dto.StockBalanceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	storableID := uuid.MustParse(uri.StorableID)
	resp := dto.BalanceResponse{StorableID: storableID}
	if query.BranchID != "" {
		branchID := uuid.MustParse(query.BranchID)
		resp.BranchID = &branchID
	}

	err := h.scope.Execute(c.Request.Context(), func(st store.Store) error {
		ctx := c.Request.Context()
		if _, err := st.Storables().FindByID(ctx, storableID); err != nil {
			return err
		}
		var (
			qty decimal.Decimal
			err error
		)
		if resp.BranchID != nil {
			qty, err = h.ledger.GetBalanceForBranch(ctx, st, storableID, *resp.BranchID)
		} else {
			qty, err = h.ledger.GetBalance(ctx, st, storableID)
		}
		resp.Quantity = qty
		return err
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
