package handler

import (
	financeapp "github.com/erp/retail/internal/application/finance"
	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TillHandler opens and closes tills
type TillHandler struct {
	BaseHandler
	scope store.Scope
	tills *financeapp.TillService
}

// NewTillHandler creates a new TillHandler
func NewTillHandler(scope store.Scope, tills *financeapp.TillService) *TillHandler {
	return &TillHandler{scope: scope, tills: tills}
}

// Open opens a till on the station named by X-Station-ID
func (h *TillHandler) Open(c *gin.Context) {
	sc, ok := h.operator(c)
	if !ok {
		return
	}

	var till *finance.Till
	err := h.scope.Execute(c.Request.Context(), func(st store.Store) error {
		var err error
		till, err = h.tills.OpenTill(c.Request.Context(), st, sc)
		return err
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewTillResponse(till))
}

// Close closes a till after removing remove_cash from it
func (h *TillHandler) Close(c *gin.Context) {
	sc, ok := h.operator(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.CloseTillRequest
	if !h.bindJSON(c, &req) {
		return
	}
	removeCash := decimal.Zero
	if req.RemoveCash != "" {
		removeCash = decimal.RequireFromString(req.RemoveCash)
	}

	var till *finance.Till
	err := h.scope.Execute(c.Request.Context(), func(st store.Store) error {
		ctx := c.Request.Context()
		var err error
		if till, err = st.Tills().FindByID(ctx, id); err != nil {
			return err
		}
		if err := sameBranch(sc, till.BranchID); err != nil {
			return err
		}
		return h.tills.CloseTill(ctx, st, sc, till, removeCash)
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewTillResponse(till))
}
