package router

import (
	"github.com/erp/retail/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// Handlers groups the handlers served under the API prefix
type Handlers struct {
	Stock    *handler.StockHandler
	Till     *handler.TillHandler
	Sale     *handler.SaleHandler
	Payment  *handler.PaymentHandler
	Purchase *handler.PurchaseHandler
}

// RegisterAll adds one domain group per handler. operator runs before every
// route that acts on behalf of a branch.
func (r *Router) RegisterAll(h Handlers, operator gin.HandlerFunc) *Router {
	r.Register(NewDomainGroup("stock", "/stock").
		GET("/:storable/balance", h.Stock.GetBalance))

	r.Register(NewDomainGroup("tills", "/tills").Use(operator).
		POST("/open", h.Till.Open).
		POST("/:id/close", h.Till.Close))

	r.Register(NewDomainGroup("sales", "/sales").Use(operator).
		POST("/:id/confirm", h.Sale.Confirm).
		POST("/:id/cancel", h.Sale.Cancel))

	r.Register(NewDomainGroup("payments", "/payments").Use(operator).
		POST("/:id/pay", h.Payment.Pay).
		POST("/:id/cancel", h.Payment.Cancel))

	r.Register(NewDomainGroup("purchases", "/purchases").Use(operator).
		POST("/:id/confirm", h.Purchase.Confirm))

	return r
}
