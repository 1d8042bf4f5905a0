package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	financeapp "github.com/erp/retail/internal/application/finance"
	inventoryapp "github.com/erp/retail/internal/application/inventory"
	"github.com/erp/retail/internal/application/store"
	tradeapp "github.com/erp/retail/internal/application/trade"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/erp/retail/internal/infrastructure/logger"
	"github.com/erp/retail/internal/interfaces/http/dto"
	"github.com/erp/retail/internal/interfaces/http/handler"
	"github.com/erp/retail/internal/interfaces/http/middleware"
	"github.com/erp/retail/internal/interfaces/http/router"
	"github.com/erp/retail/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiEnv struct {
	*testutil.Fixture
	engine    *gin.Engine
	payments  *financeapp.PaymentService
	methods   *financeapp.MethodService
	tills     *financeapp.TillService
	purchases *tradeapp.PurchaseService
	sales     *tradeapp.SaleService
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	ts := testutil.NewStore(t)
	f := testutil.NewFixture(t, ts)
	zl := zap.NewNop()

	payments := financeapp.NewPaymentService(nil, zl)
	methods := financeapp.NewMethodService(zl)
	tills := financeapp.NewTillService(payments, methods, nil, zl)
	groups := financeapp.NewGroupService(payments, tills, zl)
	ledger := inventoryapp.NewStockLedger(zl)
	purchases := tradeapp.NewPurchaseService(groups, methods, payments, zl)
	sales := tradeapp.NewSaleService(groups, methods, payments, ledger, tradeapp.NewCommissionService(zl), zl)

	engine := gin.New()
	engine.Use(logger.GinMiddleware(zl), logger.Recovery(zl))
	router.NewRouter(engine, router.WithMiddleware(middleware.BodyLimit(1<<16))).
		RegisterAll(router.Handlers{
			Stock:    handler.NewStockHandler(ts.Scope, ledger),
			Till:     handler.NewTillHandler(ts.Scope, tills),
			Sale:     handler.NewSaleHandler(ts.Scope, sales),
			Payment:  handler.NewPaymentHandler(ts.Scope, payments),
			Purchase: handler.NewPurchaseHandler(ts.Scope, purchases),
		}, middleware.OperatorContext(middleware.OperatorConfig{
			Params: f.Params,
			Clock:  func() time.Time { return testutil.Now },
		})).
		Setup()

	return &apiEnv{
		Fixture:   f,
		engine:    engine,
		payments:  payments,
		methods:   methods,
		tills:     tills,
		purchases: purchases,
		sales:     sales,
	}
}

func (e *apiEnv) headers() map[string]string {
	return map[string]string{
		middleware.BranchHeaderKey:  e.Branch.ID.String(),
		middleware.UserHeaderKey:    e.Ctx.UserID.String(),
		middleware.StationHeaderKey: e.Ctx.StationID.String(),
	}
}

func (e *apiEnv) foreignHeaders() map[string]string {
	h := e.headers()
	h[middleware.BranchHeaderKey] = uuid.NewString()
	return h
}

// orderedSale creates an ordered sale of one unit of a stocked product
func (e *apiEnv) orderedSale(t *testing.T) *trade.Sale {
	t.Helper()
	p := e.Product(t, "P-"+uuid.NewString()[:8], "10", "6", false)
	e.Stock(t, p, "5", "6", nil)
	var sale *trade.Sale
	e.Store.Run(t, func(ctx context.Context, st store.Store) error {
		var err error
		if sale, err = e.sales.CreateSale(ctx, st, e.Ctx, nil, nil); err != nil {
			return err
		}
		if _, err := e.sales.AddSellable(ctx, st, e.Ctx, sale, tradeapp.AddSellableRequest{
			SellableID: p.Sellable.ID,
			Quantity:   testutil.D("1"),
		}); err != nil {
			return err
		}
		return e.sales.Order(ctx, st, e.Ctx, sale)
	})
	return sale
}

// pendingPayment confirms a sale paid by bill and returns its pending payment
func (e *apiEnv) pendingPayment(t *testing.T) *finance.Payment {
	t.Helper()
	sale := e.orderedSale(t)
	var created []*finance.Payment
	e.Store.Run(t, func(ctx context.Context, st store.Store) error {
		var err error
		created, err = e.methods.CreatePayments(ctx, st, e.Ctx, e.Method(finance.MethodBill), financeapp.PaymentRequest{
			Type:    finance.PaymentTypeIn,
			GroupID: sale.GroupID,
			Value:   testutil.D("10"),
		}, []time.Time{testutil.Now.AddDate(0, 1, 0)})
		if err != nil {
			return err
		}
		return e.sales.Confirm(ctx, st, e.Ctx, sale, nil)
	})
	require.Len(t, created, 1)
	return created[0]
}

func assertDecimal(t *testing.T, expected string, raw any) {
	t.Helper()
	s, ok := raw.(string)
	require.True(t, ok, "expected a decimal string, got %v", raw)
	testutil.AssertDecimal(t, expected, decimal.RequireFromString(s))
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)
	w := testutil.PerformRequest(t, env.engine, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
}

func TestStockHandler_GetBalance(t *testing.T) {
	env := newAPIEnv(t)
	p := env.Product(t, "P", "10", "6", false)
	env.Stock(t, p, "7", "6", nil)
	path := "/api/v1/stock/" + p.Storable.ID.String() + "/balance"

	testutil.RunHTTPTestCases(t, env.engine, []testutil.HTTPTestCase{
		{
			Name:           "all branches",
			Method:         http.MethodGet,
			Path:           path,
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				data := testutil.AssertSuccessResponse(t, w)
				assertDecimal(t, "7", data["quantity"])
				assert.Nil(t, data["branch_id"])
			},
		},
		{
			Name:           "one branch",
			Method:         http.MethodGet,
			Path:           path + "?branch_id=" + env.Branch.ID.String(),
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				data := testutil.AssertSuccessResponse(t, w)
				assertDecimal(t, "7", data["quantity"])
				assert.Equal(t, env.Branch.ID.String(), data["branch_id"])
			},
		},
		{
			Name:           "other branch holds nothing",
			Method:         http.MethodGet,
			Path:           path + "?branch_id=" + uuid.NewString(),
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				data := testutil.AssertSuccessResponse(t, w)
				assertDecimal(t, "0", data["quantity"])
			},
		},
		{
			Name:           "unknown storable",
			Method:         http.MethodGet,
			Path:           "/api/v1/stock/" + uuid.NewString() + "/balance",
			ExpectedStatus: http.StatusNotFound,
			ExpectedCode:   dto.ErrCodeNotFound,
		},
		{
			Name:           "malformed storable",
			Method:         http.MethodGet,
			Path:           "/api/v1/stock/not-a-uuid/balance",
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
		{
			Name:           "malformed branch",
			Method:         http.MethodGet,
			Path:           path + "?branch_id=nope",
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
	})
}

func TestTillHandler_OpenAndClose(t *testing.T) {
	env := newAPIEnv(t)

	w := testutil.PerformRequest(t, env.engine, http.MethodPost, "/api/v1/tills/open", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	testutil.AssertErrorResponse(t, w, dto.ErrCodeMissingOperatorContext)

	w = testutil.PerformRequest(t, env.engine, http.MethodPost, "/api/v1/tills/open", nil, env.headers())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := testutil.AssertSuccessResponse(t, w)
	assert.Equal(t, string(finance.TillStatusOpen), data["status"])
	assert.Equal(t, env.Ctx.StationID.String(), data["station_id"])
	tillID, _ := data["id"].(string)
	require.NotEmpty(t, tillID)

	w = testutil.PerformRequest(t, env.engine, http.MethodPost, "/api/v1/tills/open", nil, env.headers())
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	testutil.AssertErrorResponse(t, w, dto.ErrCodeInvalidState)

	closePath := "/api/v1/tills/" + tillID + "/close"
	testutil.RunHTTPTestCases(t, env.engine, []testutil.HTTPTestCase{
		{
			Name:           "bad amount",
			Method:         http.MethodPost,
			Path:           closePath,
			Body:           map[string]any{"remove_cash": "lots"},
			Headers:        env.headers(),
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
		{
			Name:           "foreign branch",
			Method:         http.MethodPost,
			Path:           closePath,
			Headers:        env.foreignHeaders(),
			ExpectedStatus: http.StatusNotFound,
			ExpectedCode:   dto.ErrCodeNotFound,
		},
		{
			Name:           "closes",
			Method:         http.MethodPost,
			Path:           closePath,
			Body:           map[string]any{"remove_cash": "0"},
			Headers:        env.headers(),
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				data := testutil.AssertSuccessResponse(t, w)
				assert.Equal(t, string(finance.TillStatusClosed), data["status"])
				assert.NotNil(t, data["closing_date"])
			},
		},
	})
}

func TestOperatorContext_RejectsMalformedHeaders(t *testing.T) {
	env := newAPIEnv(t)
	h := env.headers()
	h[middleware.UserHeaderKey] = "someone"

	w := testutil.PerformRequest(t, env.engine, http.MethodPost, "/api/v1/tills/open", nil, h)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	testutil.AssertErrorResponse(t, w, dto.ErrCodeMissingOperatorContext)
}

func TestSaleHandler_Confirm(t *testing.T) {
	env := newAPIEnv(t)
	sale := env.orderedSale(t)
	var till *finance.Till
	env.Store.Run(t, func(ctx context.Context, st store.Store) error {
		if _, err := env.methods.CreatePayment(ctx, st, env.Ctx, env.Method(finance.MethodMoney), financeapp.PaymentRequest{
			Type:    finance.PaymentTypeIn,
			GroupID: sale.GroupID,
			Value:   testutil.D("10"),
		}); err != nil {
			return err
		}
		var err error
		till, err = env.tills.OpenTill(ctx, st, env.Ctx)
		return err
	})
	path := "/api/v1/sales/" + sale.ID.String() + "/confirm"

	testutil.RunHTTPTestCases(t, env.engine, []testutil.HTTPTestCase{
		{
			Name:           "unknown sale",
			Method:         http.MethodPost,
			Path:           "/api/v1/sales/" + uuid.NewString() + "/confirm",
			Headers:        env.headers(),
			ExpectedStatus: http.StatusNotFound,
			ExpectedCode:   dto.ErrCodeNotFound,
		},
		{
			Name:           "malformed till",
			Method:         http.MethodPost,
			Path:           path,
			Body:           map[string]any{"till_id": "x"},
			Headers:        env.headers(),
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
		{
			Name:           "confirms",
			Method:         http.MethodPost,
			Path:           path,
			Body:           map[string]any{"till_id": till.ID.String()},
			Headers:        env.headers(),
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				data := testutil.AssertSuccessResponse(t, w)
				assert.Equal(t, sale.ID.String(), data["id"])
				assert.NotNil(t, data["confirm_date"])
				assert.Contains(t, []any{string(trade.SaleStatusConfirmed), string(trade.SaleStatusPaid)}, data["status"])
			},
		},
		{
			Name:           "already confirmed",
			Method:         http.MethodPost,
			Path:           path,
			Body:           map[string]any{"till_id": till.ID.String()},
			Headers:        env.headers(),
			ExpectedStatus: http.StatusUnprocessableEntity,
			ExpectedCode:   dto.ErrCodeInvalidState,
		},
	})
}

func TestSaleHandler_Cancel(t *testing.T) {
	env := newAPIEnv(t)
	sale := env.orderedSale(t)
	path := "/api/v1/sales/" + sale.ID.String() + "/cancel"

	testutil.RunHTTPTestCases(t, env.engine, []testutil.HTTPTestCase{
		{
			Name:           "reason required",
			Method:         http.MethodPost,
			Path:           path,
			Body:           map[string]any{},
			Headers:        env.headers(),
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
		{
			Name:           "foreign branch",
			Method:         http.MethodPost,
			Path:           path,
			Body:           map[string]any{"reason": "changed mind"},
			Headers:        env.foreignHeaders(),
			ExpectedStatus: http.StatusNotFound,
			ExpectedCode:   dto.ErrCodeNotFound,
		},
		{
			Name:           "cancels",
			Method:         http.MethodPost,
			Path:           path,
			Body:           map[string]any{"reason": "changed mind"},
			Headers:        env.headers(),
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				data := testutil.AssertSuccessResponse(t, w)
				assert.Equal(t, string(trade.SaleStatusCancelled), data["status"])
				assert.Equal(t, "changed mind", data["cancel_reason"])
			},
		},
	})
}

func TestPaymentHandler_Pay(t *testing.T) {
	env := newAPIEnv(t)
	payment := env.pendingPayment(t)
	path := "/api/v1/payments/" + payment.ID.String() + "/pay"

	testutil.RunHTTPTestCases(t, env.engine, []testutil.HTTPTestCase{
		{
			Name:           "negative value",
			Method:         http.MethodPost,
			Path:           path,
			Body:           map[string]any{"paid_value": "-1"},
			Headers:        env.headers(),
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
		{
			Name:           "pays",
			Method:         http.MethodPost,
			Path:           path,
			Headers:        env.headers(),
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				data := testutil.AssertSuccessResponse(t, w)
				assert.Equal(t, string(finance.PaymentStatusPaid), data["status"])
				assertDecimal(t, "10", data["paid_value"])
				assert.NotNil(t, data["paid_date"])
			},
		},
		{
			Name:           "already paid",
			Method:         http.MethodPost,
			Path:           path,
			Headers:        env.headers(),
			ExpectedStatus: http.StatusUnprocessableEntity,
			ExpectedCode:   dto.ErrCodeInvalidState,
		},
	})
}

func TestPaymentHandler_Cancel(t *testing.T) {
	env := newAPIEnv(t)
	payment := env.pendingPayment(t)
	path := "/api/v1/payments/" + payment.ID.String() + "/cancel"

	testutil.RunHTTPTestCases(t, env.engine, []testutil.HTTPTestCase{
		{
			Name:           "reason required",
			Method:         http.MethodPost,
			Path:           path,
			Headers:        env.headers(),
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   dto.ErrCodeValidation,
		},
		{
			Name:           "cancels",
			Method:         http.MethodPost,
			Path:           path,
			Body:           map[string]any{"reason": "duplicate"},
			Headers:        env.headers(),
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				data := testutil.AssertSuccessResponse(t, w)
				assert.Equal(t, string(finance.PaymentStatusCancelled), data["status"])
				assert.NotNil(t, data["cancel_date"])
			},
		},
	})
}

func TestPurchaseHandler_Confirm(t *testing.T) {
	env := newAPIEnv(t)
	q := env.Product(t, "Q", "30", "20", false)
	supplier := env.Supplier(t, "Acme")
	var order *trade.PurchaseOrder
	env.Store.Run(t, func(ctx context.Context, st store.Store) error {
		var err error
		if order, err = env.purchases.Create(ctx, st, env.Ctx, supplier.ID, false); err != nil {
			return err
		}
		_, err = env.purchases.AddItem(ctx, st, order, q.Sellable.ID, testutil.D("5"), testutil.D("20"))
		return err
	})
	path := "/api/v1/purchases/" + order.ID.String() + "/confirm"

	w := testutil.PerformRequest(t, env.engine, http.MethodPost, path, nil, env.headers())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := testutil.AssertSuccessResponse(t, w)
	assert.Equal(t, string(trade.PurchaseStatusConfirmed), data["status"])
	assertDecimal(t, "100", data["total"])
	assert.Equal(t, supplier.ID.String(), data["supplier_id"])

	w = testutil.PerformRequest(t, env.engine, http.MethodPost, path, nil, env.headers())
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	testutil.AssertErrorResponse(t, w, dto.ErrCodeInvalidState)
}

func TestBodyLimit(t *testing.T) {
	env := newAPIEnv(t)
	sale := env.orderedSale(t)
	big := make([]byte, 1<<17)
	for i := range big {
		big[i] = 'a'
	}

	w := testutil.PerformRequest(t, env.engine, http.MethodPost, "/api/v1/sales/"+sale.ID.String()+"/cancel",
		map[string]any{"reason": string(big)}, env.headers())
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	testutil.AssertErrorResponse(t, w, dto.ErrCodeRequestTooLarge)
}
