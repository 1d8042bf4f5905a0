package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	financeapp "github.com/erp/retail/internal/application/finance"
	inventoryapp "github.com/erp/retail/internal/application/inventory"
	tradeapp "github.com/erp/retail/internal/application/trade"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/erp/retail/internal/infrastructure/cache"
	"github.com/erp/retail/internal/infrastructure/config"
	"github.com/erp/retail/internal/infrastructure/event"
	"github.com/erp/retail/internal/infrastructure/logger"
	"github.com/erp/retail/internal/infrastructure/persistence"
	"github.com/erp/retail/internal/infrastructure/storage"
	"github.com/erp/retail/internal/interfaces/http/handler"
	"github.com/erp/retail/internal/interfaces/http/middleware"
	"github.com/erp/retail/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		Service:     cfg.App.Name,
		Environment: cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting retail server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	params, err := cfg.ParamSnapshot()
	if err != nil {
		log.Fatal("Invalid business parameters", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database, &cfg.Log, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	ctx := context.Background()
	attachments, err := storage.New(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize attachment storage", zap.Error(err))
	}

	locker, err := cache.NewStationLockerFactory(cfg.Redis, cache.WithLogger(log)).Create()
	if err != nil {
		log.Fatal("Failed to initialize station locks", zap.Error(err))
	}
	defer func() {
		if err := locker.Close(); err != nil {
			log.Error("Error closing station locker", zap.Error(err))
		}
	}()

	// Events
	bus := event.NewInMemoryEventBus(log)
	stockAlerts := inventoryapp.NewStockBelowMinimumHandler(log)
	bus.Subscribe(stockAlerts, stockAlerts.EventTypes()...)
	event.On(bus, trade.EventTypeSaleStatusChanged, func(ctx context.Context, e *trade.SaleStatusChangedEvent) error {
		logger.FromContext(ctx).Info("sale status changed",
			zap.String("sale_id", e.SaleID.String()),
			zap.String("old_status", string(e.OldStatus)),
			zap.String("new_status", string(e.NewStatus)),
		)
		return nil
	})

	// Application services
	payments := financeapp.NewPaymentService(attachments, log)
	methods := financeapp.NewMethodService(log)
	tills := financeapp.NewTillService(payments, methods, locker, log)
	tills.SetLockTTL(cfg.Till.LockTTL)
	groups := financeapp.NewGroupService(payments, tills, log)
	ledger := inventoryapp.NewStockLedger(log).WithPublisher(bus)
	purchases := tradeapp.NewPurchaseService(groups, methods, payments, log)
	sales := tradeapp.NewSaleService(groups, methods, payments, ledger, tradeapp.NewCommissionService(log), log)
	sales.SetEventPublisher(bus)

	scope := db.Scope()

	// Setup Gin
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))

	router.NewRouter(engine,
		router.WithMiddleware(middleware.BodyLimit(cfg.HTTP.MaxBodyBytes)),
		router.WithHealthCheck("database", db.Ping),
		router.WithHealthCheck("storage", attachments.Check),
	).RegisterAll(router.Handlers{
		Stock:    handler.NewStockHandler(scope, ledger),
		Till:     handler.NewTillHandler(scope, tills),
		Sale:     handler.NewSaleHandler(scope, sales),
		Payment:  handler.NewPaymentHandler(scope, payments),
		Purchase: handler.NewPurchaseHandler(scope, purchases),
	}, middleware.OperatorContext(middleware.OperatorConfig{Params: params})).Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}
