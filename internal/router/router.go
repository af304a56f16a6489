package router

import (
	"github.com/rmgimenez/php-cantina-sub001/internal/config"
	"github.com/rmgimenez/php-cantina-sub001/internal/handler"
	"github.com/rmgimenez/php-cantina-sub001/internal/infra"
	"github.com/rmgimenez/php-cantina-sub001/internal/middleware"
	"github.com/rmgimenez/php-cantina-sub001/internal/repository"
	"github.com/rmgimenez/php-cantina-sub001/internal/service"
	"github.com/rmgimenez/php-cantina-sub001/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Ledger ← Repository ← DB/Redis.
// rdb may be nil: the catalog cache and background invoice recompute are
// then disabled and rate limiting falls back to process memory.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*gin.Engine, error) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	limiter, err := middleware.NewLimiter(rdb, cfg.RateLimitPerMinute)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimit(limiter))

	// ── Infrastructure ───────────────────────────────────────────────────────
	// Interfaces stay nil (not typed-nil pointers) when Redis is absent.
	var (
		catalogCache *infra.CatalogCache
		cache        service.ProductCache
		invoiceQueue service.InvoiceScheduler
	)
	if rdb != nil {
		catalogCache = infra.NewCatalogCache(rdb, cfg.CatalogCacheTTL, infra.NewCircuitBreaker(infra.DefaultBreakerConfig()))
		cache = catalogCache
		invoiceQueue = worker.NewDispatcher(rdb)
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	accountRepo := repository.NewAccountRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	productRepo := repository.NewProductRepository(db)
	stockRepo := repository.NewStockMovementRepository(db)
	cashRepo := repository.NewCashRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	ruleRepo := repository.NewRestrictionRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	ledger := service.NewLedger(accountRepo, movementRepo, productRepo, stockRepo, service.UTCClock)

	ledgerSvc := service.NewLedgerService(ledger, accountRepo, movementRepo, loc, service.UTCClock)
	stockSvc := service.NewStockService(ledger, productRepo, stockRepo, cache)
	catalogSvc := service.NewCatalogService(productRepo, cache)
	cashSvc := service.NewCashService(cashRepo, service.UTCClock)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, saleRepo, accountRepo, loc, service.UTCClock)
	restrictionSvc := service.NewRestrictionService(ruleRepo, accountRepo, productRepo, service.UTCClock)
	saleSvc := service.NewSaleService(
		saleRepo, cashRepo, accountRepo, productRepo, ruleRepo, movementRepo,
		ledger, cache, invoiceQueue, loc, service.UTCClock,
	)

	// ── Handlers ─────────────────────────────────────────────────────────────
	retry := service.RetryPolicy{MaxRetries: cfg.MaxRetries, Backoff: cfg.RetryBackoff}

	salesH := handler.NewSalesHandler(saleSvc, retry)
	cashH := handler.NewCashHandler(cashSvc, retry)
	invoicesH := handler.NewInvoicesHandler(invoiceSvc, retry)
	restrictionsH := handler.NewRestrictionsHandler(restrictionSvc)
	accountsH := handler.NewAccountsHandler(ledgerSvc, retry)
	stockH := handler.NewStockHandler(stockSvc, retry)
	productsH := handler.NewProductsHandler(catalogSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, catalogCache))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Price check, no auth required
	r.GET("/v1/products/:id", productsH.Lookup)

	// Protected routes
	anyRole := middleware.RequireRole(middleware.RoleOperator, middleware.RoleManager, middleware.RoleAdmin)
	managers := middleware.RequireRole(middleware.RoleManager, middleware.RoleAdmin)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		sales := v1.Group("/sales")
		{
			sales.POST("", anyRole, salesH.Execute)
			sales.GET("/:id", anyRole, salesH.Get)
			sales.POST("/:id/cancel", managers, salesH.Cancel)
		}

		cash := v1.Group("/cash", anyRole)
		{
			cash.POST("/sessions", cashH.Open)
			cash.POST("/sessions/:id/close", cashH.Close)
			cash.GET("/sessions/:id", cashH.Report)
			cash.GET("/registers/:id/active", cashH.Active)
		}

		inv := v1.Group("/invoices", managers)
		{
			inv.POST("/recompute", invoicesH.Recompute)
			inv.GET("/:employee_id/:month", invoicesH.Get)
		}

		v1.GET("/restrictions/check", anyRole, restrictionsH.Check)
		v1.POST("/restrictions", managers, restrictionsH.AddRule)
		v1.DELETE("/restrictions/:id", managers, restrictionsH.DeactivateRule)

		accounts := v1.Group("/accounts")
		{
			accounts.GET("/:id/restrictions", anyRole, restrictionsH.ListRules)
			accounts.GET("/:id/balance", anyRole, accountsH.Balance)
			accounts.GET("/:id/movements", anyRole, accountsH.Movements)
			// Top-ups are taken at the counter.
			accounts.POST("/:id/credits", anyRole, accountsH.Credit)
			accounts.POST("/:id/adjustments", managers, accountsH.Adjust)
			accounts.GET("/:id/reconcile", managers, accountsH.Reconcile)
		}
		v1.POST("/movements/:id/reverse", managers, accountsH.Reverse)

		stock := v1.Group("/products/:id/stock")
		{
			stock.POST("/entries", managers, stockH.Receive)
			stock.POST("/adjustments", managers, stockH.Adjust)
			stock.GET("/movements", anyRole, stockH.Movements)
			stock.GET("/reconcile", managers, stockH.Reconcile)
		}
		v1.GET("/stock/low", anyRole, stockH.LowStock)
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, nil
}
