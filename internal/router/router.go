package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tillsync/internal/config"
	"tillsync/internal/handler"
	"tillsync/internal/infra"
	"tillsync/internal/middleware"
	"tillsync/internal/repository"
	"tillsync/internal/service"
	"tillsync/internal/sync"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB, with the sync
// scheduler shared between the checkout flow and the sync endpoints.
func New(cfg *config.Config, db *gorm.DB, cloud *infra.CloudClient, conn infra.ConnectivityObserver, cb *infra.CircuitBreaker, scheduler *sync.Scheduler) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute))

	// ── Repositories ─────────────────────────────────────────────────────────
	outboxRepo := repository.NewOutboxRepository(db)
	productRepo := repository.NewProductRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	checkoutSvc := service.NewCheckoutService(outboxRepo, scheduler)
	catalogSvc := service.NewCatalogService(productRepo, cloud, cb, conn)
	historySvc := service.NewHistoryService(outboxRepo, cloud, conn)

	// ── Handlers ─────────────────────────────────────────────────────────────
	receiptsH := handler.NewReceiptsHandler(checkoutSvc, historySvc)
	productsH := handler.NewProductsHandler(catalogSvc)
	syncH := handler.NewSyncHandler(scheduler)

	// ── Routes ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(db, conn, cb))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/products", productsH.List)
		v1.POST("/products/refresh", productsH.Refresh)

		v1.POST("/receipts", receiptsH.Issue)
		v1.GET("/receipts", receiptsH.List)

		v1.GET("/sync/status", syncH.Status)
		v1.POST("/sync/trigger", syncH.Trigger)
	}

	return r
}
