// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-foodcart-dispatch/internal/config"
	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
	"github.com/tbourn/go-foodcart-dispatch/internal/events"
	"github.com/tbourn/go-foodcart-dispatch/internal/geocoder"
	"github.com/tbourn/go-foodcart-dispatch/internal/http/handlers"
	"github.com/tbourn/go-foodcart-dispatch/internal/http/middleware"
	"github.com/tbourn/go-foodcart-dispatch/internal/repo"
	"github.com/tbourn/go-foodcart-dispatch/internal/services"
)

// repoShim adapts the repository free functions to the repository interfaces
// expected by the services (CatalogRepo, OrderRepo, MenuRepo, ProductLookup).
// This keeps services decoupled from the concrete repo package while reusing
// existing functions.
type repoShim struct{}

func (repoShim) ListRestaurants(ctx context.Context, db *gorm.DB) ([]domain.Restaurant, error) {
	return repo.ListRestaurants(ctx, db)
}

func (repoShim) GetRestaurant(ctx context.Context, db *gorm.DB, id uint) (*domain.Restaurant, error) {
	return repo.GetRestaurant(ctx, db, id)
}

func (repoShim) RestaurantsByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Restaurant, error) {
	return repo.RestaurantsByIDs(ctx, db, ids)
}

func (repoShim) ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	return repo.ListProducts(ctx, db)
}

func (repoShim) ListAvailableProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	return repo.ListAvailableProducts(ctx, db)
}

func (repoShim) ProductsByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Product, error) {
	return repo.ProductsByIDs(ctx, db, ids)
}

func (repoShim) ListMenuItems(ctx context.Context, db *gorm.DB) ([]domain.MenuItem, error) {
	return repo.ListMenuItems(ctx, db)
}

func (repoShim) MenuItemsForProducts(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.MenuItem, error) {
	return repo.MenuItemsForProducts(ctx, db, ids)
}

func (repoShim) UpsertMenuItem(ctx context.Context, db *gorm.DB, rid, pid uint, available bool) (*domain.MenuItem, error) {
	return repo.UpsertMenuItem(ctx, db, rid, pid, available)
}

func (repoShim) CatalogStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.CatalogStats(ctx, db)
}

func (repoShim) CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	return repo.CreateOrder(ctx, db, o)
}

func (repoShim) GetOrder(ctx context.Context, db *gorm.DB, id uint) (*domain.Order, error) {
	return repo.GetOrder(ctx, db, id)
}

func (repoShim) CountActiveOrders(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountActiveOrders(ctx, db)
}

func (repoShim) ListActiveOrdersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Order, error) {
	return repo.ListActiveOrdersPage(ctx, db, offset, limit)
}

func (repoShim) OrderTotals(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]decimal.Decimal, error) {
	return repo.OrderTotals(ctx, db, ids)
}

func (repoShim) UpdateOrderIf(ctx context.Context, db *gorm.DB, id uint, from domain.OrderStatus, updates map[string]any) error {
	return repo.UpdateOrderIf(ctx, db, id, from, updates)
}

func (repoShim) DispatcherStats(ctx context.Context, db *gorm.DB) (services.DispatcherSnapshot, error) {
	return repo.DispatcherStats(ctx, db)
}

// idemStore implements handlers.IdempotencyStore on the idempotency table.
type idemStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func (s idemStore) Lookup(ctx context.Context, scope, key string, now time.Time) (*domain.Idempotency, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s idemStore) Save(ctx context.Context, scope, key string, orderID uint, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, scope, key, orderID, status, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent retry stored the same key first.
		return nil
	}
	return err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. ContextLogger: request-scoped logger in the request context
//  4. AccessLog: structured access logs with customer data masked
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per client IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, gc geocoder.Geocoder, pub events.Publisher, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	if pub == nil {
		pub = events.Noop{}
	}

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Logger for services and handlers
	r.Use(middleware.ContextLogger())

	// 4) One access line per request, customer data masked
	r.Use(middleware.AccessLog(middleware.AccessLogOptions{}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	idem := idemStore{db: db, ttl: cfg.IdempotencyTTL}
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
			rec, err := idem.Lookup(ctx, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return rec.Live(now), nil
		},
	))

	// 9) Token buckets per client IP; writes cost more
	rl := middleware.NewRateLimiter(middleware.RateLimitOptions{
		RPS:       cfg.RateRPS,
		Burst:     cfg.RateBurst,
		WriteCost: cfg.RateWriteCost,
		Key:       middleware.KeyByClientIP(),
	})
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS).
	// Order data carries names and phone numbers and must not be cached;
	// catalog listings are revalidated against their ETags.
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:         cfg.Security.EnableHSTS,
		HSTSMaxAge:         cfg.Security.HSTSMaxAge,
		EnablePolicy:       true,
		NoStorePrefixes:    []string{joinPath(apiBase, "/orders"), joinPath(apiBase, "/dispatcher")},
		RevalidatePrefixes: []string{
			joinPath(apiBase, "/products"),
			joinPath(apiBase, "/restaurants"),
		},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/geocoder/publisher
	cache := &services.CoordinateCache{
		Store:            repo.CoordinateStore{DB: db},
		Geocoder:         gc,
		RetryFailedAfter: cfg.Geocoder.RetryFailedAfter,
	}
	coverage := &services.CoverageResolver{DB: db, Repo: repoShim{}}
	orderSvc := &services.OrderService{
		DB:          db,
		Repo:        repoShim{},
		Validator:   &services.OrderValidator{DB: db, Products: repoShim{}},
		Coverage:    coverage,
		Ranking:     &services.RankingService{Coverage: coverage, Coordinates: cache, Workers: cfg.RankingWorkers},
		Coordinates: cache,
		Events:      pub,
	}
	catalogSvc := &services.CatalogService{DB: db, Repo: repoShim{}}
	h := handlers.New(orderSvc, catalogSvc, cache, idem)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Orders
		api.POST("/orders", h.CreateOrder)
		api.GET("/orders/:id", h.GetOrder)
		api.POST("/orders/:id/restaurant", h.AssignRestaurant)
		api.POST("/orders/:id/status", h.UpdateOrderStatus)

		// Dispatcher and catalog listings can be large.
		lists := api.Group("", gzip.Gzip(gzip.DefaultCompression))
		lists.GET("/dispatcher/orders", h.ListDispatcherOrders)
		lists.GET("/products", h.ListProducts)
		lists.GET("/products/availability", h.ProductAvailability)
		lists.GET("/restaurants", h.ListRestaurants)

		// Menu
		api.PUT("/restaurants/:id/menu/:product_id", h.SetMenuAvailability)

		// Coordinates
		api.POST("/coordinates/refresh", h.RefreshCoordinates)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
