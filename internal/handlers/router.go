// Package handlers exposes the storefront and admin API over gin.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/imrishuroy/bakery-orderflow/internal/admin"
	"github.com/imrishuroy/bakery-orderflow/internal/cart"
	"github.com/imrishuroy/bakery-orderflow/internal/catalog"
	"github.com/imrishuroy/bakery-orderflow/internal/idempotency"
	"github.com/imrishuroy/bakery-orderflow/internal/inbound"
	"github.com/imrishuroy/bakery-orderflow/internal/metrics"
	"github.com/imrishuroy/bakery-orderflow/internal/orders"
	"github.com/imrishuroy/bakery-orderflow/internal/validation"
)

// Login throttle defaults: a burst of five, then one attempt every 12s per IP.
const (
	DefaultLoginBurst = 5
	DefaultLoginEvery = 12 * time.Second
)

// HandlerConfig groups the dependencies of the API.
type HandlerConfig struct {
	Catalog *catalog.Service
	Cart    *cart.Engine
	Orders  *orders.Engine
	Admin   *admin.Service
	Inbound *inbound.Handler

	// Idempotency enables Idempotency-Key replay on POST /orders. Optional.
	Idempotency *idempotency.Store
	// Metrics times requests; Gatherer serves /metrics. Both optional.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	// ClientOrigins is the CORS allow-list. Empty allows any origin.
	ClientOrigins []string
	LoginLimit    rate.Limit
	LoginBurst    int
}

// NewRouter builds the gin engine serving the whole API.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Errorf("panic serving %s %s [%s]: %v", c.Request.Method, c.Request.URL.Path, requestID(c), recovered)
		validation.WriteError(c, http.StatusInternalServerError, msgInternal)
	}))
	r.Use(RequestID(), CORS(cfg.ClientOrigins))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}

	r.NoRoute(func(c *gin.Context) {
		validation.WriteError(c, http.StatusNotFound, msgRouteNotFound)
	})

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	r.GET("/health", health)
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v := validation.New()
	api := r.Group("/api")
	api.GET("/health", health)
	RegisterCatalogRoutes(api, cfg, v)
	RegisterCartRoutes(api, cfg, v)
	RegisterOrdersRoutes(api, cfg, v)
	RegisterAdminRoutes(api, cfg, v)
	RegisterWhatsAppRoutes(api, cfg)
	return r
}
