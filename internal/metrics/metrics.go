// Package metrics counts storefront events for Prometheus and, when
// configured, CloudWatch.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "bakery"

// Collector is a prometheus.Collector for order, notification and HTTP metrics.
type Collector struct {
	ordersPlaced    prometheus.Counter
	statusChanges   *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		ordersPlaced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "orders_placed_total",
				Help:      "The number of orders placed.",
			},
		),
		statusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "order_status_changes_total",
				Help:      "The number of order status changes, by new status.",
			}, []string{"status"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "notifications_total",
				Help:      "The number of customer notifications, by outcome.",
			}, []string{"outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "The time taken to serve HTTP requests.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			}, []string{"method", "route", "code"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.ordersPlaced.Describe(ch)
	c.statusChanges.Describe(ch)
	c.notifications.Describe(ch)
	c.requestDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.ordersPlaced.Collect(ch)
	c.statusChanges.Collect(ch)
	c.notifications.Collect(ch)
	c.requestDuration.Collect(ch)
}

// OrderPlaced counts a placed order.
func (c *Collector) OrderPlaced() {
	c.ordersPlaced.Inc()
}

// StatusChanged counts a status change to status.
func (c *Collector) StatusChanged(status string) {
	c.statusChanges.WithLabelValues(status).Inc()
}

// NotificationResult counts a delivery outcome.
func (c *Collector) NotificationResult(outcome string) {
	c.notifications.WithLabelValues(outcome).Inc()
}

// Middleware times each request against its route template, so
// /cart/abc and /cart/xyz share a series.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		c.requestDuration.
			WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// NewRegistry returns a registry holding c and the Go and process collectors.
func NewRegistry(c *Collector) (*prometheus.Registry, error) {
	r := prometheus.NewRegistry()
	if err := r.Register(prometheus.NewGoCollector()); err != nil {
		return nil, errors.Trace(err)
	}
	if err := r.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		return nil, errors.Trace(err)
	}
	if err := r.Register(c); err != nil {
		return nil, errors.Annotate(err, "registering storefront metrics")
	}
	return r, nil
}
