// Package httpapi is the gin transport of the entity resources.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.llib.dev/frameless/pkg/logging"
)

var discard = &logging.Logger{Out: io.Discard}

type Options struct {
	// Logger [optional]
	Logger *logging.Logger
	// Registry [optional] receives the HTTP metrics and is served on /metrics.
	//
	// default: a new prometheus.Registry
	Registry *prometheus.Registry
	// Ready [optional] reports whether the backing store can serve requests.
	// A failing check turns /readyz into 503 Service Unavailable.
	Ready func(context.Context) error
}

// NewRouter returns a gin engine with the probe and metrics endpoints.
// Resources are added with Mount.
func NewRouter(o Options) *gin.Engine {
	if o.Logger == nil {
		o.Logger = discard
	}
	if o.Registry == nil {
		o.Registry = prometheus.NewRegistry()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogging(o.Logger), requestMetrics(o.Registry))

	router.GET("/livez", status)
	router.GET("/readyz", func(c *gin.Context) {
		if o.Ready != nil {
			if err := o.Ready(c.Request.Context()); err != nil {
				o.Logger.Warn(c.Request.Context(), "readiness check failed", logging.ErrField(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		status(c)
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(o.Registry, promhttp.HandlerOpts{})))
	return router
}

func status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogging(l *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logging.ContextWith(c.Request.Context(),
			logging.Field("method", c.Request.Method),
			logging.Field("path", c.Request.URL.Path))
		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()
		l.Debug(ctx, "http request",
			logging.Field("status", c.Writer.Status()),
			logging.Field("duration", time.Since(start).String()))
	}
}

func requestMetrics(reg prometheus.Registerer) gin.HandlerFunc {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitykit",
		Name:      "http_requests_total",
		Help:      "Number of HTTP requests by route and status code.",
	}, []string{"method", "route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "entitykit",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(requests, duration)

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
