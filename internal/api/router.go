package api

import (
	"context"
	"net/http"
	"time"

	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flare-foundation/evm-address-indexer/internal/crawler"
	"github.com/flare-foundation/evm-address-indexer/internal/entities"
	"github.com/flare-foundation/evm-address-indexer/internal/metrics"
)

// Service is the read API of the crawler. *crawler.Crawler implements it.
type Service interface {
	GetPage(ctx context.Context, category entities.Category, address string, q crawler.PageQuery) (*crawler.PagedResult, error)
	GetRange(ctx context.Context, category entities.Category, address string, q crawler.RangeQuery) (*crawler.PagedResult, error)
}

// HealthCheck reports whether the service dependencies are reachable.
type HealthCheck func(ctx context.Context) error

func NewRouter(svc Service, health HealthCheck) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(instrument())

	r.GET("/healthz", healthz(health))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &handler{svc: svc}
	addresses := r.Group("/api/addresses/:address")
	{
		addresses.GET("/:category", h.getPage)
		addresses.GET("/:category/stored", h.getRange)
	}

	return r
}

func healthz(health HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// instrument records request counts and latencies per route template.
func instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		elapsed := time.Since(start)
		status := c.Writer.Status()

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, metrics.StatusLabel(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(elapsed.Seconds())

		logger.Debugf("%s %s %d in %v", c.Request.Method, c.Request.URL.Path, status, elapsed)
	}
}
