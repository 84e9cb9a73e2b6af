package middleware

import (
	"time"

	"github.com/SscSPs/currency_exchanger/internal/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware records a request counter and latency histogram per route.
// Unmatched routes are grouped under "unmatched" to keep label cardinality bounded.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "/metrics" {
			return
		}
		if path == "" {
			path = "unmatched"
		}
		m.ObserveHTTPRequest(path, c.Request.Method, c.Writer.Status(), time.Since(start).Seconds())
	}
}
