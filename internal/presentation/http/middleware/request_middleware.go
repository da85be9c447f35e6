package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/metrics"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/security"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// RequestMiddleware assigns a request id, then records the request's
// duration in metrics and on the system channel once handlers return.
func RequestMiddleware(logger *logging.ChanneledLogger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = security.GenerateULID()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set("requestId", requestID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logging.RequestIDKey{}, requestID))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		duration := time.Since(start)
		m.ObserveRequest(c.Request.Method, route, status, duration)

		log := logger.WithContext(logging.ChannelSystem, c.Request.Context())
		if status >= 500 {
			log.Error("Request failed", "method", c.Request.Method, "route", route, "status", status, "duration", duration)
			return
		}
		log.Debug("Request completed", "method", c.Request.Method, "route", route, "status", status, "duration", duration)
	}
}
