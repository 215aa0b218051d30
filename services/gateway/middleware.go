package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/matheusmosca/order-saga/pkg/logging"
	"github.com/matheusmosca/order-saga/pkg/tracing"
)

// TraceMiddleware takes the trace id from X-Trace-Id or generates one, stores it in
// the request context and echoes it back.
func TraceMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(tracing.HeaderTraceID)
		if traceID == "" {
			traceID = tracing.NewTraceID()
		}
		ctx := tracing.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(tracing.HeaderTraceID, traceID)

		log := logging.FromContext(ctx, logger).With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		start := time.Now()
		log.Info("➡️ Request started")

		c.Next()

		log.Info("✅ Request finished",
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
