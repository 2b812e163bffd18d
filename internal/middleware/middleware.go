package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"sensor-bench/internal/logging"
	"sensor-bench/internal/observability"
)

// Instrument wraps a handler with basic observability:
// - in-flight tracking
// - request counter
// - latency histogram
func Instrument(m *observability.Metrics, endpoint string, next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		m.IncInflight(endpoint)
		defer m.DecInflight(endpoint)

		// No-op span when traces are disabled.
		tr := otel.Tracer("sensor-bench/http")
		ctx, span := tr.Start(ctx, "HTTP "+endpoint)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		next(c)
		elapsedMs := float64(time.Since(start).Microseconds()) / 1000

		attrs := metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("method", c.Request.Method),
			attribute.String("status", strconv.Itoa(c.Writer.Status())),
		)

		m.HTTPRequestsTotal.Add(ctx, 1, attrs)
		m.HTTPRequestDuration.Record(ctx, elapsedMs, attrs)
	}
}

// Logger logs every request at debug level.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if ce := logger.Check(zap.DebugLevel, "request"); ce != nil {
			ce.Write(
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("client_ip", c.ClientIP()),
			)
		}
	}
}
