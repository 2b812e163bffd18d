package routers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"sensor-bench/internal/config"
	"sensor-bench/internal/handlers"
	"sensor-bench/internal/middleware"
	"sensor-bench/internal/observability"
)

// newEngine is the base router shared by all three services.
func newEngine(service string, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware("sensor-bench-"+service), middleware.Logger(logger))
	r.GET("/health", handlers.Health)

	return r
}

// NewProducerRouter registers the producer endpoints.
func NewProducerRouter(m *observability.Metrics, h *handlers.Producer, logger *zap.Logger) *gin.Engine {
	r := newEngine(config.ServiceProducer, logger)

	r.GET("/status", middleware.Instrument(m, "status", h.Status))
	r.GET("/generate-data", middleware.Instrument(m, "generate-data", h.Generate))
	r.GET("/send-data", middleware.Instrument(m, "send-data", h.Send))
	r.GET("/start-automation", middleware.Instrument(m, "start-automation", h.StartAutomation))
	r.GET("/stop-automation", middleware.Instrument(m, "stop-automation", h.StopAutomation))
	r.GET("/automation-status", middleware.Instrument(m, "automation-status", h.AutomationStatus))

	b := r.Group("/benchmark")
	b.POST("/start", middleware.Instrument(m, "benchmark-start", h.BenchmarkStart))
	b.GET("/stop", middleware.Instrument(m, "benchmark-stop", h.BenchmarkStop))
	b.POST("/stop", middleware.Instrument(m, "benchmark-stop", h.BenchmarkStop))
	b.GET("/status", middleware.Instrument(m, "benchmark-status", h.BenchmarkStatus))

	return r
}

// NewConsumerRouter registers the consumer endpoints. reg backs /metrics.
func NewConsumerRouter(m *observability.Metrics, h *handlers.Consumer, reg *prometheus.Registry, logger *zap.Logger) *gin.Engine {
	r := newEngine(config.ServiceConsumer, logger)

	r.GET("/status", middleware.Instrument(m, "status", h.Status))
	r.POST("/process-data", middleware.Instrument(m, "process-data", h.Process))
	r.GET("/get-processed-data", middleware.Instrument(m, "get-processed-data", h.Latest))
	r.GET("/view-all-data", middleware.Instrument(m, "view-all-data", h.All))
	r.GET("/clear-history", middleware.Instrument(m, "clear-history", h.Clear))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	b := r.Group("/benchmark")
	b.POST("/ingest", middleware.Instrument(m, "benchmark-ingest", h.Ingest))
	b.GET("/enable", middleware.Instrument(m, "benchmark-enable", h.Enable))
	b.POST("/enable", middleware.Instrument(m, "benchmark-enable", h.Enable))
	b.GET("/disable", middleware.Instrument(m, "benchmark-disable", h.Disable))
	b.POST("/disable", middleware.Instrument(m, "benchmark-disable", h.Disable))
	b.GET("/stats", middleware.Instrument(m, "benchmark-stats", h.Stats))

	return r
}

// NewWebUIRouter registers the dashboard API.
func NewWebUIRouter(m *observability.Metrics, h *handlers.WebUI, logger *zap.Logger) *gin.Engine {
	r := newEngine(config.ServiceWebUI, logger)

	api := r.Group("/api")
	api.GET("/status", middleware.Instrument(m, "api-status", h.ServiceStatus))

	api.GET("/generate-data", middleware.Instrument(m, "api-generate-data", h.GenerateData))
	api.GET("/send-data", middleware.Instrument(m, "api-send-data", h.SendData))
	api.POST("/process-data", middleware.Instrument(m, "api-process-data", h.ProcessData))
	api.GET("/get-processed-data", middleware.Instrument(m, "api-get-processed-data", h.ProcessedData))
	api.GET("/start-automation", middleware.Instrument(m, "api-start-automation", h.StartAutomation))
	api.GET("/stop-automation", middleware.Instrument(m, "api-stop-automation", h.StopAutomation))
	api.GET("/automation-status", middleware.Instrument(m, "api-automation-status", h.AutomationStatus))
	api.GET("/view-all-data", middleware.Instrument(m, "api-view-all-data", h.ViewAllData))
	api.GET("/clear-history", middleware.Instrument(m, "api-clear-history", h.ClearHistory))

	api.POST("/benchmark/start", middleware.Instrument(m, "api-benchmark-start", h.BenchmarkStart))
	api.GET("/benchmark/status", middleware.Instrument(m, "api-benchmark-status", h.BenchmarkStatus))
	api.POST("/benchmark/stop", middleware.Instrument(m, "api-benchmark-stop", h.BenchmarkStop))
	api.GET("/benchmark/logs", middleware.Instrument(m, "api-benchmark-logs", h.BenchmarkLogs))

	return r
}
