package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"sensor-bench/internal/config"
	"sensor-bench/internal/logging"
	"sensor-bench/internal/models"
	"sensor-bench/internal/observability"
	"sensor-bench/internal/sensor"
	"sensor-bench/internal/target"
)

var (
	ErrNoData          = errors.New("no processed data yet")
	ErrInvalidPayload  = errors.New("payload is not valid JSON")
	ErrPayloadTooLarge = errors.New("payload exceeds ingest limit")
)

// Consumer contains the consumer's handlers and their dependencies.
type Consumer struct {
	History  *sensor.History
	Counters *target.Counters
	M        *observability.Metrics
	Logger   *zap.Logger

	// MaxIngestBytes bounds a single benchmark payload.
	MaxIngestBytes int

	started time.Time
}

// NewConsumer creates a Consumer with dependencies injected.
func NewConsumer(history *sensor.History, counters *target.Counters, m *observability.Metrics, logger *zap.Logger) *Consumer {
	return &Consumer{
		History:  history,
		Counters: counters,
		M:        m,
		Logger:   logging.OrNop(logger),

		MaxIngestBytes: config.MaxIngestBytes,
		started:        time.Now(),
	}
}

// Status reports uptime, history size and whether counters are enabled.
func (h *Consumer) Status(c *gin.Context) {
	c.JSON(http.StatusOK, models.ConsumerStatus{
		Service:          config.ServiceConsumer,
		Status:           "running",
		UptimeSeconds:    uptime(h.started),
		HistorySize:      h.History.Len(),
		BenchmarkEnabled: h.Counters.Enabled(),
	})
}

// Process analyzes one reading and stores it.
func (h *Consumer) Process(c *gin.Context) {
	start := time.Now()

	var r sensor.Reading
	if err := c.ShouldBindJSON(&r); err != nil {
		respondErr(c, start, http.StatusBadRequest, err)
		return
	}

	p := sensor.Processed{Reading: r, Analysis: sensor.Analyze(r)}
	h.History.Add(p)

	if p.Analysis.Status != "ok" {
		h.Logger.Info("sensor alert",
			zap.String("sensor_id", r.SensorID),
			zap.String("location", r.Location),
			zap.String("temperature", p.Analysis.Temperature),
			zap.String("humidity", p.Analysis.Humidity),
			zap.String("pressure", p.Analysis.Pressure),
		)
	}

	c.JSON(http.StatusOK, p)
}

// Latest returns the newest processed entry.
func (h *Consumer) Latest(c *gin.Context) {
	p, ok := h.History.Latest()
	if !ok {
		respondErr(c, time.Now(), http.StatusNotFound, ErrNoData)
		return
	}

	c.JSON(http.StatusOK, p)
}

// All returns the full history.
func (h *Consumer) All(c *gin.Context) {
	data := h.History.All()
	c.JSON(http.StatusOK, models.HistoryResponse{Count: len(data), Data: data})
}

// Clear empties the history.
func (h *Consumer) Clear(c *gin.Context) {
	c.JSON(http.StatusOK, models.ClearResponse{Cleared: h.History.Clear()})
}

// Ingest is the benchmark sink. The body is only checked for being JSON.
func (h *Consumer) Ingest(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(h.MaxIngestBytes)+1))
	if err != nil {
		h.Counters.Record(len(body), false)
		respondErr(c, start, http.StatusBadRequest, err)
		return
	}

	if len(body) > h.MaxIngestBytes {
		h.Counters.Record(len(body), false)
		respondErr(c, start, http.StatusRequestEntityTooLarge, ErrPayloadTooLarge)
		return
	}

	ok := json.Valid(body)
	counted := h.Counters.Record(len(body), ok)

	if counted {
		outcome := observability.OutcomeSuccess
		if !ok {
			outcome = observability.OutcomeFailure
		}
		h.M.TargetReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}

	if !ok {
		respondErr(c, start, http.StatusBadRequest, ErrInvalidPayload)
		return
	}

	c.JSON(http.StatusOK, models.IngestResponse{Counted: counted})
}

// Enable resets and starts the target counters.
func (h *Consumer) Enable(c *gin.Context) {
	s := h.Counters.Enable()
	h.Logger.Info("benchmark counters enabled")
	c.JSON(http.StatusOK, models.CountersResponse{Stats: s})
}

// Disable stops the target counters and keeps their values.
func (h *Consumer) Disable(c *gin.Context) {
	s := h.Counters.Disable()
	h.Logger.Info("benchmark counters disabled", zap.Int64("received", s.Received), zap.Int64("bytes_received", s.BytesReceived))
	c.JSON(http.StatusOK, models.CountersResponse{Stats: s})
}

// Stats returns the counter snapshot.
func (h *Consumer) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Counters.Stats())
}
