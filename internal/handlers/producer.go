package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sensor-bench/internal/config"
	"sensor-bench/internal/feed"
	"sensor-bench/internal/loadgen"
	"sensor-bench/internal/logging"
	"sensor-bench/internal/models"
	"sensor-bench/internal/sensor"
)

// ErrShuttingDown is returned when a run is requested during shutdown.
var ErrShuttingDown = errors.New("service is shutting down")

// Producer contains the producer's handlers and their dependencies.
type Producer struct {
	Gen        *sensor.Generator
	Sender     *feed.Sender
	Automation *feed.Automation
	Engine     *loadgen.Engine
	Logger     *zap.Logger

	started time.Time
}

// NewProducer creates a Producer with dependencies injected.
func NewProducer(gen *sensor.Generator, sender *feed.Sender, auto *feed.Automation, engine *loadgen.Engine, logger *zap.Logger) *Producer {
	return &Producer{
		Gen:        gen,
		Sender:     sender,
		Automation: auto,
		Engine:     engine,
		Logger:     logging.OrNop(logger),
		started:    time.Now(),
	}
}

// Status reports uptime and what is currently running.
func (h *Producer) Status(c *gin.Context) {
	c.JSON(http.StatusOK, models.ProducerStatus{
		Service:          config.ServiceProducer,
		Status:           "running",
		UptimeSeconds:    uptime(h.started),
		AutomationActive: h.Automation.Status().Running,
		BenchmarkActive:  h.Engine.Running(),
	})
}

// Generate returns one fresh reading without sending it.
func (h *Producer) Generate(c *gin.Context) {
	c.JSON(http.StatusOK, h.Gen.Next())
}

// Send generates a reading and delivers it to the consumer.
func (h *Producer) Send(c *gin.Context) {
	start := time.Now()

	sent, err := h.Sender.Send(c.Request.Context())
	if err != nil {
		h.Logger.Warn("send to consumer failed", zap.Error(err))
		respondErr(c, start, http.StatusBadGateway, err)
		return
	}

	c.JSON(http.StatusOK, models.SendResponse{Sent: sent, TotalMs: time.Since(start).Milliseconds()})
}

// StartAutomation begins periodic sending.
func (h *Producer) StartAutomation(c *gin.Context) {
	changed := h.Automation.Start()
	c.JSON(http.StatusOK, models.AutomationResponse{Changed: changed, Status: h.Automation.Status()})
}

// StopAutomation ends periodic sending.
func (h *Producer) StopAutomation(c *gin.Context) {
	changed := h.Automation.Stop()
	c.JSON(http.StatusOK, models.AutomationResponse{Changed: changed, Status: h.Automation.Status()})
}

// AutomationStatus reports the automation loop.
func (h *Producer) AutomationStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Automation.Status())
}

// BenchmarkStart launches a load generator run: 200 when started, 409 when
// a run is already active, 400 on a missing or malformed body.
func (h *Producer) BenchmarkStart(c *gin.Context) {
	start := time.Now()

	cfg := loadgen.DefaultConfig()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respondErr(c, start, http.StatusBadRequest, err)
		return
	}

	res := h.Engine.Start(cfg)

	switch {
	case res.Started:
		c.JSON(http.StatusOK, res)
	case res.Running:
		c.JSON(http.StatusConflict, res)
	default:
		respondErr(c, start, http.StatusServiceUnavailable, ErrShuttingDown)
	}
}

// BenchmarkStop requests the active run to end.
func (h *Producer) BenchmarkStop(c *gin.Context) {
	c.JSON(http.StatusOK, h.Engine.Stop())
}

// BenchmarkStatus reports the current or most recent run.
func (h *Producer) BenchmarkStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Engine.Status())
}
