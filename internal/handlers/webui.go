package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"sensor-bench/internal/coordinator"
	"sensor-bench/internal/loadgen"
	"sensor-bench/internal/models"
)

// Upstream is a sibling service the dashboard checks and relays to.
type Upstream interface {
	Name() string
	BaseURL() string
	Healthy(ctx context.Context) bool
	Forward(ctx context.Context, method, path string, body json.RawMessage) (json.RawMessage, error)
}

// WebUI contains the dashboard API handlers.
type WebUI struct {
	Coord    *coordinator.Coordinator
	Producer Upstream
	Consumer Upstream

	// HealthTimeout bounds the whole /api/status fan-out.
	HealthTimeout time.Duration
}

// NewWebUI creates a WebUI with dependencies injected.
func NewWebUI(coord *coordinator.Coordinator, producer, consumer Upstream, healthTimeout time.Duration) *WebUI {
	return &WebUI{Coord: coord, Producer: producer, Consumer: consumer, HealthTimeout: healthTimeout}
}

// ServiceStatus checks both siblings concurrently.
func (h *WebUI) ServiceStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.HealthTimeout)
	defer cancel()

	res := models.HealthResponse{
		Producer: models.ServiceHealth{URL: h.Producer.BaseURL()},
		Consumer: models.ServiceHealth{URL: h.Consumer.BaseURL()},
	}

	var g errgroup.Group
	g.Go(func() error {
		res.Producer.Healthy = h.Producer.Healthy(ctx)
		return nil
	})
	g.Go(func() error {
		res.Consumer.Healthy = h.Consumer.Healthy(ctx)
		return nil
	})
	_ = g.Wait()

	res.Timestamp = time.Now().UTC()
	c.JSON(http.StatusOK, res)
}

// forward relays one call. The answer body passes through on 200; any other
// answer or a transport error becomes a 500.
func (h *WebUI) forward(c *gin.Context, up Upstream, method, path, action string, body json.RawMessage) {
	start := time.Now()

	raw, err := up.Forward(c.Request.Context(), method, path, body)
	switch {
	case errors.Is(err, coordinator.ErrUnexpectedStatus):
		respondErr(c, start, http.StatusInternalServerError, fmt.Errorf("failed to %s", action))
		return
	case err != nil:
		respondErr(c, start, http.StatusInternalServerError, fmt.Errorf("error connecting to %s: %w", up.Name(), err))
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// The handlers below relay the dashboard page's calls to one sibling.

func (h *WebUI) GenerateData(c *gin.Context) {
	h.forward(c, h.Producer, http.MethodGet, "/generate-data", "generate data", nil)
}

func (h *WebUI) SendData(c *gin.Context) {
	h.forward(c, h.Producer, http.MethodGet, "/send-data", "send data", nil)
}

// ProcessData relays a reading posted by the page to the consumer.
func (h *WebUI) ProcessData(c *gin.Context) {
	body, err := c.GetRawData()
	if err == nil && !json.Valid(body) {
		err = ErrInvalidPayload
	}
	if err != nil {
		respondErr(c, time.Now(), http.StatusBadRequest, err)
		return
	}

	h.forward(c, h.Consumer, http.MethodPost, "/process-data", "process data", body)
}

func (h *WebUI) ProcessedData(c *gin.Context) {
	h.forward(c, h.Consumer, http.MethodGet, "/get-processed-data", "get processed data", nil)
}

func (h *WebUI) StartAutomation(c *gin.Context) {
	h.forward(c, h.Producer, http.MethodGet, "/start-automation", "start automation", nil)
}

func (h *WebUI) StopAutomation(c *gin.Context) {
	h.forward(c, h.Producer, http.MethodGet, "/stop-automation", "stop automation", nil)
}

func (h *WebUI) AutomationStatus(c *gin.Context) {
	h.forward(c, h.Producer, http.MethodGet, "/automation-status", "get automation status", nil)
}

func (h *WebUI) ViewAllData(c *gin.Context) {
	h.forward(c, h.Consumer, http.MethodGet, "/view-all-data", "get data history", nil)
}

func (h *WebUI) ClearHistory(c *gin.Context) {
	h.forward(c, h.Consumer, http.MethodGet, "/clear-history", "clear history", nil)
}

// BenchmarkStart runs a benchmark: 400 on a bad body, 409 when the load
// generator rejected the run, 502 when it could not be reached.
func (h *WebUI) BenchmarkStart(c *gin.Context) {
	start := time.Now()

	cfg := loadgen.DefaultConfig()
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respondErr(c, start, http.StatusBadRequest, err)
		return
	}

	res := h.Coord.RunBenchmark(c.Request.Context(), cfg)

	switch {
	case res.Accepted:
		c.JSON(http.StatusOK, res)
	case res.ProducerError != "":
		c.JSON(http.StatusBadGateway, res)
	default:
		c.JSON(http.StatusConflict, res)
	}
}

// BenchmarkStatus merges both sides' live snapshots.
func (h *WebUI) BenchmarkStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Coord.PollStatus(c.Request.Context()))
}

// BenchmarkStop stops the run and appends it to the run log.
func (h *WebUI) BenchmarkStop(c *gin.Context) {
	c.JSON(http.StatusOK, h.Coord.StopBenchmark(c.Request.Context()))
}

// BenchmarkLogs returns the last n run records, n defaulting to 10.
func (h *WebUI) BenchmarkLogs(c *gin.Context) {
	n, err := strconv.Atoi(c.Query("n"))
	if err != nil {
		n = coordinator.DefaultLogCount
	}

	res := h.Coord.ReadLogs(n)
	if res.Error != "" {
		c.JSON(http.StatusInternalServerError, res)
		return
	}

	c.JSON(http.StatusOK, res)
}
