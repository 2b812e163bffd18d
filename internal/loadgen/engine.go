package loadgen

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"sensor-bench/internal/logging"
	"sensor-bench/internal/observability"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures an Engine.
type Options struct {
	// SinkURL receives every synthetic payload as a JSON POST.
	SinkURL string

	// SendTimeout bounds each individual send.
	SendTimeout time.Duration

	// FailureBackoff is slept after every failed send.
	FailureBackoff time.Duration

	// MaxWorkers caps Config.Workers.
	MaxWorkers int

	// MaxPayloadBytes caps Config.PayloadBytes. It must not exceed what the
	// sink accepts.
	MaxPayloadBytes int

	// Source returns the unpadded payload value for one request.
	Source func() any

	// Client overrides the default pooled HTTP client.
	Client *http.Client

	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Engine runs bounded-duration, bounded-concurrency load against one sink.
// At most one run is active at a time.
type Engine struct {
	opts    Options
	client  *http.Client
	metrics *observability.Metrics
	logger  *zap.Logger

	// ctx is cancelled by Shutdown. In-flight sends are bound to it, not to
	// Stop, so a stopped run still records the outcome of its last sends.
	ctx    context.Context
	cancel context.CancelFunc

	// supervisors joins every run still draining.
	supervisors sync.WaitGroup

	mu  sync.Mutex
	run *run

	now func() time.Time
}

type run struct {
	id      string
	config  Config
	stats   *Stats
	running atomic.Bool
	done    chan struct{}
}

// StartResult is returned by Start.
type StartResult struct {
	Started bool          `json:"started"`
	Running bool          `json:"running"`
	RunID   string        `json:"run_id,omitempty"`
	Config  *Config       `json:"config"`
	Stats   StatsSnapshot `json:"stats"`
}

// StopResult is returned by Stop.
type StopResult struct {
	Running bool          `json:"running"`
	RunID   string        `json:"run_id,omitempty"`
	Stats   StatsSnapshot `json:"stats"`
}

// Throughput is derived from successful sends over elapsed time.
type Throughput struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	BytesPerSecond    float64 `json:"bytes_per_second"`
}

// Status is a live view of the current or most recent run.
type Status struct {
	RunID          string        `json:"run_id,omitempty"`
	Running        bool          `json:"running"`
	Config         *Config       `json:"config"`
	Stats          StatsSnapshot `json:"stats"`
	ElapsedSeconds *float64      `json:"elapsed_seconds"`
	Throughput     *Throughput   `json:"throughput"`
}

// NewEngine creates an Engine. parent bounds the lifetime of every run.
func NewEngine(parent context.Context, opts Options) *Engine {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 3 * time.Second
	}
	if opts.FailureBackoff < 0 {
		opts.FailureBackoff = 0
	}
	if opts.Source == nil {
		opts.Source = func() any { return struct{}{} }
	}

	client := opts.Client
	if client == nil {
		client = newClient(opts.MaxWorkers)
	}

	logger := logging.OrNop(opts.Logger)

	metrics := opts.Metrics
	if metrics == nil {
		var err error
		if metrics, err = observability.NewMetrics(); err != nil {
			logger.Warn("benchmark metrics unavailable, recording nothing", zap.Error(err))
			metrics = observability.NewNopMetrics()
		}
	}

	ctx, cancel := context.WithCancel(parent)

	return &Engine{
		opts:    opts,
		client:  client,
		metrics: metrics,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// newClient pools enough idle connections for every worker to keep one.
func newClient(maxWorkers int) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = max(maxWorkers, 100)
	t.MaxIdleConnsPerHost = max(maxWorkers, 100)

	return &http.Client{Transport: t}
}

// Start launches a run unless one is already active, in which case the
// active run is reported unchanged and Started is false.
func (e *Engine) Start(cfg Config) StartResult {
	cfg = cfg.Clamp(Limits{Workers: e.opts.MaxWorkers, PayloadBytes: e.opts.MaxPayloadBytes})

	e.mu.Lock()
	defer e.mu.Unlock()

	if r := e.run; r != nil && r.running.Load() {
		rc := r.config

		return StartResult{Started: false, Running: true, RunID: r.id, Config: &rc, Stats: r.stats.Snapshot()}
	}

	if e.ctx.Err() != nil {
		return StartResult{Started: false, Running: false}
	}

	startedAt := e.now().UTC()
	r := &run{
		id:     uuid.NewString(),
		config: cfg,
		stats:  newStats(startedAt),
		done:   make(chan struct{}),
	}
	r.running.Store(true)
	e.run = r

	end := startedAt.Add(time.Duration(cfg.DurationSeconds) * time.Second)

	var workers sync.WaitGroup
	workers.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go e.work(r, end, &workers)
	}

	e.supervisors.Add(1)
	go e.supervise(r, &workers)

	e.logger.Info("benchmark run started",
		zap.String("run_id", r.id),
		zap.Int("duration_seconds", cfg.DurationSeconds),
		zap.Int("payload_bytes", cfg.PayloadBytes),
		zap.Int("workers", cfg.Workers),
		zap.String("sink", e.opts.SinkURL),
	)

	rc := r.config

	return StartResult{Started: true, Running: true, RunID: r.id, Config: &rc, Stats: r.stats.Snapshot()}
}

// supervise waits for every worker, then stamps the end time before clearing
// the running flag so a non-running status always carries final counters.
func (e *Engine) supervise(r *run, workers *sync.WaitGroup) {
	defer e.supervisors.Done()

	workers.Wait()

	r.stats.finish(e.now())
	r.running.Store(false)
	close(r.done)

	snap := r.stats.Snapshot()
	e.logger.Info("benchmark run finished",
		zap.String("run_id", r.id),
		zap.Int64("attempted", snap.Attempted),
		zap.Int64("succeeded", snap.Succeeded),
		zap.Int64("failed", snap.Failed),
		zap.Int64("bytes_sent", snap.BytesSent),
	)
}

func (e *Engine) work(r *run, end time.Time, workers *sync.WaitGroup) {
	defer workers.Done()

	e.metrics.WorkerStarted()
	defer e.metrics.WorkerStopped()

	for r.running.Load() && e.ctx.Err() == nil && e.now().Before(end) {
		body, err := e.payload(r.config.PayloadBytes)

		r.stats.attempt()

		if err != nil {
			r.stats.failure()
			e.logger.Debug("payload encoding failed", zap.String("run_id", r.id), zap.Error(err))
			e.backoff()

			continue
		}

		start := time.Now()
		ok := e.send(body)
		e.metrics.RecordSend(e.ctx, ok, len(body), float64(time.Since(start).Microseconds())/1000)

		if ok {
			r.stats.success(len(body))

			continue
		}

		r.stats.failure()
		e.backoff()
	}
}

func (e *Engine) payload(target int) ([]byte, error) {
	body, err := codec.Marshal(e.opts.Source())
	if err != nil {
		return nil, err
	}

	return Pad(body, target), nil
}

// send posts one payload and reports whether the sink answered 2xx.
func (e *Engine) send(body []byte) bool {
	ctx, cancel := context.WithTimeout(e.ctx, e.opts.SendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.SinkURL, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (e *Engine) backoff() {
	if e.opts.FailureBackoff == 0 {
		return
	}

	t := time.NewTimer(e.opts.FailureBackoff)
	defer t.Stop()

	select {
	case <-t.C:
	case <-e.ctx.Done():
	}
}

// Stop asks the active run to end. It returns without waiting for workers to
// drain and is a no-op when nothing is running.
func (e *Engine) Stop() StopResult {
	e.mu.Lock()
	r := e.run
	e.mu.Unlock()

	if r == nil {
		return StopResult{Running: false}
	}

	if r.running.Load() {
		r.running.Store(false)
		e.logger.Info("benchmark run stop requested", zap.String("run_id", r.id))
	}

	return StopResult{Running: false, RunID: r.id, Stats: r.stats.Snapshot()}
}

// Running reports whether a run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	r := e.run
	e.mu.Unlock()

	return r != nil && r.running.Load()
}

// Status reports the current or most recent run without blocking workers.
func (e *Engine) Status() Status {
	e.mu.Lock()
	r := e.run
	e.mu.Unlock()

	if r == nil {
		return Status{}
	}

	rc := r.config
	st := Status{
		RunID:   r.id,
		Running: r.running.Load(),
		Config:  &rc,
		Stats:   r.stats.Snapshot(),
	}

	until := e.now()
	if st.Stats.EndedAt != nil {
		until = *st.Stats.EndedAt
	}

	elapsed := until.Sub(*st.Stats.StartedAt).Seconds()
	if elapsed <= 0 {
		return st
	}

	st.ElapsedSeconds = &elapsed
	st.Throughput = &Throughput{
		RequestsPerSecond: float64(st.Stats.Succeeded) / elapsed,
		BytesPerSecond:    float64(st.Stats.BytesSent) / elapsed,
	}

	return st
}

// Wait blocks until the current run has drained or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	r := e.run
	e.mu.Unlock()

	if r == nil {
		return nil
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the active run, aborts in-flight sends and waits for every
// supervisor to finish.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.Stop()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.supervisors.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
