package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sensor-bench/internal/loadgen"
	"sensor-bench/internal/logging"
	"sensor-bench/internal/runlog"
)

// LoadGenerator is the coordinator's view of the producer.
type LoadGenerator interface {
	Start(ctx context.Context, cfg loadgen.Config) (accepted bool, snapshot json.RawMessage, err error)
	Stop(ctx context.Context) (json.RawMessage, error)
	Status(ctx context.Context) (json.RawMessage, error)
}

// Target is the coordinator's view of the consumer counters.
type Target interface {
	Enable(ctx context.Context) (json.RawMessage, error)
	Disable(ctx context.Context) (json.RawMessage, error)
	Stats(ctx context.Context) (json.RawMessage, error)
}

// CallOutcome classifies a best-effort call to a collaborator.
type CallOutcome string

const (
	CallNotAttempted CallOutcome = "not_attempted"
	CallOK           CallOutcome = "ok"
	// CallFailed means the call failed and the benchmark carried on without it.
	CallFailed CallOutcome = "failed"
)

// CallResult records the outcome of a best-effort call.
type CallResult struct {
	Outcome CallOutcome `json:"outcome"`
	Error   string      `json:"error,omitempty"`
	At      *time.Time  `json:"at,omitempty"`
}

// StartResult is returned by RunBenchmark.
type StartResult struct {
	Accepted bool `json:"accepted"`

	// ProducerError is set when the load generator could not be reached.
	ProducerError string `json:"producer_error,omitempty"`

	Producer     json.RawMessage `json:"producer"`
	Consumer     json.RawMessage `json:"consumer"`
	TargetEnable CallResult      `json:"target_enable"`
	Timestamp    time.Time       `json:"timestamp"`
}

// StatusResult is returned by PollStatus.
type StatusResult struct {
	Producer      json.RawMessage `json:"producer"`
	Consumer      json.RawMessage `json:"consumer"`
	TargetEnable  CallResult      `json:"target_enable"`
	TargetDisable CallResult      `json:"target_disable"`
	Timestamp     time.Time       `json:"timestamp"`
}

// StopResult is returned by StopBenchmark.
type StopResult struct {
	Producer      json.RawMessage `json:"producer"`
	Consumer      json.RawMessage `json:"consumer"`
	TargetDisable CallResult      `json:"target_disable"`
	Logged        bool            `json:"logged"`
	LogError      string          `json:"log_error,omitempty"`
	LogPath       string          `json:"log_path"`
	Timestamp     time.Time       `json:"timestamp"`
}

// LogsResult is returned by ReadLogs.
type LogsResult struct {
	Logs  []runlog.Record `json:"logs"`
	Path  string          `json:"path"`
	Error string          `json:"error,omitempty"`
}

// DefaultLogCount is used when ReadLogs is asked for n <= 0.
const DefaultLogCount = 10

// Options configures a Coordinator.
type Options struct {
	// DrainTimeout bounds how long StopBenchmark waits for the load
	// generator to report a drained run before taking its final snapshot.
	DrainTimeout time.Duration

	// DrainPoll is the status polling interval while draining.
	DrainPoll time.Duration

	Logger *zap.Logger
}

// Coordinator sequences a benchmark across the load generator and the target
// and persists one record per stopped run.
type Coordinator struct {
	lg     LoadGenerator
	target Target
	log    *runlog.Log
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	lastEnable  CallResult
	lastDisable CallResult
}

// New creates a Coordinator.
func New(lg LoadGenerator, target Target, log *runlog.Log, opts Options) *Coordinator {
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 6 * time.Second
	}
	if opts.DrainPoll <= 0 {
		opts.DrainPoll = 100 * time.Millisecond
	}

	return &Coordinator{
		lg:          lg,
		target:      target,
		log:         log,
		opts:        opts,
		logger:      logging.OrNop(opts.Logger),
		now:         time.Now,
		lastEnable:  CallResult{Outcome: CallNotAttempted},
		lastDisable: CallResult{Outcome: CallNotAttempted},
	}
}

// LogPath returns the run log location.
func (c *Coordinator) LogPath() string { return c.log.Path() }

// RunBenchmark enables target counting, then starts the load generator.
// A target failure is recorded and the run proceeds without it. When the
// load generator already has an active run the target is left untouched.
func (c *Coordinator) RunBenchmark(ctx context.Context, cfg loadgen.Config) StartResult {
	res := StartResult{TargetEnable: CallResult{Outcome: CallNotAttempted}}

	if raw, err := c.lg.Status(ctx); err == nil && decodeRun(raw).Running {
		c.logger.Info("benchmark start rejected, load generator busy")

		res.Producer = raw
		res.Consumer = c.fetch(ctx, "target", c.target.Stats)
		res.Timestamp = c.now().UTC()

		return res
	}

	_, err := c.target.Enable(ctx)
	res.TargetEnable = c.callResult(err)
	c.mu.Lock()
	c.lastEnable = res.TargetEnable
	c.lastDisable = CallResult{Outcome: CallNotAttempted}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("target enable failed, continuing without target counters", zap.Error(err))
	}

	accepted, raw, err := c.lg.Start(ctx, cfg)
	if err != nil {
		c.logger.Error("load generator start failed", zap.Error(err))
		raw = placeholder(err)
		res.ProducerError = err.Error()

		if res.TargetEnable.Outcome == CallOK {
			c.disableAfterFailedStart(ctx)
		}
	}

	res.Accepted = accepted
	res.Producer = raw
	res.Consumer = c.fetch(ctx, "target", c.target.Stats)
	res.Timestamp = c.now().UTC()

	c.logger.Info("benchmark start requested",
		zap.Bool("accepted", accepted),
		zap.Int("duration_seconds", cfg.DurationSeconds),
		zap.Int("payload_bytes", cfg.PayloadBytes),
		zap.Int("workers", cfg.Workers),
		zap.String("target_enable", string(res.TargetEnable.Outcome)),
	)

	return res
}

// disableAfterFailedStart turns the target counters back off when no run
// was started. The outcome shows up as target_disable in PollStatus.
func (c *Coordinator) disableAfterFailedStart(ctx context.Context) {
	_, err := c.target.Disable(ctx)
	res := c.callResult(err)

	c.mu.Lock()
	c.lastDisable = res
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("target disable after failed start failed", zap.Error(err))
	}
}

// PollStatus fetches both sides concurrently. A failure on one side yields
// an error placeholder for that side only.
func (c *Coordinator) PollStatus(ctx context.Context) StatusResult {
	var res StatusResult
	var g errgroup.Group

	g.Go(func() error {
		res.Producer = c.fetch(ctx, "load generator", c.lg.Status)
		return nil
	})
	g.Go(func() error {
		res.Consumer = c.fetch(ctx, "target", c.target.Stats)
		return nil
	})

	_ = g.Wait()

	c.mu.Lock()
	res.TargetEnable = c.lastEnable
	res.TargetDisable = c.lastDisable
	c.mu.Unlock()

	res.Timestamp = c.now().UTC()

	return res
}

// StopBenchmark stops both sides, waits for the load generator to drain and
// appends the final snapshots to the run log. A log failure is reported in
// the result; the run stays stopped either way.
func (c *Coordinator) StopBenchmark(ctx context.Context) StopResult {
	res := StopResult{LogPath: c.log.Path()}

	_, stopErr := c.lg.Stop(ctx)
	if stopErr != nil {
		c.logger.Warn("load generator stop failed", zap.Error(stopErr))
	}

	_, err := c.target.Disable(ctx)
	res.TargetDisable = c.callResult(err)
	c.mu.Lock()
	c.lastDisable = res.TargetDisable
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("target disable failed", zap.Error(err))
	}

	if stopErr == nil {
		res.Producer = c.awaitDrained(ctx)
	} else {
		res.Producer = placeholder(stopErr)
	}
	res.Consumer = c.fetch(ctx, "target", c.target.Stats)
	res.Timestamp = c.now().UTC()

	rec := runlog.Record{
		ProducerStatus: res.Producer,
		ConsumerStatus: res.Consumer,
		Timestamp:      res.Timestamp,
	}

	if err := c.log.Append(rec); err != nil {
		c.logger.Error("benchmark log append failed", zap.String("path", c.log.Path()), zap.Error(err))
		res.LogError = err.Error()

		return res
	}

	res.Logged = true
	c.logger.Info("benchmark stopped and logged", zap.String("path", c.log.Path()))

	return res
}

// awaitDrained polls the load generator until its run reports an end time or
// the drain timeout expires, and returns the last status seen.
func (c *Coordinator) awaitDrained(ctx context.Context) json.RawMessage {
	ctx, cancel := context.WithTimeout(ctx, c.opts.DrainTimeout)
	defer cancel()

	ticker := time.NewTicker(c.opts.DrainPoll)
	defer ticker.Stop()

	var last json.RawMessage

	for {
		raw, err := c.lg.Status(ctx)
		switch {
		case err == nil:
			last = raw
			if decodeRun(raw).drained() {
				return raw
			}
		case last == nil:
			last = placeholder(err)
		}

		select {
		case <-ctx.Done():
			c.logger.Warn("load generator did not drain in time", zap.Duration("timeout", c.opts.DrainTimeout))
			return last
		case <-ticker.C:
		}
	}
}

// ReadLogs returns the last n parseable run records.
func (c *Coordinator) ReadLogs(n int) LogsResult {
	if n <= 0 {
		n = DefaultLogCount
	}

	res := LogsResult{Path: c.log.Path(), Logs: []runlog.Record{}}

	recs, err := c.log.Tail(n)
	if err != nil {
		c.logger.Error("benchmark log read failed", zap.Error(err))
		res.Error = err.Error()

		return res
	}

	res.Logs = recs

	return res
}

func (c *Coordinator) fetch(ctx context.Context, who string, f func(context.Context) (json.RawMessage, error)) json.RawMessage {
	raw, err := f(ctx)
	if err != nil {
		c.logger.Warn("collaborator unreachable", zap.String("collaborator", who), zap.Error(err))
		return placeholder(err)
	}

	if len(raw) == 0 {
		return json.RawMessage("null")
	}

	return raw
}

func (c *Coordinator) callResult(err error) CallResult {
	at := c.now().UTC()
	if err != nil {
		return CallResult{Outcome: CallFailed, Error: err.Error(), At: &at}
	}

	return CallResult{Outcome: CallOK, At: &at}
}

// placeholder stands in for a snapshot that could not be fetched.
func placeholder(err error) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"error": err.Error()})
	return raw
}

// runView is the subset of a load generator status the coordinator reads.
type runView struct {
	RunID   string `json:"run_id"`
	Running bool   `json:"running"`
	Stats   struct {
		EndedAt *time.Time `json:"ended_at"`
	} `json:"stats"`
}

func decodeRun(raw json.RawMessage) runView {
	var v runView
	_ = json.Unmarshal(raw, &v)

	return v
}

// drained is true when there is no run or the run has fully ended.
func (v runView) drained() bool {
	return v.RunID == "" || (!v.Running && v.Stats.EndedAt != nil)
}
