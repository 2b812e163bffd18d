package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensor-bench/internal/loadgen"
	"sensor-bench/internal/runlog"
)

var errRefused = errors.New("connection refused")

type fakeLoadGenerator struct {
	mu        sync.Mutex
	running   bool
	runID     string
	ended     bool
	startErr  error
	stopErr   error
	statusErr error
	starts    []loadgen.Config
	stops     int
}

func (f *fakeLoadGenerator) status() json.RawMessage {
	v := map[string]any{"running": f.running, "run_id": f.runID, "stats": map[string]any{"ended_at": nil}}
	if f.ended {
		v["stats"] = map[string]any{"ended_at": "2026-01-01T00:00:01Z", "attempted": 3}
	}
	raw, _ := json.Marshal(v)
	return raw
}

func (f *fakeLoadGenerator) Start(_ context.Context, cfg loadgen.Config) (bool, json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startErr != nil {
		return false, nil, f.startErr
	}
	if f.running {
		return false, f.status(), nil
	}

	f.starts = append(f.starts, cfg)
	f.running, f.runID, f.ended = true, "run-1", false

	return true, f.status(), nil
}

func (f *fakeLoadGenerator) Stop(context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stops++
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	if f.running {
		f.running, f.ended = false, true
	}

	return f.status(), nil
}

func (f *fakeLoadGenerator) Status(context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.statusErr != nil {
		return nil, f.statusErr
	}

	return f.status(), nil
}

type fakeTarget struct {
	mu       sync.Mutex
	enabled  bool
	enables  int
	disables int
	err      error
}

func (f *fakeTarget) snapshot() json.RawMessage {
	raw, _ := json.Marshal(map[string]any{"enabled": f.enabled, "received": 42})
	return raw
}

func (f *fakeTarget) Enable(context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.enables++
	if f.err != nil {
		return nil, f.err
	}
	f.enabled = true

	return f.snapshot(), nil
}

func (f *fakeTarget) Disable(context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disables++
	if f.err != nil {
		return nil, f.err
	}
	f.enabled = false

	return f.snapshot(), nil
}

func (f *fakeTarget) Stats(context.Context) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	return f.snapshot(), nil
}

func newTestCoordinator(t *testing.T, lg LoadGenerator, tgt Target) *Coordinator {
	t.Helper()

	log, err := runlog.Open(filepath.Join(t.TempDir(), "logs", "benchmark_logs.jsonl"))
	require.NoError(t, err)

	return New(lg, tgt, log, Options{DrainTimeout: 500 * time.Millisecond, DrainPoll: 10 * time.Millisecond})
}

func errorOf(t *testing.T, raw json.RawMessage) string {
	t.Helper()

	var v struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &v))

	return v.Error
}

func TestRunBenchmarkEnablesTargetThenStarts(t *testing.T) {
	lg, tgt := &fakeLoadGenerator{}, &fakeTarget{}
	c := newTestCoordinator(t, lg, tgt)

	cfg := loadgen.Config{DurationSeconds: 5, PayloadBytes: 100, Workers: 2}
	res := c.RunBenchmark(context.Background(), cfg)

	assert.True(t, res.Accepted)
	assert.Equal(t, CallOK, res.TargetEnable.Outcome)
	assert.Equal(t, []loadgen.Config{cfg}, lg.starts)
	assert.True(t, tgt.enabled)
	assert.JSONEq(t, `{"enabled":true,"received":42}`, string(res.Consumer))
	assert.False(t, res.Timestamp.IsZero())
}

func TestRunBenchmarkProceedsWhenTargetUnreachable(t *testing.T) {
	lg, tgt := &fakeLoadGenerator{}, &fakeTarget{err: errRefused}
	c := newTestCoordinator(t, lg, tgt)

	res := c.RunBenchmark(context.Background(), loadgen.Config{DurationSeconds: 1, Workers: 1})

	assert.True(t, res.Accepted)
	assert.Equal(t, CallFailed, res.TargetEnable.Outcome)
	assert.Contains(t, res.TargetEnable.Error, "connection refused")
	assert.Equal(t, "connection refused", errorOf(t, res.Consumer))

	st := c.PollStatus(context.Background())
	assert.Equal(t, CallFailed, st.TargetEnable.Outcome)
}

func TestRunBenchmarkRejectedWhileRunning(t *testing.T) {
	lg, tgt := &fakeLoadGenerator{}, &fakeTarget{}
	c := newTestCoordinator(t, lg, tgt)

	first := c.RunBenchmark(context.Background(), loadgen.Config{DurationSeconds: 30, Workers: 1})
	require.True(t, first.Accepted)

	second := c.RunBenchmark(context.Background(), loadgen.Config{DurationSeconds: 1, Workers: 8})
	assert.False(t, second.Accepted)
	assert.Equal(t, CallNotAttempted, second.TargetEnable.Outcome)
	assert.Equal(t, 1, tgt.enables, "the active run's target counters must not be reset")
	assert.Len(t, lg.starts, 1)
}

func TestRunBenchmarkLoadGeneratorUnreachable(t *testing.T) {
	lg, tgt := &fakeLoadGenerator{startErr: errRefused, statusErr: errRefused}, &fakeTarget{}
	c := newTestCoordinator(t, lg, tgt)

	res := c.RunBenchmark(context.Background(), loadgen.Config{DurationSeconds: 1, Workers: 1})

	assert.False(t, res.Accepted)
	assert.Equal(t, "connection refused", errorOf(t, res.Producer))
	assert.Equal(t, "connection refused", res.ProducerError)
	assert.Equal(t, CallOK, res.TargetEnable.Outcome)
}

func TestRunBenchmarkDisablesTargetWhenStartFails(t *testing.T) {
	lg, tgt := &fakeLoadGenerator{startErr: errRefused}, &fakeTarget{}
	c := newTestCoordinator(t, lg, tgt)

	res := c.RunBenchmark(context.Background(), loadgen.Config{DurationSeconds: 1, Workers: 1})
	require.False(t, res.Accepted)

	tgt.mu.Lock()
	assert.Equal(t, 1, tgt.enables)
	assert.Equal(t, 1, tgt.disables)
	assert.False(t, tgt.enabled)
	tgt.mu.Unlock()

	status := c.PollStatus(context.Background())
	assert.Equal(t, CallOK, status.TargetEnable.Outcome)
	assert.Equal(t, CallOK, status.TargetDisable.Outcome)
}

func TestRunBenchmarkRejectedKeepsTargetEnabled(t *testing.T) {
	lg, tgt := &fakeLoadGenerator{}, &fakeTarget{}
	c := newTestCoordinator(t, lg, tgt)

	require.True(t, c.RunBenchmark(context.Background(), loadgen.Config{DurationSeconds: 1, Workers: 1}).Accepted)
	assert.False(t, c.RunBenchmark(context.Background(), loadgen.Config{DurationSeconds: 1, Workers: 1}).Accepted)

	tgt.mu.Lock()
	defer tgt.mu.Unlock()
	assert.Equal(t, 0, tgt.disables)
	assert.True(t, tgt.enabled)
}

func TestPollStatusDegradesPerSide(t *testing.T) {
	lg, tgt := &fakeLoadGenerator{statusErr: errRefused}, &fakeTarget{}
	c := newTestCoordinator(t, lg, tgt)

	res := c.PollStatus(context.Background())
	assert.Equal(t, "connection refused", errorOf(t, res.Producer))
	assert.JSONEq(t, `{"enabled":false,"received":42}`, string(res.Consumer))
	assert.Equal(t, CallNotAttempted, res.TargetEnable.Outcome)
	assert.Equal(t, CallNotAttempted, res.TargetDisable.Outcome)

	lg.statusErr, tgt.err = nil, errRefused

	res = c.PollStatus(context.Background())
	assert.Empty(t, errorOf(t, res.Producer))
	assert.Equal(t, "connection refused", errorOf(t, res.Consumer))
}

func TestStopBenchmarkAppendsRecord(t *testing.T) {
	lg, tgt := &fakeLoadGenerator{}, &fakeTarget{}
	c := newTestCoordinator(t, lg, tgt)

	require.True(t, c.RunBenchmark(context.Background(), loadgen.Config{DurationSeconds: 30, Workers: 1}).Accepted)

	res := c.StopBenchmark(context.Background())
	assert.True(t, res.Logged)
	assert.Empty(t, res.LogError)
	assert.Equal(t, CallOK, res.TargetDisable.Outcome)
	assert.False(t, tgt.enabled)
	assert.Equal(t, 1, lg.stops)

	logs := c.ReadLogs(1)
	require.Len(t, logs.Logs, 1)
	assert.Equal(t, c.LogPath(), logs.Path)
	assert.JSONEq(t, string(res.Producer), string(logs.Logs[0].ProducerStatus))
	assert.JSONEq(t, string(res.Consumer), string(logs.Logs[0].ConsumerStatus))
	assert.True(t, res.Timestamp.Equal(logs.Logs[0].Timestamp))

	var final runView
	require.NoError(t, json.Unmarshal(logs.Logs[0].ProducerStatus, &final))
	assert.True(t, final.drained())

	st := c.PollStatus(context.Background())
	assert.Equal(t, CallOK, st.TargetDisable.Outcome)
}

func TestStopBenchmarkTwiceIsSafe(t *testing.T) {
	lg, tgt := &fakeLoadGenerator{}, &fakeTarget{}
	c := newTestCoordinator(t, lg, tgt)

	c.RunBenchmark(context.Background(), loadgen.Config{DurationSeconds: 30, Workers: 1})

	first := c.StopBenchmark(context.Background())
	second := c.StopBenchmark(context.Background())

	assert.True(t, first.Logged)
	assert.True(t, second.Logged)
	assert.Len(t, c.ReadLogs(10).Logs, 2)
}

func TestStopBenchmarkLogsPlaceholdersWhenUnreachable(t *testing.T) {
	lg, tgt := &fakeLoadGenerator{stopErr: errRefused}, &fakeTarget{err: errRefused}
	c := newTestCoordinator(t, lg, tgt)

	res := c.StopBenchmark(context.Background())

	assert.Equal(t, CallFailed, res.TargetDisable.Outcome)
	assert.Equal(t, "connection refused", errorOf(t, res.Producer))
	assert.Equal(t, "connection refused", errorOf(t, res.Consumer))
	assert.True(t, res.Logged)
}

func TestStopBenchmarkReportsLogFailure(t *testing.T) {
	lg, tgt := &fakeLoadGenerator{}, &fakeTarget{}
	c := newTestCoordinator(t, lg, tgt)

	require.NoError(t, os.Mkdir(c.LogPath(), 0o755))

	c.RunBenchmark(context.Background(), loadgen.Config{DurationSeconds: 30, Workers: 1})
	res := c.StopBenchmark(context.Background())

	assert.False(t, res.Logged)
	assert.NotEmpty(t, res.LogError)
	assert.False(t, lg.running, "the run stays stopped when logging fails")
}

func TestStopBenchmarkWaitsForDrain(t *testing.T) {
	lg, tgt := &fakeLoadGenerator{}, &fakeTarget{}
	c := newTestCoordinator(t, &slowDrain{fakeLoadGenerator: lg, polls: 3}, tgt)

	c.RunBenchmark(context.Background(), loadgen.Config{DurationSeconds: 30, Workers: 1})
	res := c.StopBenchmark(context.Background())

	var final runView
	require.NoError(t, json.Unmarshal(res.Producer, &final))
	assert.NotNil(t, final.Stats.EndedAt)
}

// slowDrain reports an undrained run for the first polls status calls after Stop.
type slowDrain struct {
	*fakeLoadGenerator
	polls int
}

func (s *slowDrain) Status(ctx context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	stopped := s.stops > 0
	if stopped && s.polls > 0 {
		s.polls--
		s.mu.Unlock()
		return json.RawMessage(`{"run_id":"run-1","running":false,"stats":{"ended_at":null}}`), nil
	}
	s.mu.Unlock()

	return s.fakeLoadGenerator.Status(ctx)
}

func TestReadLogsDefaultsAndEmpty(t *testing.T) {
	c := newTestCoordinator(t, &fakeLoadGenerator{}, &fakeTarget{})

	res := c.ReadLogs(0)
	assert.Empty(t, res.Logs)
	assert.NotNil(t, res.Logs)
	assert.Empty(t, res.Error)

	for i := 0; i < DefaultLogCount+3; i++ {
		c.StopBenchmark(context.Background())
	}

	assert.Len(t, c.ReadLogs(0).Logs, DefaultLogCount)
	assert.Len(t, c.ReadLogs(2).Logs, 2)
}
