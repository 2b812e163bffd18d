package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"sensor-bench/internal/logging"
)

// Automation sends one reading per interval until stopped.
type Automation struct {
	sender   *Sender
	interval time.Duration
	logger   *zap.Logger

	// base is cancelled on process shutdown and ends any loop.
	base context.Context

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time

	sent   atomic.Int64
	failed atomic.Int64
}

// AutomationStatus is reported by /automation-status.
type AutomationStatus struct {
	Running         bool       `json:"running"`
	IntervalSeconds float64    `json:"interval_seconds"`
	StartedAt       *time.Time `json:"started_at"`
	Sent            int64      `json:"sent"`
	Failed          int64      `json:"failed"`
}

// NewAutomation creates a stopped Automation bound to base.
func NewAutomation(base context.Context, sender *Sender, interval time.Duration, logger *zap.Logger) *Automation {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &Automation{sender: sender, interval: interval, logger: logging.OrNop(logger), base: base}
}

// Start begins sending. It returns false when already running.
func (a *Automation) Start() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil || a.base.Err() != nil {
		return false
	}

	ctx, cancel := context.WithCancel(a.base)
	done := make(chan struct{})

	a.cancel, a.done = cancel, done
	a.startedAt = time.Now().UTC()
	a.sent.Store(0)
	a.failed.Store(0)

	go a.loop(ctx, done)

	a.logger.Info("automation started", zap.Duration("interval", a.interval))

	return true
}

func (a *Automation) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.sender.Send(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				a.failed.Add(1)
				a.logger.Debug("automated send failed", zap.Error(err))

				continue
			}
			a.sent.Add(1)
		}
	}
}

// Stop ends the loop and waits for it. It returns false when not running.
func (a *Automation) Stop() bool {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return false
	}

	cancel()
	<-done

	a.logger.Info("automation stopped", zap.Int64("sent", a.sent.Load()), zap.Int64("failed", a.failed.Load()))

	return true
}

// Status reports the loop state and counters.
func (a *Automation) Status() AutomationStatus {
	a.mu.Lock()
	running := a.cancel != nil
	startedAt := a.startedAt
	a.mu.Unlock()

	st := AutomationStatus{
		Running:         running,
		IntervalSeconds: a.interval.Seconds(),
		Sent:            a.sent.Load(),
		Failed:          a.failed.Load(),
	}
	if !startedAt.IsZero() {
		st.StartedAt = &startedAt
	}

	return st
}
