package target

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sensor_bench_target"

// Counters tracks inbound benchmark traffic while enabled. Enable resets the
// counts, Disable freezes them until the next Enable.
type Counters struct {
	enabled atomic.Bool

	received      atomic.Int64
	bytesReceived atomic.Int64
	rejected      atomic.Int64

	// mu guards the timestamps and serialises Enable/Disable.
	mu         sync.RWMutex
	enabledAt  time.Time
	disabledAt time.Time

	now func() time.Time

	receivedDesc *prometheus.Desc
	bytesDesc    *prometheus.Desc
	rejectedDesc *prometheus.Desc
	enabledDesc  *prometheus.Desc
}

// Snapshot is a point-in-time read of Counters.
type Snapshot struct {
	Enabled           bool       `json:"enabled"`
	Received          int64      `json:"received"`
	BytesReceived     int64      `json:"bytes_received"`
	Rejected          int64      `json:"rejected"`
	EnabledAt         *time.Time `json:"enabled_at"`
	DisabledAt        *time.Time `json:"disabled_at"`
	ElapsedSeconds    *float64   `json:"elapsed_seconds"`
	RequestsPerSecond *float64   `json:"requests_per_second"`
}

// NewCounters returns disabled counters.
func NewCounters() *Counters {
	return &Counters{
		now: time.Now,
		receivedDesc: prometheus.NewDesc(namespace+"_received_total",
			"Benchmark requests received since the counters were last enabled.", nil, nil),
		bytesDesc: prometheus.NewDesc(namespace+"_bytes_received_total",
			"Benchmark payload bytes received since the counters were last enabled.", nil, nil),
		rejectedDesc: prometheus.NewDesc(namespace+"_rejected_total",
			"Benchmark requests received with an unreadable payload.", nil, nil),
		enabledDesc: prometheus.NewDesc(namespace+"_enabled",
			"1 while the counters are enabled.", nil, nil),
	}
}

// Enable zeroes the counts and starts counting.
func (c *Counters) Enable() Snapshot {
	c.mu.Lock()
	c.received.Store(0)
	c.bytesReceived.Store(0)
	c.rejected.Store(0)
	c.enabledAt = c.now().UTC()
	c.disabledAt = time.Time{}
	c.enabled.Store(true)
	c.mu.Unlock()

	return c.Stats()
}

// Disable stops counting and keeps the last counts.
func (c *Counters) Disable() Snapshot {
	c.mu.Lock()
	if c.enabled.Load() {
		c.enabled.Store(false)
		c.disabledAt = c.now().UTC()
	}
	c.mu.Unlock()

	return c.Stats()
}

// Enabled reports whether inbound requests are being counted.
func (c *Counters) Enabled() bool {
	return c.enabled.Load()
}

// Record counts one inbound request of n bytes. ok is false when the payload
// could not be read. Nothing is counted while disabled.
func (c *Counters) Record(n int, ok bool) bool {
	if !c.enabled.Load() {
		return false
	}

	c.received.Add(1)
	c.bytesReceived.Add(int64(n))

	if !ok {
		c.rejected.Add(1)
	}

	return true
}

// Stats returns the current counts.
func (c *Counters) Stats() Snapshot {
	c.mu.RLock()
	enabledAt, disabledAt := c.enabledAt, c.disabledAt
	c.mu.RUnlock()

	s := Snapshot{
		Enabled:       c.enabled.Load(),
		Received:      c.received.Load(),
		BytesReceived: c.bytesReceived.Load(),
		Rejected:      c.rejected.Load(),
	}

	if enabledAt.IsZero() {
		return s
	}

	s.EnabledAt = &enabledAt

	until := c.now()
	if !disabledAt.IsZero() {
		s.DisabledAt = &disabledAt
		until = disabledAt
	}

	elapsed := until.Sub(enabledAt).Seconds()
	if elapsed > 0 {
		rps := float64(s.Received) / elapsed
		s.ElapsedSeconds = &elapsed
		s.RequestsPerSecond = &rps
	}

	return s
}

// Describe implements prometheus.Collector.
func (c *Counters) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.receivedDesc
	ch <- c.bytesDesc
	ch <- c.rejectedDesc
	ch <- c.enabledDesc
}

// Collect implements prometheus.Collector.
func (c *Counters) Collect(ch chan<- prometheus.Metric) {
	s := c.Stats()

	enabled := 0.0
	if s.Enabled {
		enabled = 1
	}

	ch <- prometheus.MustNewConstMetric(c.receivedDesc, prometheus.CounterValue, float64(s.Received))
	ch <- prometheus.MustNewConstMetric(c.bytesDesc, prometheus.CounterValue, float64(s.BytesReceived))
	ch <- prometheus.MustNewConstMetric(c.rejectedDesc, prometheus.CounterValue, float64(s.Rejected))
	ch <- prometheus.MustNewConstMetric(c.enabledDesc, prometheus.GaugeValue, enabled)
}
