package target

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIgnoredWhileDisabled(t *testing.T) {
	c := NewCounters()

	assert.False(t, c.Record(100, true))

	s := c.Stats()
	assert.False(t, s.Enabled)
	assert.Zero(t, s.Received)
	assert.Nil(t, s.EnabledAt)
	assert.Nil(t, s.RequestsPerSecond)
}

func TestEnableDisableLifecycle(t *testing.T) {
	c := NewCounters()

	c.Enable()
	assert.True(t, c.Record(100, true))
	assert.True(t, c.Record(50, false))

	s := c.Disable()
	assert.False(t, s.Enabled)
	assert.Equal(t, int64(2), s.Received)
	assert.Equal(t, int64(150), s.BytesReceived)
	assert.Equal(t, int64(1), s.Rejected)
	require.NotNil(t, s.EnabledAt)
	require.NotNil(t, s.DisabledAt)

	// Disabled counters keep their counts.
	assert.False(t, c.Record(10, true))
	assert.Equal(t, int64(2), c.Stats().Received)

	// Disabling twice keeps the first disable time.
	again := c.Disable()
	assert.Equal(t, s.DisabledAt, again.DisabledAt)

	// Enable resets.
	s = c.Enable()
	assert.True(t, s.Enabled)
	assert.Zero(t, s.Received)
	assert.Zero(t, s.BytesReceived)
	assert.Nil(t, s.DisabledAt)
}

func TestStatsRate(t *testing.T) {
	c := NewCounters()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Enable()
	for i := 0; i < 20; i++ {
		c.Record(10, true)
	}

	c.now = func() time.Time { return base.Add(2 * time.Second) }
	s := c.Disable()

	require.NotNil(t, s.ElapsedSeconds)
	require.NotNil(t, s.RequestsPerSecond)
	assert.Equal(t, 2.0, *s.ElapsedSeconds)
	assert.Equal(t, 10.0, *s.RequestsPerSecond)
}

func TestConcurrentRecord(t *testing.T) {
	c := NewCounters()
	c.Enable()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				c.Record(2, true)
			}
		}()
	}
	wg.Wait()

	s := c.Stats()
	assert.Equal(t, int64(4000), s.Received)
	assert.Equal(t, int64(8000), s.BytesReceived)
}

func TestCollector(t *testing.T) {
	c := NewCounters()
	c.Enable()
	c.Record(64, true)
	c.Record(64, true)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	expected := `
# HELP sensor_bench_target_received_total Benchmark requests received since the counters were last enabled.
# TYPE sensor_bench_target_received_total counter
sensor_bench_target_received_total 2
# HELP sensor_bench_target_enabled 1 while the counters are enabled.
# TYPE sensor_bench_target_enabled gauge
sensor_bench_target_enabled 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"sensor_bench_target_received_total", "sensor_bench_target_enabled"))
}
