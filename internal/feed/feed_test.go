package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensor-bench/internal/sensor"
)

func newConsumer(t *testing.T, status int) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process-data" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var reading sensor.Reading
		if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		hits.Add(1)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"sensor_id": reading.SensorID})
	}))
	t.Cleanup(srv.Close)

	return srv, &hits
}

func TestSenderSend(t *testing.T) {
	srv, hits := newConsumer(t, http.StatusOK)
	s := NewSender(srv.URL, time.Second, sensor.NewGenerator(1), nil)

	sent, err := s.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
	assert.JSONEq(t, `{"sensor_id":"`+sent.Reading.SensorID+`"}`, string(sent.Response))
}

func TestSenderRejected(t *testing.T) {
	srv, _ := newConsumer(t, http.StatusServiceUnavailable)
	s := NewSender(srv.URL, time.Second, sensor.NewGenerator(1), nil)

	_, err := s.Send(context.Background())
	assert.True(t, errors.Is(err, ErrRejected))
}

func TestAutomationLifecycle(t *testing.T) {
	srv, hits := newConsumer(t, http.StatusOK)
	s := NewSender(srv.URL, time.Second, sensor.NewGenerator(1), nil)
	a := NewAutomation(context.Background(), s, 10*time.Millisecond, nil)

	assert.False(t, a.Status().Running)
	assert.False(t, a.Stop())

	require.True(t, a.Start())
	assert.False(t, a.Start())

	require.Eventually(t, func() bool { return hits.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	assert.True(t, a.Stop())

	st := a.Status()
	assert.False(t, st.Running)
	assert.GreaterOrEqual(t, st.Sent, int64(3))
	assert.NotNil(t, st.StartedAt)
	assert.Equal(t, 0.01, st.IntervalSeconds)
}

func TestAutomationEndsWithBaseContext(t *testing.T) {
	srv, _ := newConsumer(t, http.StatusOK)
	base, cancel := context.WithCancel(context.Background())
	a := NewAutomation(base, NewSender(srv.URL, time.Second, sensor.NewGenerator(1), nil), 10*time.Millisecond, nil)

	require.True(t, a.Start())
	cancel()

	assert.True(t, a.Stop())
	assert.False(t, a.Start())
}
