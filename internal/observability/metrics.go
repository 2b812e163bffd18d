package observability

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Outcome attribute values for benchmark sends.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups all metric instruments in one place.
type Metrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Load generator side.
	BenchRequests     metric.Int64Counter
	BenchBytesSent    metric.Int64Counter
	BenchSendDuration metric.Float64Histogram

	// Target side.
	TargetReceived metric.Int64Counter

	// Calls from one service to another.
	CollaboratorDuration metric.Float64Histogram
	CollaboratorErrors   metric.Int64Counter

	// Inflight is exported as an observable gauge per endpoint.
	inflight sync.Map // map[string]*atomic.Int64

	workers atomic.Int64
}

// NewMetrics creates all instruments on the global meter provider and
// registers callbacks.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter("sensor-bench/metrics"))
}

// NewNopMetrics returns Metrics whose instruments record nothing. Gauge
// helpers such as Inflight and ActiveWorkers still count.
func NewNopMetrics() *Metrics {
	m, err := newMetrics(noop.NewMeterProvider().Meter("sensor-bench/metrics"))
	if err != nil {
		// The no-op meter never fails.
		panic(err)
	}

	return m
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total")
	if err != nil {
		return nil, err
	}
	m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_ms")
	if err != nil {
		return nil, err
	}

	m.BenchRequests, err = meter.Int64Counter("benchmark_requests_total")
	if err != nil {
		return nil, err
	}
	m.BenchBytesSent, err = meter.Int64Counter("benchmark_bytes_sent_total", metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	m.BenchSendDuration, err = meter.Float64Histogram("benchmark_send_duration_ms")
	if err != nil {
		return nil, err
	}

	m.TargetReceived, err = meter.Int64Counter("target_requests_received_total")
	if err != nil {
		return nil, err
	}

	m.CollaboratorDuration, err = meter.Float64Histogram("collaborator_duration_ms")
	if err != nil {
		return nil, err
	}
	m.CollaboratorErrors, err = meter.Int64Counter("collaborator_errors_total")
	if err != nil {
		return nil, err
	}

	// http_inflight gauge reports current in-flight requests per endpoint.
	_, err = meter.Int64ObservableGauge("http_inflight",
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.inflight.Range(func(k, v any) bool {
				endpoint := k.(string)
				val := v.(*atomic.Int64).Load()
				obs.Observe(val, metric.WithAttributes(attribute.String("endpoint", endpoint)))
				return true
			})
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge("benchmark_active_workers",
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			obs.Observe(m.workers.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// IncInflight increments the in-flight counter for an endpoint.
func (m *Metrics) IncInflight(endpoint string) {
	v, _ := m.inflight.LoadOrStore(endpoint, &atomic.Int64{})
	v.(*atomic.Int64).Add(1)
}

// DecInflight decrements the in-flight counter for an endpoint.
func (m *Metrics) DecInflight(endpoint string) {
	if v, ok := m.inflight.Load(endpoint); ok {
		v.(*atomic.Int64).Add(-1)
	}
}

// Inflight returns the current in-flight count for an endpoint.
func (m *Metrics) Inflight(endpoint string) int64 {
	if v, ok := m.inflight.Load(endpoint); ok {
		return v.(*atomic.Int64).Load()
	}

	return 0
}

// WorkerStarted and WorkerStopped track live load generator workers.
func (m *Metrics) WorkerStarted() { m.workers.Add(1) }

func (m *Metrics) WorkerStopped() { m.workers.Add(-1) }

// ActiveWorkers returns the number of live load generator workers.
func (m *Metrics) ActiveWorkers() int64 { return m.workers.Load() }

// RecordSend records one load generator send.
func (m *Metrics) RecordSend(ctx context.Context, ok bool, bytes int, elapsedMs float64) {
	outcome := OutcomeFailure
	if ok {
		outcome = OutcomeSuccess
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.BenchRequests.Add(ctx, 1, attrs)
	m.BenchSendDuration.Record(ctx, elapsedMs, attrs)

	if ok {
		m.BenchBytesSent.Add(ctx, int64(bytes))
	}
}

// RecordCollaborator records a call to another service.
func (m *Metrics) RecordCollaborator(ctx context.Context, collaborator, op string, elapsedMs float64, err error) {
	attrs := metric.WithAttributes(
		attribute.String("collaborator", collaborator),
		attribute.String("op", op),
	)

	m.CollaboratorDuration.Record(ctx, elapsedMs, attrs)
	if err != nil {
		m.CollaboratorErrors.Add(ctx, 1, attrs)
	}
}
