package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sensor-bench/internal/observability"
	"sensor-bench/internal/sensor"
)

// ErrRejected is returned when the consumer answers with a non-2xx status.
var ErrRejected = errors.New("consumer rejected reading")

// Sent is one reading delivered to the consumer together with its answer.
type Sent struct {
	Reading  sensor.Reading  `json:"reading"`
	Response json.RawMessage `json:"consumer_response"`
}

// Sender posts generated readings to the consumer's /process-data endpoint.
type Sender struct {
	url     string
	client  *http.Client
	gen     *sensor.Generator
	metrics *observability.Metrics
}

// NewSender creates a Sender targeting consumerURL.
func NewSender(consumerURL string, timeout time.Duration, gen *sensor.Generator, m *observability.Metrics) *Sender {
	return &Sender{
		url: consumerURL + "/process-data",
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		gen:     gen,
		metrics: m,
	}
}

// Send generates one reading and delivers it.
func (s *Sender) Send(ctx context.Context) (Sent, error) {
	start := time.Now()
	sent, err := s.send(ctx)

	if s.metrics != nil {
		s.metrics.RecordCollaborator(ctx, "consumer", "/process-data", float64(time.Since(start).Microseconds())/1000, err)
	}

	return sent, err
}

func (s *Sender) send(ctx context.Context) (Sent, error) {
	sent := Sent{Reading: s.gen.Next()}

	body, err := json.Marshal(sent.Reading)
	if err != nil {
		return sent, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return sent, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return sent, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return sent, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return sent, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	if json.Valid(raw) {
		sent.Response = raw
	}

	return sent, nil
}
