package coordinator

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

	"sensor-bench/internal/loadgen"
	"sensor-bench/internal/observability"
)

// ErrUnexpectedStatus is wrapped by client errors for non-2xx answers.
var ErrUnexpectedStatus = errors.New("unexpected status")

// maxBody bounds how much of a collaborator response is read.
const maxBody = 4 << 20

// Client is a JSON-over-HTTP client for one sibling service.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	metrics *observability.Metrics
}

// NewClient creates a traced client. timeout bounds every call.
func NewClient(name, baseURL string, timeout time.Duration, m *observability.Metrics) *Client {
	return &Client{
		name:    name,
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		metrics: m,
	}
}

// Name returns the collaborator name used in logs and metrics.
func (c *Client) Name() string { return c.name }

// BaseURL returns the service root URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path string, body any) (int, json.RawMessage, error) {
	start := time.Now()
	status, raw, err := c.roundTrip(ctx, method, path, body)

	if c.metrics != nil {
		c.metrics.RecordCollaborator(ctx, c.name, path, float64(time.Since(start).Microseconds())/1000, err)
	}

	return status, raw, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (int, json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", c.name, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s %s: read body: %w", c.name, path, err)
	}

	if len(raw) > 0 && !json.Valid(raw) {
		return resp.StatusCode, nil, fmt.Errorf("%s %s: response is not JSON", c.name, path)
	}

	return resp.StatusCode, raw, nil
}

func (c *Client) expectOK(ctx context.Context, method, path string) (json.RawMessage, error) {
	status, raw, err := c.do(ctx, method, path, nil)
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%s %s: %w %d", c.name, path, ErrUnexpectedStatus, status)
	}

	return raw, nil
}

// Forward relays one call and returns the answer body. Anything but 200 is
// an error wrapping ErrUnexpectedStatus.
func (c *Client) Forward(ctx context.Context, method, path string, body json.RawMessage) (json.RawMessage, error) {
	var payload any
	if len(body) > 0 {
		payload = body
	}

	status, raw, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("%s %s: %w %d", c.name, path, ErrUnexpectedStatus, status)
	}

	return raw, nil
}

// Healthy reports whether the service answers its /status endpoint with 200.
func (c *Client) Healthy(ctx context.Context) bool {
	status, _, err := c.do(ctx, http.MethodGet, "/status", nil)

	return err == nil && status == http.StatusOK
}

// LoadGeneratorClient drives the producer's benchmark endpoints.
type LoadGeneratorClient struct {
	*Client
}

// NewLoadGeneratorClient wraps c.
func NewLoadGeneratorClient(c *Client) *LoadGeneratorClient {
	return &LoadGeneratorClient{Client: c}
}

// Start posts cfg. A 409 answer is a rejection, not an error.
func (c *LoadGeneratorClient) Start(ctx context.Context, cfg loadgen.Config) (bool, json.RawMessage, error) {
	status, raw, err := c.do(ctx, http.MethodPost, "/benchmark/start", cfg)
	if err != nil {
		return false, nil, err
	}

	switch status {
	case http.StatusOK:
		return true, raw, nil
	case http.StatusConflict:
		return false, raw, nil
	default:
		return false, nil, fmt.Errorf("%s /benchmark/start: %w %d", c.name, ErrUnexpectedStatus, status)
	}
}

// Stop requests the active run to end.
func (c *LoadGeneratorClient) Stop(ctx context.Context) (json.RawMessage, error) {
	return c.expectOK(ctx, http.MethodPost, "/benchmark/stop")
}

// Status fetches the load generator status.
func (c *LoadGeneratorClient) Status(ctx context.Context) (json.RawMessage, error) {
	return c.expectOK(ctx, http.MethodGet, "/benchmark/status")
}

// TargetClient drives the consumer's counter endpoints.
type TargetClient struct {
	*Client
}

// NewTargetClient wraps c.
func NewTargetClient(c *Client) *TargetClient {
	return &TargetClient{Client: c}
}

// Enable resets and starts the target counters.
func (c *TargetClient) Enable(ctx context.Context) (json.RawMessage, error) {
	return c.expectOK(ctx, http.MethodPost, "/benchmark/enable")
}

// Disable freezes the target counters.
func (c *TargetClient) Disable(ctx context.Context) (json.RawMessage, error) {
	return c.expectOK(ctx, http.MethodPost, "/benchmark/disable")
}

// Stats fetches the target counter snapshot.
func (c *TargetClient) Stats(ctx context.Context) (json.RawMessage, error) {
	return c.expectOK(ctx, http.MethodGet, "/benchmark/stats")
}
