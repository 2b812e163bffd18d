package models

import (
	"time"

	"sensor-bench/internal/feed"
	"sensor-bench/internal/sensor"
	"sensor-bench/internal/target"
)

// ErrorResponse is returned by all endpoints on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TotalMs int64  `json:"totalMs"`
}

// ProducerStatus is returned by the producer's /status.
type ProducerStatus struct {
	Service          string  `json:"service"`
	Status           string  `json:"status"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	AutomationActive bool    `json:"automation_running"`
	BenchmarkActive  bool    `json:"benchmark_running"`
}

// ConsumerStatus is returned by the consumer's /status.
type ConsumerStatus struct {
	Service          string  `json:"service"`
	Status           string  `json:"status"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	HistorySize      int     `json:"history_size"`
	BenchmarkEnabled bool    `json:"benchmark_enabled"`
}

// SendResponse is returned by /send-data.
type SendResponse struct {
	Sent    feed.Sent `json:"sent"`
	TotalMs int64     `json:"totalMs"`
}

// AutomationResponse is returned by the automation toggles.
type AutomationResponse struct {
	Changed bool                  `json:"changed"`
	Status  feed.AutomationStatus `json:"status"`
}

// HistoryResponse is returned by /view-all-data.
type HistoryResponse struct {
	Count int                `json:"count"`
	Data  []sensor.Processed `json:"data"`
}

// ClearResponse is returned by /clear-history.
type ClearResponse struct {
	Cleared int `json:"cleared"`
}

// IngestResponse acknowledges one benchmark payload.
type IngestResponse struct {
	Counted bool `json:"counted"`
}

// CountersResponse is returned by the enable/disable toggles.
type CountersResponse struct {
	Stats target.Snapshot `json:"stats"`
}

// ServiceHealth is one sibling in the dashboard's /api/status.
type ServiceHealth struct {
	Healthy bool   `json:"healthy"`
	URL     string `json:"url"`
}

// HealthResponse is returned by the dashboard's /api/status.
type HealthResponse struct {
	Producer  ServiceHealth `json:"producer"`
	Consumer  ServiceHealth `json:"consumer"`
	Timestamp time.Time     `json:"timestamp"`
}
