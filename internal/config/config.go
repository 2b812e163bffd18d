package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Service names, also used as the default OTEL_SERVICE_NAME.
const (
	ServiceProducer = "producer"
	ServiceConsumer = "consumer"
	ServiceWebUI    = "webui"
)

// MaxIngestBytes is the largest benchmark payload the consumer reads.
// benchmark_max_payload_bytes may not exceed it.
const MaxIngestBytes = 16 << 20

var defaultPorts = map[string]string{
	ServiceWebUI:    "8000",
	ServiceProducer: "8001",
	ServiceConsumer: "8002",
}

// Config holds all runtime configuration for the three services.
// Each binary only reads the fields it needs.
type Config struct {
	Service string

	Port            string
	ShutdownTimeout time.Duration

	OtelEndpoint  string
	ServiceName   string
	DisableTraces bool
	DisableOTel   bool

	LogLevel string
	LogDev   bool

	ProducerURL string
	ConsumerURL string

	// Load generator.
	SinkURL         string
	SendTimeout     time.Duration
	FailureBackoff  time.Duration
	MaxWorkers      int
	MaxPayloadBytes int

	// Producer automation.
	AutomationInterval time.Duration

	// Consumer history.
	HistoryLimit int

	// Coordinator.
	BenchmarkLogPath string
	HealthTimeout    time.Duration
	RequestTimeout   time.Duration
	DrainTimeout     time.Duration
}

// Load reads defaults, an optional config file, environment variables and
// command line flags (in that order of precedence) for the given service.
func Load(service string, args []string) (Config, error) {
	port, ok := defaultPorts[service]
	if !ok {
		return Config{}, fmt.Errorf("unknown service %q", service)
	}

	v := viper.New()
	setDefaults(v, service, port)

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	fs := pflag.NewFlagSet(service, pflag.ContinueOnError)
	fs.String("config", "", "optional config file (yaml, toml or json)")
	fs.String("port", port, "listen port")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("log-dev", false, "human readable console logs")
	fs.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown budget")
	fs.String("producer-url", "http://producer:8001", "producer base URL")
	fs.String("consumer-url", "http://consumer:8002", "consumer base URL")
	fs.String("benchmark-sink-url", "", "load generator sink (default consumer-url + /benchmark/ingest)")
	fs.Duration("benchmark-send-timeout", 3*time.Second, "timeout of one benchmark send")
	fs.Duration("benchmark-failure-backoff", time.Millisecond, "pause after a failed send")
	fs.Int("benchmark-max-workers", 256, "ceiling for workers")
	fs.Int("benchmark-max-payload-bytes", 4<<20, "ceiling for payload_bytes")
	fs.Duration("benchmark-drain-timeout", 6*time.Second, "how long stop waits for a run to drain")
	fs.String("benchmark-log-path", "./logs/benchmark_logs.jsonl", "run log file")
	fs.Duration("automation-interval", 2*time.Second, "producer automation interval")
	fs.Int("history-limit", 100, "processed readings kept by the consumer")
	fs.Duration("health-timeout", 3*time.Second, "dashboard health check budget")
	fs.Duration("request-timeout", 5*time.Second, "dashboard call timeout")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Every flag except --config binds to the viper key with dashes as underscores.
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	if bindErr != nil {
		return Config{}, bindErr
	}

	if file, _ := fs.GetString("config"); file != "" {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := Config{
		Service:            service,
		Port:               v.GetString("port"),
		ShutdownTimeout:    v.GetDuration("shutdown_timeout"),
		OtelEndpoint:       v.GetString("otel_exporter_otlp_endpoint"),
		ServiceName:        v.GetString("otel_service_name"),
		DisableTraces:      v.GetString("otel_traces_exporter") == "none",
		DisableOTel:        v.GetBool("otel_sdk_disabled"),
		LogLevel:           v.GetString("log_level"),
		LogDev:             v.GetBool("log_dev"),
		ProducerURL:        strings.TrimRight(v.GetString("producer_url"), "/"),
		ConsumerURL:        strings.TrimRight(v.GetString("consumer_url"), "/"),
		SinkURL:            v.GetString("benchmark_sink_url"),
		SendTimeout:        v.GetDuration("benchmark_send_timeout"),
		FailureBackoff:     v.GetDuration("benchmark_failure_backoff"),
		MaxWorkers:         v.GetInt("benchmark_max_workers"),
		MaxPayloadBytes:    v.GetInt("benchmark_max_payload_bytes"),
		AutomationInterval: v.GetDuration("automation_interval"),
		HistoryLimit:       v.GetInt("history_limit"),
		BenchmarkLogPath:   v.GetString("benchmark_log_path"),
		HealthTimeout:      v.GetDuration("health_timeout"),
		RequestTimeout:     v.GetDuration("request_timeout"),
		DrainTimeout:       v.GetDuration("benchmark_drain_timeout"),
	}

	if cfg.SinkURL == "" {
		cfg.SinkURL = cfg.ConsumerURL + "/benchmark/ingest"
	}

	return cfg, cfg.validate()
}

func setDefaults(v *viper.Viper, service, port string) {
	v.SetDefault("port", port)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("otel_exporter_otlp_endpoint", "http://otel-collector:4318")
	v.SetDefault("otel_service_name", "sensor-bench-"+service)
	v.SetDefault("otel_traces_exporter", "")
	v.SetDefault("otel_sdk_disabled", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dev", false)
	v.SetDefault("producer_url", "http://producer:8001")
	v.SetDefault("consumer_url", "http://consumer:8002")
	v.SetDefault("benchmark_sink_url", "")
	v.SetDefault("benchmark_send_timeout", 3*time.Second)
	v.SetDefault("benchmark_failure_backoff", time.Millisecond)
	v.SetDefault("benchmark_max_workers", 256)
	v.SetDefault("benchmark_max_payload_bytes", 4<<20)
	v.SetDefault("automation_interval", 2*time.Second)
	v.SetDefault("history_limit", 100)
	v.SetDefault("benchmark_log_path", "./logs/benchmark_logs.jsonl")
	v.SetDefault("health_timeout", 3*time.Second)
	v.SetDefault("request_timeout", 5*time.Second)
	v.SetDefault("benchmark_drain_timeout", 6*time.Second)
}

func (c Config) validate() error {
	switch {
	case c.Port == "":
		return fmt.Errorf("port must not be empty")
	case c.MaxWorkers < 1:
		return fmt.Errorf("benchmark_max_workers must be >= 1, got %d", c.MaxWorkers)
	case c.MaxPayloadBytes < 1 || c.MaxPayloadBytes > MaxIngestBytes:
		return fmt.Errorf("benchmark_max_payload_bytes must be in [1, %d], got %d", MaxIngestBytes, c.MaxPayloadBytes)
	case c.SendTimeout <= 0:
		return fmt.Errorf("benchmark_send_timeout must be positive")
	case c.HistoryLimit < 1:
		return fmt.Errorf("history_limit must be >= 1, got %d", c.HistoryLimit)
	case c.BenchmarkLogPath == "":
		return fmt.Errorf("benchmark_log_path must not be empty")
	}

	return nil
}
