package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OTelOptions selects what SetupOTel installs.
type OTelOptions struct {
	Endpoint      string
	ServiceName   string
	Role          string
	DisableTraces bool

	// Disabled leaves the global no-op providers in place.
	Disabled bool
}

// SetupOTel initializes OpenTelemetry providers.
// Metrics are always enabled unless Disabled is set. Traces are optional.
func SetupOTel(ctx context.Context, opts OTelOptions) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if opts.Disabled {
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			attribute.String("sensor_bench.role", opts.Role),
		),
	)
	if err != nil {
		return noop, err
	}

	// Metrics exporter (OTLP HTTP → Collector).
	metricExp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(opts.Endpoint))
	if err != nil {
		return noop, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(3*time.Second))),
	)
	otel.SetMeterProvider(mp)

	// Trace context travels from the coordinator through the producer to the consumer.
	otel.SetTextMapPropagator(propagation.TraceContext{})

	// Traces exporter (optional).
	var tp *sdktrace.TracerProvider
	if !opts.DisableTraces {
		traceExp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(opts.Endpoint))
		if err != nil {
			_ = mp.Shutdown(ctx)
			return noop, err
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(traceExp),
		)
		otel.SetTracerProvider(tp)
	}

	// Runtime metrics (goroutines, heap, GC, etc.).
	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(2 * time.Second)); err != nil {
		return noop, err
	}

	return func(ctx context.Context) error {
		var errs []error
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if tp != nil {
			if err := tp.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}, nil
}
