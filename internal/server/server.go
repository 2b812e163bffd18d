// Package server holds the process bootstrap shared by the three binaries.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sensor-bench/internal/config"
	"sensor-bench/internal/logging"
	"sensor-bench/internal/observability"
)

// Runtime is what every binary builds before wiring its own handlers.
type Runtime struct {
	Config  config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	shutdownOTel func(context.Context) error
}

// Bootstrap loads configuration, then sets up logging, OpenTelemetry and
// the shared metric instruments.
func Bootstrap(ctx context.Context, service string, args []string) (*Runtime, error) {
	cfg, err := config.Load(service, args)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	logger = logger.With(zap.String("service", service))

	if !cfg.LogDev {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdown, err := observability.SetupOTel(ctx, observability.OTelOptions{
		Endpoint:      cfg.OtelEndpoint,
		ServiceName:   cfg.ServiceName,
		Role:          service,
		DisableTraces: cfg.DisableTraces,
		Disabled:      cfg.DisableOTel,
	})
	if err != nil {
		return nil, fmt.Errorf("otel init: %w", err)
	}

	m, err := observability.NewMetrics()
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("metrics init: %w", err)
	}

	return &Runtime{Config: cfg, Logger: logger, Metrics: m, shutdownOTel: shutdown}, nil
}

// Serve runs handler until ctx is cancelled, then drains connections and
// calls each cleanup in order within the shutdown timeout.
func (rt *Runtime) Serve(ctx context.Context, handler http.Handler, cleanups ...func(context.Context) error) error {
	srv := &http.Server{
		Addr:              ":" + rt.Config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.Logger.Info("listening", zap.String("addr", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		rt.Logger.Info("shutting down")
	case serveErr = <-errCh:
		rt.Logger.Error("server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.Config.ShutdownTimeout)
	defer cancel()

	errs := []error{serveErr}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	for _, f := range cleanups {
		if err := f(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := rt.shutdownOTel(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
	}

	_ = rt.Logger.Sync()

	return errors.Join(errs...)
}
