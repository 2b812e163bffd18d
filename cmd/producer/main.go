package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sensor-bench/internal/config"
	"sensor-bench/internal/feed"
	"sensor-bench/internal/handlers"
	"sensor-bench/internal/loadgen"
	"sensor-bench/internal/routers"
	"sensor-bench/internal/sensor"
	"sensor-bench/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := server.Bootstrap(ctx, config.ServiceProducer, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg := rt.Config
	gen := sensor.NewGenerator(time.Now().UnixNano())

	// Runs and automation outlive individual requests and end on shutdown.
	engine := loadgen.NewEngine(context.Background(), loadgen.Options{
		SinkURL:         cfg.SinkURL,
		SendTimeout:     cfg.SendTimeout,
		FailureBackoff:  cfg.FailureBackoff,
		MaxWorkers:      cfg.MaxWorkers,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		Source:          func() any { return gen.Next() },
		Metrics:         rt.Metrics,
		Logger:          rt.Logger,
	})

	sender := feed.NewSender(cfg.ConsumerURL, cfg.SendTimeout, gen, rt.Metrics)
	auto := feed.NewAutomation(context.Background(), sender, cfg.AutomationInterval, rt.Logger)

	h := handlers.NewProducer(gen, sender, auto, engine, rt.Logger)
	r := routers.NewProducerRouter(rt.Metrics, h, rt.Logger)

	rt.Logger.Info("producer configured",
		zap.String("sink", cfg.SinkURL),
		zap.String("consumer", cfg.ConsumerURL),
		zap.Int("max_workers", cfg.MaxWorkers),
		zap.Int("max_payload_bytes", cfg.MaxPayloadBytes),
	)

	err = rt.Serve(ctx, r,
		func(context.Context) error {
			auto.Stop()
			return nil
		},
		engine.Shutdown,
	)
	if err != nil {
		rt.Logger.Error("producer exited with error", zap.Error(err))
		os.Exit(1)
	}
}
