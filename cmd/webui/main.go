package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"sensor-bench/internal/config"
	"sensor-bench/internal/coordinator"
	"sensor-bench/internal/handlers"
	"sensor-bench/internal/routers"
	"sensor-bench/internal/runlog"
	"sensor-bench/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := server.Bootstrap(ctx, config.ServiceWebUI, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg := rt.Config

	log, err := runlog.Open(cfg.BenchmarkLogPath)
	if err != nil {
		rt.Logger.Fatal("benchmark log", zap.Error(err))
	}

	producer := coordinator.NewClient("producer", cfg.ProducerURL, cfg.RequestTimeout, rt.Metrics)
	consumer := coordinator.NewClient("consumer", cfg.ConsumerURL, cfg.RequestTimeout, rt.Metrics)

	coord := coordinator.New(
		coordinator.NewLoadGeneratorClient(producer),
		coordinator.NewTargetClient(consumer),
		log,
		coordinator.Options{DrainTimeout: cfg.DrainTimeout, Logger: rt.Logger},
	)

	h := handlers.NewWebUI(coord, producer, consumer, cfg.HealthTimeout)
	r := routers.NewWebUIRouter(rt.Metrics, h, rt.Logger)

	rt.Logger.Info("coordinator configured",
		zap.String("producer", cfg.ProducerURL),
		zap.String("consumer", cfg.ConsumerURL),
		zap.String("benchmark_log", log.Path()),
	)

	if err := rt.Serve(ctx, r); err != nil {
		rt.Logger.Error("webui exited with error", zap.Error(err))
		os.Exit(1)
	}
}
