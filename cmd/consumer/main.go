package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"sensor-bench/internal/config"
	"sensor-bench/internal/handlers"
	"sensor-bench/internal/routers"
	"sensor-bench/internal/sensor"
	"sensor-bench/internal/server"
	"sensor-bench/internal/target"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := server.Bootstrap(ctx, config.ServiceConsumer, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	counters := target.NewCounters()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		counters,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := handlers.NewConsumer(sensor.NewHistory(rt.Config.HistoryLimit), counters, rt.Metrics, rt.Logger)
	r := routers.NewConsumerRouter(rt.Metrics, h, reg, rt.Logger)

	if err := rt.Serve(ctx, r); err != nil {
		rt.Logger.Error("consumer exited with error", zap.Error(err))
		os.Exit(1)
	}
}
