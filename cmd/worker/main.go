package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/bootstrap"
	"github.com/kirillkom/invoice-extractor/internal/config"
	"github.com/kirillkom/invoice-extractor/internal/observability/logging"
	"github.com/kirillkom/invoice-extractor/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := metrics.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(serviceName, registry)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:         logger,
		Observer:       pipelineMetrics,
		OnQueueReceive: pipelineMetrics.ObserveQueueLag,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux(metrics.Handler(registry)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeBatchQueued(ctx, func(handlerCtx context.Context, batchID string) error {
		processCtx := handlerCtx
		if timeout := cfg.BatchTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			processCtx, cancel = context.WithTimeout(handlerCtx, timeout)
			defer cancel()
		}

		start := time.Now()
		err := app.ProcessUC.ProcessByID(processCtx, batchID)
		pipelineMetrics.FinishBatch(time.Since(start), err)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func metricsMux(handler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}
