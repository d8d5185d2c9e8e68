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

	httpadapter "github.com/kirillkom/invoice-extractor/internal/adapters/http"
	"github.com/kirillkom/invoice-extractor/internal/bootstrap"
	"github.com/kirillkom/invoice-extractor/internal/config"
	"github.com/kirillkom/invoice-extractor/internal/observability/logging"
	"github.com/kirillkom/invoice-extractor/internal/observability/metrics"
)

const serviceName = "api"

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
	httpMetrics := metrics.NewHTTPServerMetrics(serviceName, registry)
	pipelineMetrics := metrics.NewPipelineMetrics(serviceName, registry)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger, Observer: pipelineMetrics})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, app.Batches, app.Pipeline.Verifier,
		httpadapter.WithMetrics(httpMetrics, metrics.Handler(registry)),
		httpadapter.WithLogger(logger),
	)
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}

// Synchronous batches hold the response open until every file finishes.
func writeTimeout(cfg config.Config) time.Duration {
	if cfg.BatchTimeoutSeconds > 0 {
		return cfg.BatchTimeout() + 30*time.Second
	}
	return 10 * time.Minute
}
