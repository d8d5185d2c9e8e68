package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/config"
	"github.com/kirillkom/invoice-extractor/internal/core/ports"
	"github.com/kirillkom/invoice-extractor/internal/core/usecase"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/resilience"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/storage/localfs"
)

type Options struct {
	Logger   *slog.Logger
	Observer ports.FileObserver
	// OnQueueReceive sees how long each batch event waited on the queue.
	OnQueueReceive func(lag time.Duration)
}

type App struct {
	Config   config.Config
	Pipeline *Pipeline

	Queue     ports.MessageQueue
	Batches   *usecase.BatchService
	ProcessUC ports.QueuedBatchProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pipeline, err := NewPipeline(ctx, cfg, logger, opts.Observer)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewBatchRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilienceConfig(cfg)),
		OnReceive:          opts.OnQueueReceive,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	batches := usecase.NewBatchService(repo, storage, queue, pipeline.Coordinator, xlsx.NewAssembler(logger), logger)
	processUC := usecase.NewProcessBatchUseCase(repo, storage, pipeline.Coordinator, logger)

	return &App{
		Config:    cfg,
		Pipeline:  pipeline,
		Queue:     queue,
		Batches:   batches,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
