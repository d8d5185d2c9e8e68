package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
	"github.com/kirillkom/invoice-extractor/internal/core/ports"
)

// ProcessBatchUseCase runs queued batches on the worker.
type ProcessBatchUseCase struct {
	repo      ports.BatchRepository
	storage   ports.ObjectStorage
	processor ports.BatchProcessor
	log       *slog.Logger
}

func NewProcessBatchUseCase(
	repo ports.BatchRepository,
	storage ports.ObjectStorage,
	processor ports.BatchProcessor,
	logger *slog.Logger,
) *ProcessBatchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessBatchUseCase{
		repo:      repo,
		storage:   storage,
		processor: processor,
		log:       logger,
	}
}

func (uc *ProcessBatchUseCase) ProcessByID(ctx context.Context, batchID string) error {
	batch, err := uc.loadBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status == domain.BatchCompleted {
		// Redelivered event for a batch that already finished.
		uc.log.Info("batch_already_completed", "batch_id", batchID)
		return nil
	}

	if err := uc.markStatus(ctx, batchID, domain.BatchProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, batch); err != nil {
		if failErr := uc.markFailed(ctx, batchID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, batchID, domain.BatchCompleted, ""); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}

	uc.removeUploads(ctx, batch)
	return nil
}

func (uc *ProcessBatchUseCase) processPipeline(ctx context.Context, batch *domain.Batch) error {
	files, err := uc.loadUploads(ctx, batch)
	if err != nil {
		return err
	}

	result := uc.processor.ProcessBatch(ctx, batch.ID, files)

	if err := uc.repo.SaveOutcomes(ctx, batch.ID, result.Outcomes); err != nil {
		return fmt.Errorf("save outcomes: %w", err)
	}
	return nil
}

func (uc *ProcessBatchUseCase) loadBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	batch, err := uc.repo.GetByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("fetch batch by id: %w", err)
	}
	return batch, nil
}

func (uc *ProcessBatchUseCase) loadUploads(ctx context.Context, batch *domain.Batch) ([]domain.UploadedFile, error) {
	files := make([]domain.UploadedFile, len(batch.Files))
	for i, file := range batch.Files {
		content, err := uc.readObject(ctx, file.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("load upload %q: %w", file.Name, err)
		}
		files[i] = domain.UploadedFile{Name: file.Name, Content: content}
	}
	return files, nil
}

func (uc *ProcessBatchUseCase) readObject(ctx context.Context, key string) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func (uc *ProcessBatchUseCase) removeUploads(ctx context.Context, batch *domain.Batch) {
	for _, file := range batch.Files {
		if err := uc.storage.Remove(ctx, file.StorageKey); err != nil {
			uc.log.Warn("upload_cleanup_failed", "batch_id", batch.ID, "key", file.StorageKey, "error", err)
		}
	}
}

func (uc *ProcessBatchUseCase) markStatus(ctx context.Context, batchID string, status domain.BatchStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, batchID, status, errMessage)
}

func (uc *ProcessBatchUseCase) markFailed(ctx context.Context, batchID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, batchID, domain.BatchFailed, processErr.Error())
}
