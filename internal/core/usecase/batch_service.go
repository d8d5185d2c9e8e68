package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
	"github.com/kirillkom/invoice-extractor/internal/core/ports"
)

type BatchService struct {
	repo      ports.BatchRepository
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	processor ports.BatchProcessor
	renderer  ports.ReportRenderer
	log       *slog.Logger
}

func NewBatchService(
	repo ports.BatchRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	processor ports.BatchProcessor,
	renderer ports.ReportRenderer,
	logger *slog.Logger,
) *BatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchService{
		repo:      repo,
		storage:   storage,
		queue:     queue,
		processor: processor,
		renderer:  renderer,
		log:       logger,
	}
}

// Run processes the batch in the caller's request and returns it completed.
func (s *BatchService) Run(ctx context.Context, files []domain.UploadedFile) (*domain.Batch, error) {
	if err := validateUploads(files); err != nil {
		return nil, err
	}

	batch := newBatch(domain.BatchProcessing, files)
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	result := s.processor.ProcessBatch(ctx, batch.ID, files)

	if err := s.repo.SaveOutcomes(ctx, batch.ID, result.Outcomes); err != nil {
		return nil, s.markFailed(ctx, batch.ID, fmt.Errorf("save outcomes: %w", err))
	}
	if err := s.repo.UpdateStatus(ctx, batch.ID, domain.BatchCompleted, ""); err != nil {
		return nil, s.markFailed(ctx, batch.ID, fmt.Errorf("set status=completed: %w", err))
	}

	batch.Outcomes = result.Outcomes
	batch.Status = domain.BatchCompleted
	batch.UpdatedAt = time.Now().UTC()
	return batch, nil
}

// Enqueue stores the uploads and hands the batch to a worker.
func (s *BatchService) Enqueue(ctx context.Context, files []domain.UploadedFile) (*domain.Batch, error) {
	if err := validateUploads(files); err != nil {
		return nil, err
	}

	batch := newBatch(domain.BatchQueued, files)
	for i := range batch.Files {
		key := uploadKey(batch.ID, i, files[i].Name)
		if err := s.storage.Save(ctx, key, bytes.NewReader(files[i].Content)); err != nil {
			s.discardUploads(ctx, batch.Files[:i])
			return nil, fmt.Errorf("save upload %q: %w", files[i].Name, err)
		}
		batch.Files[i].StorageKey = key
	}

	if err := s.repo.Create(ctx, batch); err != nil {
		s.discardUploads(ctx, batch.Files)
		return nil, fmt.Errorf("create batch: %w", err)
	}

	if err := s.queue.PublishBatchQueued(ctx, batch.ID); err != nil {
		return nil, fmt.Errorf("publish batch event: %w", err)
	}

	s.log.Info("batch_enqueued", "batch_id", batch.ID, "files", len(files))
	return batch, nil
}

func (s *BatchService) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	batch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return batch, nil
}

// Report renders the spreadsheet for one succeeded file of a batch.
func (s *BatchService) Report(ctx context.Context, batchID string, index int) (domain.Report, error) {
	batch, err := s.GetByID(ctx, batchID)
	if err != nil {
		return domain.Report{}, err
	}

	outcome, ok := batch.Outcome(index)
	if !ok {
		return domain.Report{}, domain.WrapError(domain.ErrNoRecord, "render report",
			fmt.Errorf("batch %s has no outcome for file %d (status %s)", batchID, index, batch.Status))
	}
	if !outcome.Succeeded() {
		return domain.Report{}, domain.WrapError(domain.ErrNoRecord, "render report",
			fmt.Errorf("file %q failed: %s", outcome.FileName, outcome.Reason))
	}

	report, err := s.renderer.Render(outcome.FileName, *outcome.Record)
	if err != nil {
		return domain.Report{}, fmt.Errorf("render report: %w", err)
	}
	return report, nil
}

// markFailed moves the batch to failed with cause as its error and returns cause.
func (s *BatchService) markFailed(ctx context.Context, batchID string, cause error) error {
	if err := s.repo.UpdateStatus(ctx, batchID, domain.BatchFailed, cause.Error()); err != nil {
		return fmt.Errorf("%w; mark failed status: %v", cause, err)
	}
	return cause
}

func (s *BatchService) discardUploads(ctx context.Context, files []domain.BatchFile) {
	for _, file := range files {
		if file.StorageKey == "" {
			continue
		}
		if err := s.storage.Remove(ctx, file.StorageKey); err != nil {
			s.log.Warn("upload_cleanup_failed", "key", file.StorageKey, "error", err)
		}
	}
}

func validateUploads(files []domain.UploadedFile) error {
	if len(files) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate batch", errors.New("batch has no files"))
	}
	for i, file := range files {
		if strings.TrimSpace(file.Name) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "validate batch", fmt.Errorf("file %d has no name", i))
		}
	}
	return nil
}

func newBatch(status domain.BatchStatus, files []domain.UploadedFile) *domain.Batch {
	now := time.Now().UTC()
	batch := &domain.Batch{
		ID:        uuid.NewString(),
		Status:    status,
		Files:     make([]domain.BatchFile, len(files)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, file := range files {
		batch.Files[i] = domain.BatchFile{Index: i, Name: file.Name}
	}
	return batch
}

func uploadKey(batchID string, index int, name string) string {
	return "uploads/" + ScratchKey(batchID, index, name)
}
