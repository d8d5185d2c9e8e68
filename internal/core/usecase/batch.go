package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
	"github.com/kirillkom/invoice-extractor/internal/core/ports"
)

// BatchCoordinator runs one task per file and joins the outcomes in input order.
type BatchCoordinator struct {
	files    ports.FileProcessor
	observer ports.FileObserver
	log      *slog.Logger
}

func NewBatchCoordinator(files ports.FileProcessor, observer ports.FileObserver, logger *slog.Logger) *BatchCoordinator {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchCoordinator{files: files, observer: observer, log: logger}
}

func (c *BatchCoordinator) ProcessBatch(ctx context.Context, batchID string, files []domain.UploadedFile) domain.BatchResult {
	if batchID == "" {
		batchID = uuid.NewString()
	}
	start := time.Now()
	c.observer.BatchStarted(len(files))
	c.log.Info("batch_started", "batch_id", batchID, "files", len(files))

	outcomes := make([]domain.FileOutcome, len(files))

	// Tasks never return errors, so the group only serves as a join.
	var group errgroup.Group
	for i, file := range files {
		group.Go(func() error {
			outcomes[i] = c.runOne(ctx, batchID, i, file)
			return nil
		})
	}
	_ = group.Wait()

	result := domain.BatchResult{BatchID: batchID, Outcomes: outcomes}
	c.log.Info("batch_finished",
		"batch_id", batchID,
		"files", len(files),
		"succeeded", result.SucceededCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result
}

func (c *BatchCoordinator) runOne(ctx context.Context, batchID string, index int, file domain.UploadedFile) (outcome domain.FileOutcome) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("file_task_panic",
				"batch_id", batchID,
				"index", index,
				"file", file.Name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			outcome = domain.FailedOutcome(index, file.Name, domain.FailureInternal,
				fmt.Sprintf("%s: internal error: %v", file.Name, r))
		}
	}()
	return c.files.ProcessOne(ctx, batchID, index, file)
}
