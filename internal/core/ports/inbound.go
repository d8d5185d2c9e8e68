package ports

import (
	"context"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

// Extractor returns the raw model answer for a file on local storage.
type Extractor interface {
	Extract(ctx context.Context, filePath string) (string, error)
}

// RecordNormalizer turns raw model output into a validated invoice record.
type RecordNormalizer interface {
	Normalize(raw string) (domain.InvoiceRecord, error)
}

// FileProcessor runs the full lifecycle of one file and never returns an error.
type FileProcessor interface {
	ProcessOne(ctx context.Context, batchID string, index int, file domain.UploadedFile) domain.FileOutcome
}

// BatchProcessor runs every file of a batch and joins the outcomes in input order.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batchID string, files []domain.UploadedFile) domain.BatchResult
}

// BatchSubmitter is the inbound contract for batch submission.
type BatchSubmitter interface {
	Run(ctx context.Context, files []domain.UploadedFile) (*domain.Batch, error)
	Enqueue(ctx context.Context, files []domain.UploadedFile) (*domain.Batch, error)
}

// BatchReader is the read model for batch state and rendered reports.
type BatchReader interface {
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	Report(ctx context.Context, batchID string, index int) (domain.Report, error)
}

// QueuedBatchProcessor is the inbound contract for asynchronous batch processing.
type QueuedBatchProcessor interface {
	ProcessByID(ctx context.Context, batchID string) error
}
