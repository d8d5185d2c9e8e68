package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

// CredentialVerifier checks a provider credential against the provider API.
type CredentialVerifier interface {
	Verify(ctx context.Context, provider domain.Provider, credential string) (bool, error)
}

// DocumentParser turns a stored file into text suitable for indexing.
type DocumentParser interface {
	Parse(ctx context.Context, path string) (string, error)
}

// Chunker splits text into fixed-size segments.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex holds the segments of a single document during one extraction.
type VectorIndex interface {
	Add(chunks []string, vectors [][]float32) error
	Search(queryVector []float32, limit int) []domain.RetrievedChunk
}

// IndexFactory creates an empty index per extraction.
type IndexFactory func() VectorIndex

// LanguageModel answers a single prompt.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ObjectStorage stores files by key on local or remote storage.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// ScratchStorage is object storage whose objects are addressable as local paths.
type ScratchStorage interface {
	ObjectStorage
	Path(key string) string
}

// BatchRepository persists batch state and outcomes.
type BatchRepository interface {
	Create(ctx context.Context, batch *domain.Batch) error
	GetByID(ctx context.Context, id string) (*domain.Batch, error)
	UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, errMessage string) error
	SaveOutcomes(ctx context.Context, id string, outcomes []domain.FileOutcome) error
}

// MessageQueue publishes/consumes queued batch events.
type MessageQueue interface {
	PublishBatchQueued(ctx context.Context, batchID string) error
	SubscribeBatchQueued(ctx context.Context, handler func(context.Context, string) error) error
}

// ReportRenderer renders one invoice record as a spreadsheet.
type ReportRenderer interface {
	Render(fileName string, record domain.InvoiceRecord) (domain.Report, error)
}

// FileObserver receives per-file lifecycle signals, typically for metrics.
type FileObserver interface {
	FileStarted()
	FileFinished(outcome domain.FileOutcome, duration time.Duration)
	ScratchCleanupFailed()
	BatchStarted(size int)
}
