package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
	"github.com/kirillkom/invoice-extractor/internal/core/ports"
)

// FileLifecycleManager carries one file from raw bytes to a FileOutcome.
// Scratch copies are removed on every path out of ProcessOne.
type FileLifecycleManager struct {
	scratch     ports.ScratchStorage
	extractor   ports.Extractor
	normalizer  ports.RecordNormalizer
	observer    ports.FileObserver
	fileTimeout time.Duration
	log         *slog.Logger
}

type LifecycleOption func(*FileLifecycleManager)

// WithFileTimeout bounds each file's processing; zero means no deadline.
func WithFileTimeout(timeout time.Duration) LifecycleOption {
	return func(m *FileLifecycleManager) {
		m.fileTimeout = timeout
	}
}

func WithFileObserver(observer ports.FileObserver) LifecycleOption {
	return func(m *FileLifecycleManager) {
		if observer != nil {
			m.observer = observer
		}
	}
}

func WithLifecycleLogger(logger *slog.Logger) LifecycleOption {
	return func(m *FileLifecycleManager) {
		if logger != nil {
			m.log = logger
		}
	}
}

func NewFileLifecycleManager(
	scratch ports.ScratchStorage,
	extractor ports.Extractor,
	normalizer ports.RecordNormalizer,
	opts ...LifecycleOption,
) *FileLifecycleManager {
	m := &FileLifecycleManager{
		scratch:    scratch,
		extractor:  extractor,
		normalizer: normalizer,
		observer:   noopObserver{},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *FileLifecycleManager) ProcessOne(ctx context.Context, batchID string, index int, file domain.UploadedFile) domain.FileOutcome {
	if m.fileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.fileTimeout)
		defer cancel()
	}

	start := time.Now()
	m.observer.FileStarted()
	m.log.Info("file_processing_started", "batch_id", batchID, "index", index, "file", file.Name)

	outcome := m.process(ctx, batchID, index, file)

	duration := time.Since(start)
	m.observer.FileFinished(outcome, duration)
	attrs := []any{
		"batch_id", batchID,
		"index", index,
		"file", file.Name,
		"status", outcome.Status,
		"duration_ms", duration.Milliseconds(),
	}
	if !outcome.Succeeded() {
		attrs = append(attrs, "failure_kind", outcome.FailureKind, "reason", outcome.Reason)
	}
	m.log.Info("file_processing_finished", attrs...)
	return outcome
}

func (m *FileLifecycleManager) process(ctx context.Context, batchID string, index int, file domain.UploadedFile) domain.FileOutcome {
	key := ScratchKey(batchID, index, file.Name)
	if err := m.scratch.Save(ctx, key, bytes.NewReader(file.Content)); err != nil {
		// A partial write may still have left a file behind.
		m.cleanup(batchID, index, file.Name, key)
		return m.failure(ctx, index, file.Name, domain.FailureScratchWrite, fmt.Errorf("persist to scratch: %w", err))
	}
	defer m.cleanup(batchID, index, file.Name, key)

	raw, err := m.extractor.Extract(ctx, m.scratch.Path(key))
	if err != nil {
		return m.failure(ctx, index, file.Name, domain.FailureExtraction, err)
	}

	record, err := m.normalizer.Normalize(raw)
	if err != nil {
		return m.failure(ctx, index, file.Name, domain.FailureStructuralValidation, err)
	}
	return domain.SucceededOutcome(index, file.Name, record)
}

func (m *FileLifecycleManager) failure(ctx context.Context, index int, name string, kind domain.FailureKind, err error) domain.FileOutcome {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		kind = domain.FailureCanceled
	}
	return domain.FailedOutcome(index, name, kind, fmt.Sprintf("%s: %v", name, err))
}

// cleanup runs with a fresh context so a canceled batch still removes its scratch files.
func (m *FileLifecycleManager) cleanup(batchID string, index int, name, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.scratch.Remove(ctx, key); err != nil {
		m.observer.ScratchCleanupFailed()
		m.log.Warn("scratch_cleanup_failed",
			"batch_id", batchID,
			"index", index,
			"file", name,
			"error", domain.WrapError(domain.ErrResourceCleanup, "remove scratch", err),
		)
	}
}

// ScratchKey names the scratch copy of one file; it is unique per batch and position.
func ScratchKey(batchID string, index int, name string) string {
	return fmt.Sprintf("%s_%d_%s", batchID, index, sanitizeFilename(name))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}

type noopObserver struct{}

func (noopObserver) FileStarted()                                   {}
func (noopObserver) FileFinished(domain.FileOutcome, time.Duration) {}
func (noopObserver) ScratchCleanupFailed()                          {}
func (noopObserver) BatchStarted(int)                               {}
