package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

const invoiceLiteral = `{
    'Invoice Number': 'INV-001',
    'Date': '2024-03-01',
    'Customer Name': 'Acme Corp',
    'All items': ['Widget: Blue, large', 'Gadget'],
    'Quantities': [2, 1],
    'Amounts': [100, 50.5],
    'Tax': 15,
    'Total Amount': 165.5
}`

// memoryStorage is an in-memory ScratchStorage/ObjectStorage.
type memoryStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	saveErr   error
	removeErr error
	removed   []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (s *memoryStorage) Save(_ context.Context, key string, data io.Reader) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = raw
	return nil
}

func (s *memoryStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found: " + key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (s *memoryStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, key)
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.objects, key)
	return nil
}

func (s *memoryStorage) Path(key string) string {
	return "/scratch/" + key
}

func (s *memoryStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *memoryStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// extractorFunc adapts a function to ports.Extractor.
type extractorFunc func(ctx context.Context, filePath string) (string, error)

func (f extractorFunc) Extract(ctx context.Context, filePath string) (string, error) {
	return f(ctx, filePath)
}

type normalizerFunc func(raw string) (domain.InvoiceRecord, error)

func (f normalizerFunc) Normalize(raw string) (domain.InvoiceRecord, error) {
	return f(raw)
}

type observerFake struct {
	mu            sync.Mutex
	started       int
	finished      []domain.FileOutcome
	cleanupFailed int
	batchSizes    []int
}

func (o *observerFake) FileStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *observerFake) FileFinished(outcome domain.FileOutcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, outcome)
}

func (o *observerFake) ScratchCleanupFailed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleanupFailed++
}

func (o *observerFake) BatchStarted(size int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batchSizes = append(o.batchSizes, size)
}

type statusCall struct {
	status domain.BatchStatus
	errMsg string
}

type batchRepoFake struct {
	batches     map[string]*domain.Batch
	createErr   error
	saveErr     error
	statusCalls []statusCall
}

func newBatchRepoFake() *batchRepoFake {
	return &batchRepoFake{batches: map[string]*domain.Batch{}}
}

func (f *batchRepoFake) Create(_ context.Context, batch *domain.Batch) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyBatch := *batch
	f.batches[batch.ID] = &copyBatch
	return nil
}

func (f *batchRepoFake) GetByID(_ context.Context, id string) (*domain.Batch, error) {
	batch, ok := f.batches[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrBatchNotFound, "get batch", errors.New(id))
	}
	copyBatch := *batch
	return &copyBatch, nil
}

func (f *batchRepoFake) UpdateStatus(_ context.Context, id string, status domain.BatchStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if batch, ok := f.batches[id]; ok {
		batch.Status = status
		batch.Error = errMessage
	}
	return nil
}

func (f *batchRepoFake) SaveOutcomes(_ context.Context, id string, outcomes []domain.FileOutcome) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if batch, ok := f.batches[id]; ok {
		batch.Outcomes = outcomes
	}
	return nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishBatchQueued(_ context.Context, batchID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, batchID)
	return nil
}

func (f *queueFake) SubscribeBatchQueued(context.Context, func(context.Context, string) error) error {
	return nil
}

// processorFake records the files it was handed and succeeds for each of them.
type processorFake struct {
	calls [][]domain.UploadedFile
}

func (f *processorFake) ProcessBatch(_ context.Context, batchID string, files []domain.UploadedFile) domain.BatchResult {
	f.calls = append(f.calls, files)
	outcomes := make([]domain.FileOutcome, len(files))
	for i, file := range files {
		outcomes[i] = domain.SucceededOutcome(i, file.Name, domain.InvoiceRecord{InvoiceNumber: string(file.Content)})
	}
	return domain.BatchResult{BatchID: batchID, Outcomes: outcomes}
}

type rendererFake struct {
	rendered []string
}

func (f *rendererFake) Render(fileName string, record domain.InvoiceRecord) (domain.Report, error) {
	f.rendered = append(f.rendered, fileName)
	return domain.Report{FileName: fileName + ".xlsx", Content: []byte(record.InvoiceNumber)}, nil
}
