package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

func queuedBatch(storage *memoryStorage, repo *batchRepoFake) *domain.Batch {
	batch := &domain.Batch{
		ID:     "batch-1",
		Status: domain.BatchQueued,
		Files: []domain.BatchFile{
			{Index: 0, Name: "a.pdf", StorageKey: "uploads/a"},
			{Index: 1, Name: "b.pdf", StorageKey: "uploads/b"},
		},
	}
	storage.objects["uploads/a"] = []byte("INV-A")
	storage.objects["uploads/b"] = []byte("INV-B")
	repo.batches[batch.ID] = batch
	return batch
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := newBatchRepoFake()
	storage := newMemoryStorage()
	queuedBatch(storage, repo)
	processor := &processorFake{}
	uc := NewProcessBatchUseCase(repo, storage, processor, nil)

	if err := uc.ProcessByID(context.Background(), "batch-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[0].status != domain.BatchProcessing || repo.statusCalls[1].status != domain.BatchCompleted {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
	files := processor.calls[0]
	if len(files) != 2 || string(files[0].Content) != "INV-A" || files[1].Name != "b.pdf" {
		t.Fatalf("unexpected files handed to coordinator: %+v", files)
	}
	if len(repo.batches["batch-1"].Outcomes) != 2 {
		t.Fatalf("outcomes not saved")
	}
	if storage.count() != 0 {
		t.Fatalf("uploads not removed after completion")
	}
}

func TestProcessByIDMarksFailedOnMissingUpload(t *testing.T) {
	repo := newBatchRepoFake()
	storage := newMemoryStorage()
	queuedBatch(storage, repo)
	delete(storage.objects, "uploads/b")
	uc := NewProcessBatchUseCase(repo, storage, &processorFake{}, nil)

	err := uc.ProcessByID(context.Background(), "batch-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.BatchFailed {
		t.Fatalf("expected processing + failed status updates, got %+v", repo.statusCalls)
	}
	if repo.statusCalls[1].errMsg == "" {
		t.Fatalf("expected failure message to be stored")
	}
}

func TestProcessByIDMarksFailedOnSaveError(t *testing.T) {
	repo := newBatchRepoFake()
	storage := newMemoryStorage()
	queuedBatch(storage, repo)
	repo.saveErr = errors.New("db down")
	uc := NewProcessBatchUseCase(repo, storage, &processorFake{}, nil)

	if err := uc.ProcessByID(context.Background(), "batch-1"); err == nil {
		t.Fatalf("expected error")
	}
	if repo.statusCalls[len(repo.statusCalls)-1].status != domain.BatchFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
}

func TestProcessByIDSkipsCompletedBatch(t *testing.T) {
	repo := newBatchRepoFake()
	storage := newMemoryStorage()
	batch := queuedBatch(storage, repo)
	batch.Status = domain.BatchCompleted
	processor := &processorFake{}
	uc := NewProcessBatchUseCase(repo, storage, processor, nil)

	if err := uc.ProcessByID(context.Background(), "batch-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(processor.calls) != 0 || len(repo.statusCalls) != 0 {
		t.Fatalf("completed batch was processed again")
	}
}

func TestProcessByIDUnknownBatch(t *testing.T) {
	uc := NewProcessBatchUseCase(newBatchRepoFake(), newMemoryStorage(), &processorFake{}, nil)
	if err := uc.ProcessByID(context.Background(), "nope"); !domain.IsKind(err, domain.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
}
