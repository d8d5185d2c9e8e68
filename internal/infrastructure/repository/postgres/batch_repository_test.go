package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*BatchRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &BatchRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestCreateStoresFilesAsJSON(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	batch := &domain.Batch{
		ID:        "batch-1",
		Status:    domain.BatchQueued,
		Files:     []domain.BatchFile{{Index: 0, Name: "a.pdf", StorageKey: "uploads/a"}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	filesJSON, _ := json.Marshal(batch.Files)

	mock.ExpectExec("INSERT INTO batches").
		WithArgs("batch-1", "queued", filesJSON, []byte("[]"), "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), batch); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDecodesOutcomes(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	record := domain.InvoiceRecord{InvoiceNumber: "INV-1", Items: []string{"a"}, Quantities: []int{1}, Amounts: []float64{2.5}}
	outcomes, _ := json.Marshal([]domain.FileOutcome{
		domain.SucceededOutcome(0, "a.pdf", record),
		domain.FailedOutcome(1, "b.pdf", domain.FailureExtraction, "b.pdf: quota"),
	})
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, status, files, outcomes").
		WithArgs("batch-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "files", "outcomes", "error_message", "created_at", "updated_at"}).
			AddRow("batch-1", "completed", []byte(`[{"index":0,"name":"a.pdf"},{"index":1,"name":"b.pdf"}]`), outcomes, "", now, now))

	batch, err := repo.GetByID(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if batch.Status != domain.BatchCompleted || len(batch.Files) != 2 || len(batch.Outcomes) != 2 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	first, ok := batch.Outcome(0)
	if !ok || !first.Succeeded() || first.Record.Amounts[0] != 2.5 {
		t.Fatalf("unexpected first outcome: %+v", first)
	}
	if second, _ := batch.Outcome(1); second.FailureKind != domain.FailureExtraction {
		t.Fatalf("unexpected second outcome: %+v", second)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, status, files, outcomes").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE batches").
		WithArgs("missing", string(domain.BatchProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.BatchProcessing, "")
	if !domain.IsKind(err, domain.ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveOutcomesWritesEmptyArrayForNil(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE batches").
		WithArgs("batch-1", []byte("[]"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveOutcomes(context.Background(), "batch-1", nil); err != nil {
		t.Fatalf("SaveOutcomes() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(schemaLockID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS batches").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
