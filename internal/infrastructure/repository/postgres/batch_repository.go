package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

const schemaLockID int64 = 2024030101

type BatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS batches (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	files JSONB NOT NULL DEFAULT '[]'::jsonb,
	outcomes JSONB NOT NULL DEFAULT '[]'::jsonb,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *BatchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	filesJSON, err := json.Marshal(nonNilFiles(batch.Files))
	if err != nil {
		return fmt.Errorf("marshal files: %w", err)
	}
	outcomesJSON, err := json.Marshal(nonNilOutcomes(batch.Outcomes))
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO batches (id, status, files, outcomes, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		batch.ID, string(batch.Status), filesJSON, outcomesJSON, batch.Error, batch.CreatedAt, batch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *BatchRepository) GetByID(ctx context.Context, id string) (*domain.Batch, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, status, files, outcomes, error_message, created_at, updated_at
FROM batches
WHERE id = $1
`, id)

	var batch domain.Batch
	var filesRaw, outcomesRaw []byte
	var status string

	err := row.Scan(&batch.ID, &status, &filesRaw, &outcomesRaw, &batch.Error, &batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrBatchNotFound, "get batch", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}

	if err := json.Unmarshal(filesRaw, &batch.Files); err != nil {
		return nil, fmt.Errorf("unmarshal files: %w", err)
	}
	if err := json.Unmarshal(outcomesRaw, &batch.Outcomes); err != nil {
		return nil, fmt.Errorf("unmarshal outcomes: %w", err)
	}
	batch.Status = domain.BatchStatus(status)
	return &batch, nil
}

func (r *BatchRepository) UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE batches
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	return requireRow(result, "update batch status", id)
}

func (r *BatchRepository) SaveOutcomes(ctx context.Context, id string, outcomes []domain.FileOutcome) error {
	outcomesJSON, err := json.Marshal(nonNilOutcomes(outcomes))
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE batches
SET outcomes = $2, updated_at = $3
WHERE id = $1
`, id, outcomesJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save outcomes: %w", err)
	}
	return requireRow(result, "save outcomes", id)
}

func requireRow(result sql.Result, operation, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrBatchNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}

func nonNilFiles(files []domain.BatchFile) []domain.BatchFile {
	if files == nil {
		return []domain.BatchFile{}
	}
	return files
}

func nonNilOutcomes(outcomes []domain.FileOutcome) []domain.FileOutcome {
	if outcomes == nil {
		return []domain.FileOutcome{}
	}
	return outcomes
}
