package domain

import "time"

type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

type FailureKind string

const (
	FailureScratchWrite         FailureKind = "scratch_write_failed"
	FailureExtraction           FailureKind = "extraction_failed"
	FailureStructuralValidation FailureKind = "structural_validation_failed"
	FailureCanceled             FailureKind = "canceled"
	FailureInternal             FailureKind = "internal_error"
)

// FileOutcome is the result for exactly one file of a batch: a record or a failure reason.
type FileOutcome struct {
	Index       int            `json:"index"`
	FileName    string         `json:"file_name"`
	Status      OutcomeStatus  `json:"status"`
	Record      *InvoiceRecord `json:"record,omitempty"`
	FailureKind FailureKind    `json:"failure_kind,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

func SucceededOutcome(index int, fileName string, record InvoiceRecord) FileOutcome {
	return FileOutcome{
		Index:    index,
		FileName: fileName,
		Status:   OutcomeSucceeded,
		Record:   &record,
	}
}

func FailedOutcome(index int, fileName string, kind FailureKind, reason string) FileOutcome {
	return FileOutcome{
		Index:       index,
		FileName:    fileName,
		Status:      OutcomeFailed,
		FailureKind: kind,
		Reason:      reason,
	}
}

func (o FileOutcome) Succeeded() bool {
	return o.Status == OutcomeSucceeded && o.Record != nil
}

// BatchResult holds one outcome per input file, in input order.
type BatchResult struct {
	BatchID  string        `json:"batch_id"`
	Outcomes []FileOutcome `json:"outcomes"`
}

func (r BatchResult) SucceededCount() int {
	n := 0
	for _, outcome := range r.Outcomes {
		if outcome.Succeeded() {
			n++
		}
	}
	return n
}

type BatchStatus string

const (
	BatchQueued     BatchStatus = "queued"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// BatchFile points at an upload kept in object storage until a worker picks the batch up.
type BatchFile struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	StorageKey string `json:"storage_key,omitempty"`
}

type Batch struct {
	ID        string        `json:"id"`
	Status    BatchStatus   `json:"status"`
	Files     []BatchFile   `json:"files"`
	Outcomes  []FileOutcome `json:"outcomes,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Outcome returns the stored outcome for a file index.
func (b *Batch) Outcome(index int) (FileOutcome, bool) {
	for _, outcome := range b.Outcomes {
		if outcome.Index == index {
			return outcome, true
		}
	}
	return FileOutcome{}, false
}
