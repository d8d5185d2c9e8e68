package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrTemporary     = errors.New("temporary failure")
	ErrBatchNotFound = errors.New("batch not found")
	ErrNoRecord      = errors.New("outcome has no invoice record")

	ErrCredentialInvalid     = errors.New("credential rejected by provider")
	ErrCredentialCheckFailed = errors.New("credential check failed")
	ErrExtractionFailed      = errors.New("extraction failed")
	ErrStructuralValidation  = errors.New("structural validation failed")
	ErrResourceCleanup       = errors.New("resource cleanup failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ValidationError reports why raw model output does not fit the invoice record shape.
// Key is the canonical record key at fault, empty when the whole value is malformed.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %s", ErrStructuralValidation, e.Reason)
	}
	return fmt.Sprintf("%s: key %q: %s", ErrStructuralValidation, e.Key, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrStructuralValidation
}
