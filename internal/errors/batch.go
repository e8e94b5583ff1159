package errors

import (
	"fmt"
	"strings"
)

// BatchError collects every per-row failure of a bulk operation so the caller
// can correct the whole input in one round trip.
type BatchError struct {
	Operation string
	Messages  []string
}

// Error implements the error interface
func (b *BatchError) Error() string {
	if len(b.Messages) == 1 {
		return fmt.Sprintf("%s: %s", b.Operation, b.Messages[0])
	}
	return fmt.Sprintf("%s: %d rows failed validation: %s",
		b.Operation, len(b.Messages), strings.Join(b.Messages, "; "))
}

// ErrorCategory implements CategorizedError
func (b *BatchError) ErrorCategory() ErrorCategory {
	return CategoryValidationBatch
}

// Add records a row-level failure.
func (b *BatchError) Add(format string, args ...any) {
	b.Messages = append(b.Messages, fmt.Sprintf(format, args...))
}

// AddRow records a failure prefixed with its 1-based row number.
func (b *BatchError) AddRow(row int, format string, args ...any) {
	b.Messages = append(b.Messages, fmt.Sprintf("row %d: ", row)+fmt.Sprintf(format, args...))
}

// HasErrors reports whether any row failed.
func (b *BatchError) HasErrors() bool {
	return len(b.Messages) > 0
}

// OrNil returns the batch as an error only when it holds messages.
func (b *BatchError) OrNil() error {
	if b.HasErrors() {
		return b
	}
	return nil
}

// NewBatch starts an empty batch for the named operation.
func NewBatch(operation string) *BatchError {
	return &BatchError{Operation: operation}
}

// BatchMessages extracts the row messages from err when it is a batch failure.
func BatchMessages(err error) []string {
	var b *BatchError
	if As(err, &b) {
		return append([]string(nil), b.Messages...)
	}
	return nil
}
