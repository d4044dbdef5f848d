package invoice

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the ledger and the PDF pipeline
// matches exactly one of these with errors.Is.
var (
	// ErrNotFound is returned when no invoice matches the given number.
	ErrNotFound = errors.New("invoice not found")

	// ErrValidation is returned when creation or scheduling input is malformed.
	ErrValidation = errors.New("invalid invoice input")

	// ErrConcurrencyConflict is returned when two writers claimed the same
	// invoice number. Allocation is atomic, so this indicates a broken store.
	ErrConcurrencyConflict = errors.New("invoice number conflict")

	// ErrStorage is returned when a persistence operation fails.
	ErrStorage = errors.New("invoice storage failure")

	// ErrRender is returned when the headless renderer fails or produces
	// something that is not a PDF.
	ErrRender = errors.New("invoice PDF rendering failed")

	// ErrRenderTimeout is returned when rendering exceeds its time budget.
	ErrRenderTimeout = errors.New("invoice PDF rendering timed out")

	// ErrRenderInProgress is returned when another process holds the render
	// lock for the same invoice.
	ErrRenderInProgress = errors.New("invoice PDF rendering already in progress")

	// ErrPartialCleanup marks a failed PDF removal during delete. It is
	// reported in DeleteResult and logged, never returned from Delete.
	ErrPartialCleanup = errors.New("invoice artifact cleanup incomplete")
)

// LedgerError wraps a failure with the operation and invoice it concerns.
type LedgerError struct {
	// Op is the operation that failed (e.g., "Create", "Render").
	Op string

	// InvoiceNumber is the invoice involved, if one was known.
	InvoiceNumber string

	// Kind is one of the sentinel errors above.
	Kind error

	// Err is the underlying cause; may be nil.
	Err error
}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	var msg string
	if e.InvoiceNumber != "" {
		msg = fmt.Sprintf("invoice: %s %s: %v", e.Op, e.InvoiceNumber, e.Kind)
	} else {
		msg = fmt.Sprintf("invoice: %s: %v", e.Op, e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *LedgerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newLedgerError(op, number string, kind, err error) *LedgerError {
	return &LedgerError{Op: op, InvoiceNumber: number, Kind: kind, Err: err}
}

// storageError classifies a store failure, keeping not-found and
// duplicate-number conditions distinct from generic storage errors.
func storageError(op, number string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return newLedgerError(op, number, ErrNotFound, nil)
	case errors.Is(err, ErrConcurrencyConflict):
		return newLedgerError(op, number, ErrConcurrencyConflict, err)
	}

	var le *LedgerError
	if errors.As(err, &le) {
		return err // Already classified
	}
	return newLedgerError(op, number, ErrStorage, err)
}

// ValidationError represents errors in invoice or schedule input.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
