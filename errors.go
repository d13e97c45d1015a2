package receivables

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrAlreadyExists = errors.New("receivables: already exists")
	ErrInvalidInput  = errors.New("receivables: invalid input")

	// Customer errors
	ErrCustomerNotFound = errors.New("receivables: customer not found")
	ErrMissingCustomer  = errors.New("receivables: transaction has no customer")

	// Transaction errors
	ErrTransactionNotFound = errors.New("receivables: transaction not found")
	ErrUnknownKind         = errors.New("receivables: unknown transaction kind")
	ErrInvalidAmount       = errors.New("receivables: invalid amount")
	ErrCurrencyMismatch    = errors.New("receivables: currency does not match customer")
	ErrNotPosted           = errors.New("receivables: transaction is not posted")
	ErrAlreadyPosted       = errors.New("receivables: transaction already posted")

	// Allocation errors
	ErrConcurrentModification = errors.New("receivables: transaction modified concurrently")

	// Store errors
	ErrStoreClosed     = errors.New("receivables: store is closed")
	ErrMigrationFailed = errors.New("receivables: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("receivables: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap exposes the sentinel the validation failure maps to, if any.
func (e ValidationError) Unwrap() error { return e.Err }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "receivables: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("receivables: %d errors occurred", len(e.Errors))
}

// Unwrap lets errors.Is and errors.As see every collected error.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Err returns nil when empty, the sole error when there is one, and the
// MultiError itself otherwise.
func (e MultiError) Err() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	default:
		return e
	}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}

// IsRetryable returns true if the operation can be retried from scratch.
// A concurrent modification is retryable because Recompute always reloads
// open items.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
