package receivables

import (
	"context"

	"github.com/xraph/receivables/transaction"
)

// PreFinalize runs as part of posting, before the transaction is saved. It
// attaches the open-item marker to a posted transaction that still has an
// outstanding amount. A transaction that already carries the marker, or has
// nothing outstanding, is left alone.
//
// A transaction without a customer cannot become an open item and fails with
// ErrMissingCustomer; the marker is not attached.
func (l *Ledger) PreFinalize(_ context.Context, t *transaction.Transaction) error {
	if !t.IsPosted() {
		return ErrNotPosted
	}
	if t.OpenItem || t.IsSettled() {
		return nil
	}
	if t.CustomerID.IsNil() {
		return ErrMissingCustomer
	}
	if _, ok := t.Kind.Direction(); !ok {
		return ValidationError{Field: "kind", Message: string(t.Kind), Err: ErrUnknownKind}
	}
	t.OpenItem = true
	return nil
}

// markOpenItem sets the marker exactly when t is posted and unsettled.
// It reports whether the marker changed.
func markOpenItem(t *transaction.Transaction) bool {
	open := t.IsPosted() && !t.IsSettled()
	if t.OpenItem == open {
		return false
	}
	t.OpenItem = open
	return true
}
