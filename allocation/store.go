package allocation

import (
	"context"

	"github.com/xraph/receivables/id"
)

type Store interface {
	// SaveAllocations persists the changed transactions and new links of r
	// all-or-nothing. A transaction whose stored version no longer matches
	// the one it was loaded with aborts the whole batch.
	SaveAllocations(ctx context.Context, r *Result) error
	ListLinks(ctx context.Context, txnID id.TransactionID) ([]*Link, error)
}
