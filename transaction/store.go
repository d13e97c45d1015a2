package transaction

import (
	"context"

	"github.com/xraph/receivables/id"
)

type Store interface {
	CreateTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, txnID id.TransactionID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, customerID id.CustomerID, opts ListOpts) ([]*Transaction, error)
	ListOpenItems(ctx context.Context, customerID id.CustomerID) ([]*Transaction, error)
	MostRecentTransaction(ctx context.Context, customerID id.CustomerID, kinds ...Kind) (*Transaction, error)
}

// ListOpts filters ListTransactions. Empty slices match everything.
type ListOpts struct {
	States []State
	Kinds  []Kind
	Limit  int
	Offset int
}

// Matches reports whether t passes the state and kind filters.
func (o ListOpts) Matches(t *Transaction) bool {
	return containsState(o.States, t.State) && containsKind(o.Kinds, t.Kind)
}

func containsState(states []State, s State) bool {
	if len(states) == 0 {
		return true
	}
	for _, v := range states {
		if v == s {
			return true
		}
	}
	return false
}

func containsKind(kinds []Kind, k Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}
