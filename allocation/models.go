// Package allocation defines the links that record credits matched against
// debits, and the change set produced by one allocation run.
package allocation

import (
	"time"

	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/transaction"
	"github.com/xraph/receivables/types"
)

// Link records that Amount of a credit was matched against a debit.
// Links are never edited or merged; revisiting the same pair creates a new
// link for the additional increment.
type Link struct {
	ID         id.AllocationID  `json:"id"`
	CustomerID id.CustomerID    `json:"customer_id"`
	CreditID   id.TransactionID `json:"credit_id"`
	DebitID    id.TransactionID `json:"debit_id"`
	Amount     types.Money      `json:"amount"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Touches reports whether the link has txnID as one of its endpoints.
func (l *Link) Touches(txnID id.TransactionID) bool {
	return l.CreditID == txnID || l.DebitID == txnID
}

// Result is the change set of one allocation run: exactly the transactions
// whose allocated amount moved, and the links created for those moves.
// It is persisted as a single atomic batch.
type Result struct {
	CustomerID id.CustomerID              `json:"customer_id"`
	Changed    []*transaction.Transaction `json:"changed"`
	Links      []*Link                    `json:"links"`
}

// Empty reports whether the run changed nothing.
func (r *Result) Empty() bool {
	return r == nil || len(r.Changed) == 0
}

// Allocated is the total amount matched in this run.
func (r *Result) Allocated() types.Money {
	var total types.Money
	for _, l := range r.Links {
		total = total.Add(l.Amount)
	}
	return total
}

// Settled returns the changed transactions that are now fully allocated.
func (r *Result) Settled() []*transaction.Transaction {
	var out []*transaction.Transaction
	for _, t := range r.Changed {
		if t.IsSettled() {
			out = append(out, t)
		}
	}
	return out
}
