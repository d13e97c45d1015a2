package receivables

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/xraph/receivables/customer"
)

// StreamOverdueCustomers lazily filters customers down to those with a
// positive overdue balance in the given window. Each candidate is evaluated
// only when the consumer asks for the next element, the source is walked
// once in order, and stopping early evaluates nothing further.
//
// A failed balance lookup is yielded together with its customer; the
// consumer decides whether to keep going.
func (l *Ledger) StreamOverdueCustomers(ctx context.Context, customers iter.Seq[*customer.Customer], asOf time.Time, fromDays, toDays int) iter.Seq2[*customer.Customer, error] {
	window := Bracket{FromDays: fromDays, ToDays: toDays}

	return func(yield func(*customer.Customer, error) bool) {
		for c := range customers {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			amount, err := l.overdueBalance(ctx, c, asOf, window)
			if err != nil {
				if !yield(c, err) {
					return
				}
				continue
			}
			if !amount.IsPositive() {
				continue
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

// CustomersWithOpenItems is the usual source for StreamOverdueCustomers:
// every customer that holds at least one open item, in ID order.
func (l *Ledger) CustomersWithOpenItems(ctx context.Context) (iter.Seq[*customer.Customer], error) {
	customers, err := l.store.ListCustomersWithOpenItems(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Values(customers), nil
}
