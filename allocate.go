package receivables

import (
	"context"
	"time"

	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/transaction"
)

// Recompute matches the customer's open credits against their open debits
// and persists the outcome as one atomic batch.
//
// Credits are walked most recent first, and each credit is applied to the
// open debits in the same order until it runs out. Every partial match
// creates a new link. A run that matches nothing writes nothing, so calling
// Recompute again right after a successful run is a no-op.
//
// A store failure, including ErrConcurrentModification when another writer
// touched one of the items in between, is returned unchanged; nothing from
// the failed run is persisted.
func (l *Ledger) Recompute(ctx context.Context, customerID id.CustomerID) (*allocation.Result, error) {
	if customerID.IsNil() {
		return nil, ErrMissingCustomer
	}

	start := time.Now()

	items, err := l.store.ListOpenItems(ctx, customerID)
	if err != nil {
		l.plugins.EmitAllocationFailed(ctx, customerID, err)
		return nil, err
	}

	res := allocate(customerID, items, l.clock().UTC())
	if res.Empty() {
		l.logger.Debug("allocation found nothing to match",
			"customer_id", customerID.String(),
			"open_items", len(items),
		)
		return res, nil
	}

	if err := l.store.SaveAllocations(ctx, res); err != nil {
		l.logger.Warn("allocation failed",
			"customer_id", customerID.String(),
			"changed", len(res.Changed),
			"error", err,
		)
		l.plugins.EmitAllocationFailed(ctx, customerID, err)
		return nil, err
	}

	elapsed := time.Since(start)
	l.logger.Info("allocations applied",
		"customer_id", customerID.String(),
		"links", len(res.Links),
		"changed", len(res.Changed),
		"amount", res.Allocated().String(),
		"elapsed", elapsed,
	)

	l.plugins.EmitAllocationsApplied(ctx, res, elapsed)
	for _, t := range res.Settled() {
		l.plugins.EmitOpenItemSettled(ctx, t)
	}

	return res, nil
}

// allocator holds one run's working set. Every transaction is represented
// by exactly one instance, so increments made through a credit are seen when
// the same debit is visited again.
type allocator struct {
	customerID id.CustomerID
	now        time.Time

	arena   map[string]*transaction.Transaction
	changed []*transaction.Transaction
	seen    map[string]bool
	links   []*allocation.Link
}

// allocate computes the allocation run for items, which must be the
// customer's open items ordered most recent first. It does not touch the
// store.
func allocate(customerID id.CustomerID, items []*transaction.Transaction, now time.Time) *allocation.Result {
	a := &allocator{
		customerID: customerID,
		now:        now,
		arena:      make(map[string]*transaction.Transaction, len(items)),
		seen:       make(map[string]bool),
	}

	var credits, debits []*transaction.Transaction
	for _, item := range items {
		if _, dup := a.arena[item.ID.String()]; dup {
			continue
		}
		if !item.IsPosted() {
			continue
		}
		a.arena[item.ID.String()] = item

		// An item already fully allocated only needs its marker dropped.
		if markOpenItem(item) {
			a.touch(item)
		}
		if !item.OpenItem {
			continue
		}

		switch item.Direction {
		case transaction.Debit:
			debits = append(debits, item)
		case transaction.Credit:
			credits = append(credits, item)
		}
	}

	for _, c := range credits {
		for _, d := range debits {
			if c.IsSettled() {
				break
			}
			if d.IsSettled() {
				continue
			}
			a.match(c, d)
		}
	}

	return &allocation.Result{
		CustomerID: customerID,
		Changed:    a.changed,
		Links:      a.links,
	}
}

// match allocates as much of credit c as debit d can absorb.
func (a *allocator) match(c, d *transaction.Transaction) {
	amount := c.Outstanding().Min(d.Outstanding())
	if !amount.IsPositive() {
		return
	}

	c.AllocatedAmount = c.AllocatedAmount.Add(amount)
	d.AllocatedAmount = d.AllocatedAmount.Add(amount)
	markOpenItem(c)
	markOpenItem(d)
	a.touch(c)
	a.touch(d)

	a.links = append(a.links, &allocation.Link{
		ID:         id.NewAllocationID(),
		CustomerID: a.customerID,
		CreditID:   c.ID,
		DebitID:    d.ID,
		Amount:     amount,
		CreatedAt:  a.now,
	})
}

// touch records t in the change set once, in order of first change.
func (a *allocator) touch(t *transaction.Transaction) {
	key := t.ID.String()
	if a.seen[key] {
		return
	}
	a.seen[key] = true
	a.changed = append(a.changed, t)
}
