package receivables

import (
	"context"
	"iter"
	"time"

	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/transaction"
	"github.com/xraph/receivables/types"
)

// Snapshot is the date and amount of one transaction.
type Snapshot struct {
	Date   time.Time   `json:"date"`
	Amount types.Money `json:"amount"`
}

// cell memoizes the first evaluation of a field, error included.
type cell[T any] struct {
	done bool
	val  T
	err  error
}

func (c *cell[T]) get(fn func() (T, error)) (T, error) {
	if !c.done {
		c.val, c.err = fn()
		c.done = true
	}
	return c.val, c.err
}

type lastTxn struct {
	snap Snapshot
	ok   bool
}

// Summary is a per-customer balance projection. Each figure is computed on
// first access and reused afterwards; the context passed to that first call
// is the one used for the lookup.
//
// A Summary is not safe for concurrent use.
type Summary struct {
	Customer *customer.Customer
	AsOf     time.Time

	l *Ledger

	balance     cell[types.Money]
	overdue     cell[types.Money]
	credit      cell[types.Money]
	lastPayment cell[lastTxn]
	lastInvoice cell[lastTxn]
}

// Summarize lazily maps customers to summaries. Nothing is queried until a
// summary field is read.
func (l *Ledger) Summarize(customers iter.Seq[*customer.Customer], asOf time.Time) iter.Seq[*Summary] {
	return func(yield func(*Summary) bool) {
		for c := range customers {
			if !yield(l.Summary(c, asOf)) {
				return
			}
		}
	}
}

// Summary returns the projection for a single customer.
func (l *Ledger) Summary(c *customer.Customer, asOf time.Time) *Summary {
	return &Summary{Customer: c, AsOf: asOf, l: l}
}

// Balance is the customer's posted balance.
func (s *Summary) Balance(ctx context.Context) (types.Money, error) {
	return s.balance.get(func() (types.Money, error) {
		return s.l.balance(ctx, s.Customer)
	})
}

// OverdueBalance is everything at least one day past due as of AsOf.
func (s *Summary) OverdueBalance(ctx context.Context) (types.Money, error) {
	return s.overdue.get(func() (types.Money, error) {
		return s.l.overdueBalance(ctx, s.Customer, s.AsOf, Bracket{})
	})
}

// CreditBalance is the customer's credit amount.
func (s *Summary) CreditBalance(ctx context.Context) (types.Money, error) {
	return s.credit.get(func() (types.Money, error) {
		return s.l.creditAmount(ctx, s.Customer)
	})
}

// LastPayment is the most recent posted payment. ok is false when the
// customer has never paid.
func (s *Summary) LastPayment(ctx context.Context) (Snapshot, bool, error) {
	v, err := s.lastPayment.get(func() (lastTxn, error) {
		return s.l.lastTransaction(ctx, s.Customer, transaction.KindPayment)
	})
	return v.snap, v.ok, err
}

// LastInvoice is the most recent posted invoice or counter charge. ok is
// false when there is none.
func (s *Summary) LastInvoice(ctx context.Context) (Snapshot, bool, error) {
	v, err := s.lastInvoice.get(func() (lastTxn, error) {
		return s.l.lastTransaction(ctx, s.Customer, transaction.InvoiceKinds...)
	})
	return v.snap, v.ok, err
}

func (l *Ledger) lastTransaction(ctx context.Context, c *customer.Customer, kinds ...transaction.Kind) (lastTxn, error) {
	t, err := l.store.MostRecentTransaction(ctx, c.ID, kinds...)
	if IsNotFound(err) {
		return lastTxn{}, nil
	}
	if err != nil {
		return lastTxn{}, err
	}
	return lastTxn{snap: Snapshot{Date: t.EffectiveDate, Amount: t.Total}, ok: true}, nil
}

// SummaryRow is a fully evaluated Summary, suitable for rendering.
type SummaryRow struct {
	CustomerID     string      `json:"customer_id"`
	Name           string      `json:"name"`
	Balance        types.Money `json:"balance"`
	OverdueBalance types.Money `json:"overdue_balance"`
	CreditBalance  types.Money `json:"credit_balance"`
	LastPayment    *Snapshot   `json:"last_payment,omitempty"`
	LastInvoice    *Snapshot   `json:"last_invoice,omitempty"`
}

// Row evaluates every field of the summary.
func (s *Summary) Row(ctx context.Context) (SummaryRow, error) {
	row := SummaryRow{
		CustomerID: s.Customer.ID.String(),
		Name:       s.Customer.Name,
	}

	var err error
	if row.Balance, err = s.Balance(ctx); err != nil {
		return row, err
	}
	if row.OverdueBalance, err = s.OverdueBalance(ctx); err != nil {
		return row, err
	}
	if row.CreditBalance, err = s.CreditBalance(ctx); err != nil {
		return row, err
	}

	if snap, ok, err := s.LastPayment(ctx); err != nil {
		return row, err
	} else if ok {
		row.LastPayment = &snap
	}
	if snap, ok, err := s.LastInvoice(ctx); err != nil {
		return row, err
	} else if ok {
		row.LastInvoice = &snap
	}

	return row, nil
}
