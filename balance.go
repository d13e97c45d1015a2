package receivables

import (
	"context"
	"time"

	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/transaction"
	"github.com/xraph/receivables/types"
)

// Balance is the signed sum of the customer's posted transactions: debits
// count positive and credits negative.
func (l *Ledger) Balance(ctx context.Context, customerID id.CustomerID) (types.Money, error) {
	c, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return types.Money{}, err
	}
	return l.balance(ctx, c)
}

func (l *Ledger) balance(ctx context.Context, c *customer.Customer) (types.Money, error) {
	txns, err := l.store.ListTransactions(ctx, c.ID, transaction.ListOpts{
		States: []transaction.State{transaction.StatePosted},
	})
	if err != nil {
		return types.Money{}, err
	}

	total := types.Zero(c.Currency)
	for _, t := range txns {
		total = total.Add(t.Signed())
	}
	return total, nil
}

// CreditAmount is the negated sum of the customer's posted credit totals,
// regardless of how much of them has been allocated.
func (l *Ledger) CreditAmount(ctx context.Context, customerID id.CustomerID) (types.Money, error) {
	c, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return types.Money{}, err
	}
	return l.creditAmount(ctx, c)
}

func (l *Ledger) creditAmount(ctx context.Context, c *customer.Customer) (types.Money, error) {
	txns, err := l.store.ListTransactions(ctx, c.ID, transaction.ListOpts{
		States: []transaction.State{transaction.StatePosted},
	})
	if err != nil {
		return types.Money{}, err
	}

	total := types.Zero(c.Currency)
	for _, t := range txns {
		if t.Direction == transaction.Credit {
			total = total.Subtract(t.Total)
		}
	}
	return total, nil
}

// UnbilledAmount is the signed sum of invoices, counter charges and credit
// notes that have not been posted yet.
func (l *Ledger) UnbilledAmount(ctx context.Context, customerID id.CustomerID) (types.Money, error) {
	c, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return types.Money{}, err
	}

	txns, err := l.store.ListTransactions(ctx, c.ID, transaction.ListOpts{
		States: []transaction.State{transaction.StateDraft, transaction.StateInProgress},
		Kinds:  transaction.BillingKinds,
	})
	if err != nil {
		return types.Money{}, err
	}

	total := types.Zero(c.Currency)
	for _, t := range txns {
		total = total.Add(t.Signed())
	}
	return total, nil
}

// OverdueBalance sums the outstanding amount of the customer's open debits
// that are at least one day past due as of asOf. The window is further
// narrowed to items at least fromDays past due and, when toDays is
// positive, at most toDays past due. Credits never count.
func (l *Ledger) OverdueBalance(ctx context.Context, customerID id.CustomerID, asOf time.Time, fromDays, toDays int) (types.Money, error) {
	c, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return types.Money{}, err
	}
	return l.overdueBalance(ctx, c, asOf, Bracket{FromDays: fromDays, ToDays: toDays})
}

func (l *Ledger) overdueBalance(ctx context.Context, c *customer.Customer, asOf time.Time, b Bracket) (types.Money, error) {
	items, err := l.store.ListOpenItems(ctx, c.ID)
	if err != nil {
		return types.Money{}, err
	}
	return overdue(c, items, asOf, b), nil
}

func overdue(c *customer.Customer, items []*transaction.Transaction, asOf time.Time, b Bracket) types.Money {
	total := types.Zero(c.Currency)
	for _, t := range items {
		if t.Direction != transaction.Debit || !t.IsPosted() || !t.OpenItem {
			continue
		}
		if b.Contains(DaysPastDue(c.DueDate(t.EffectiveDate), asOf)) {
			total = total.Add(t.Outstanding())
		}
	}
	return total
}

// DaysPastDue counts whole calendar days from due to asOf, both read in
// asOf's location. It is negative when asOf is before the due date.
func DaysPastDue(due, asOf time.Time) int {
	due = due.In(asOf.Location())
	d := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	a := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	return int(a.Sub(d).Hours() / 24)
}

// Bracket is an aging window in days past due. A non-positive ToDays leaves
// the window open-ended.
type Bracket struct {
	FromDays int `json:"from_days" yaml:"from_days"`
	ToDays   int `json:"to_days" yaml:"to_days"`
}

// Contains reports whether an item daysPast days overdue falls in b. Items
// not yet past due never do.
func (b Bracket) Contains(daysPast int) bool {
	if daysPast < 1 || daysPast < b.FromDays {
		return false
	}
	return b.ToDays <= 0 || daysPast <= b.ToDays
}

// DefaultBrackets are the conventional 30/60/90 aging columns.
var DefaultBrackets = []Bracket{
	{FromDays: 1, ToDays: 30},
	{FromDays: 31, ToDays: 60},
	{FromDays: 61, ToDays: 90},
	{FromDays: 91},
}

// AgingBucket is the overdue balance of one bracket.
type AgingBucket struct {
	Bracket Bracket     `json:"bracket"`
	Amount  types.Money `json:"amount"`
}

// Aging splits the customer's overdue balance into brackets, loading the
// open items once. DefaultBrackets are used when none are given.
func (l *Ledger) Aging(ctx context.Context, customerID id.CustomerID, asOf time.Time, brackets ...Bracket) ([]AgingBucket, error) {
	c, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	items, err := l.store.ListOpenItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	if len(brackets) == 0 {
		brackets = DefaultBrackets
	}

	out := make([]AgingBucket, 0, len(brackets))
	for _, b := range brackets {
		out = append(out, AgingBucket{Bracket: b, Amount: overdue(c, items, asOf, b)})
	}
	return out, nil
}
