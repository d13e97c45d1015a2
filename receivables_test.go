package receivables_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/receivables"
	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/store"
	"github.com/xraph/receivables/store/memory"
	"github.com/xraph/receivables/transaction"
	"github.com/xraph/receivables/types"
)

func day(n int) time.Time {
	return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

type fixture struct {
	ctx   context.Context
	store *memory.Store
	l     *receivables.Ledger
	cust  *customer.Customer
}

func newFixture(t *testing.T, opts ...receivables.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	opts = append([]receivables.Option{receivables.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	l := receivables.New(s, opts...)
	require.NoError(t, l.Start(ctx))
	t.Cleanup(func() { _ = l.Stop() })

	c := &customer.Customer{Name: "Acme", Currency: "USD"}
	require.NoError(t, l.CreateCustomer(ctx, c))

	return &fixture{ctx: ctx, store: s, l: l, cust: c}
}

func (f *fixture) create(t *testing.T, kind transaction.Kind, cents int64, effective time.Time) *transaction.Transaction {
	t.Helper()
	txn := &transaction.Transaction{
		CustomerID:    f.cust.ID,
		Kind:          kind,
		Total:         types.USD(cents),
		EffectiveDate: effective,
	}
	require.NoError(t, f.l.CreateTransaction(f.ctx, txn))
	return txn
}

func (f *fixture) post(t *testing.T, kind transaction.Kind, cents int64, effective time.Time) *transaction.Transaction {
	t.Helper()
	txn := f.create(t, kind, cents, effective)
	_, err := f.l.Post(f.ctx, txn.ID)
	require.NoError(t, err)
	return f.reload(t, txn.ID)
}

func (f *fixture) reload(t *testing.T, txnID id.TransactionID) *transaction.Transaction {
	t.Helper()
	txn, err := f.l.GetTransaction(f.ctx, txnID)
	require.NoError(t, err)
	return txn
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	b, err := f.l.Balance(f.ctx, f.cust.ID)
	require.NoError(t, err)
	return b.Amount
}

func (f *fixture) links(t *testing.T, txnID id.TransactionID) []*allocation.Link {
	t.Helper()
	links, err := f.store.ListLinks(f.ctx, txnID)
	require.NoError(t, err)
	return links
}

// assertInvariants checks every transaction of the fixture customer:
// allocation stays within the total, the marker is set exactly while
// something is outstanding, and link amounts add up on both sides.
func (f *fixture) assertInvariants(t *testing.T) {
	t.Helper()
	txns, err := f.store.ListTransactions(f.ctx, f.cust.ID, transaction.ListOpts{})
	require.NoError(t, err)

	var debitAllocated, creditAllocated int64
	for _, txn := range txns {
		assert.GreaterOrEqual(t, txn.AllocatedAmount.Amount, int64(0))
		assert.LessOrEqual(t, txn.AllocatedAmount.Amount, txn.Total.Amount)
		assert.Equal(t, txn.IsPosted() && !txn.IsSettled(), txn.OpenItem, "marker of %s", txn.ID)

		var linked int64
		for _, l := range f.links(t, txn.ID) {
			assert.True(t, l.Amount.IsPositive())
			linked += l.Amount.Amount
		}
		assert.Equal(t, txn.AllocatedAmount.Amount, linked, "links of %s", txn.ID)

		switch txn.Direction {
		case transaction.Debit:
			debitAllocated += txn.AllocatedAmount.Amount
		case transaction.Credit:
			creditAllocated += txn.AllocatedAmount.Amount
		}
	}
	assert.Equal(t, debitAllocated, creditAllocated)
}

func TestScenario_InvoiceThenPartialThenFullPayment(t *testing.T) {
	f := newFixture(t)

	// A: a posted invoice is an open item.
	inv := f.post(t, transaction.KindInvoice, 10000, day(0))
	assert.Equal(t, int64(10000), f.balance(t))
	assert.True(t, inv.OpenItem)
	assert.Equal(t, int64(0), inv.AllocatedAmount.Amount)

	// B: a partial payment is fully consumed by the invoice.
	pay1 := f.post(t, transaction.KindPayment, 6000, day(1))
	inv = f.reload(t, inv.ID)
	assert.Equal(t, int64(4000), f.balance(t))
	assert.Equal(t, int64(6000), inv.AllocatedAmount.Amount)
	assert.True(t, inv.OpenItem)
	assert.Equal(t, int64(6000), pay1.AllocatedAmount.Amount)
	assert.False(t, pay1.OpenItem)

	links := f.links(t, pay1.ID)
	require.Len(t, links, 1)
	assert.Equal(t, pay1.ID, links[0].CreditID)
	assert.Equal(t, inv.ID, links[0].DebitID)
	assert.Equal(t, int64(6000), links[0].Amount.Amount)

	// C: the rest of the invoice is paid.
	f.post(t, transaction.KindPayment, 4000, day(2))
	inv = f.reload(t, inv.ID)
	assert.Equal(t, int64(0), f.balance(t))
	assert.Equal(t, int64(10000), inv.AllocatedAmount.Amount)
	assert.False(t, inv.OpenItem)

	invLinks := f.links(t, inv.ID)
	require.Len(t, invLinks, 2)
	assert.Equal(t, int64(10000), invLinks[0].Amount.Amount+invLinks[1].Amount.Amount)

	f.assertInvariants(t)
}

func TestScenario_ZeroInvoice(t *testing.T) {
	f := newFixture(t)

	inv := f.post(t, transaction.KindInvoice, 0, day(0))
	assert.False(t, inv.OpenItem)
	assert.Empty(t, f.links(t, inv.ID))
	assert.Equal(t, int64(0), f.balance(t))

	f.post(t, transaction.KindPayment, 500, day(1))
	assert.Empty(t, f.links(t, inv.ID))
	f.assertInvariants(t)
}

func TestScenario_CreditLargerThanInvoice(t *testing.T) {
	f := newFixture(t)

	inv := f.post(t, transaction.KindInvoice, 10000, day(0))
	credit := f.post(t, transaction.KindCreditNote, 15000, day(0))
	inv = f.reload(t, inv.ID)

	assert.Equal(t, int64(-5000), f.balance(t))
	assert.Equal(t, int64(10000), credit.AllocatedAmount.Amount)
	assert.True(t, credit.OpenItem)
	assert.False(t, inv.OpenItem)

	overdue, err := f.l.OverdueBalance(f.ctx, f.cust.ID, day(90), 0, 0)
	require.NoError(t, err)
	assert.True(t, overdue.IsZero())

	credits, err := f.l.CreditAmount(f.ctx, f.cust.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-15000), credits.Amount)

	f.assertInvariants(t)
}

func TestScenario_AccountTerms(t *testing.T) {
	f := newFixture(t)
	f.cust.Terms = &customer.AccountTerms{Count: 30, Unit: customer.TermDays}
	require.NoError(t, f.store.UpdateCustomer(f.ctx, f.cust))

	f.post(t, transaction.KindInvoice, 10000, day(0))

	tests := []struct {
		asOf time.Time
		want int64
	}{
		{day(0), 0},
		{day(30), 0},
		{day(31), 10000},
	}
	for _, tt := range tests {
		got, err := f.l.OverdueBalance(f.ctx, f.cust.ID, tt.asOf, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Amount, "as of %s", tt.asOf.Format(time.DateOnly))
	}
}

func TestOverdueBalance_Window(t *testing.T) {
	f := newFixture(t)
	f.post(t, transaction.KindInvoice, 100, day(0))  // 45 days past due
	f.post(t, transaction.KindInvoice, 200, day(30)) // 15 days past due
	f.post(t, transaction.KindInvoice, 400, day(44)) // 1 day past due
	f.post(t, transaction.KindInvoice, 800, day(45)) // due today
	asOf := day(45)

	tests := []struct {
		name     string
		from, to int
		want     int64
	}{
		{"everything past due", 0, 0, 700},
		{"first month", 1, 30, 600},
		{"second month", 31, 60, 100},
		{"open ended", 15, 0, 300},
		{"inclusive bounds", 15, 15, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.l.OverdueBalance(f.ctx, f.cust.ID, asOf, tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Amount)
		})
	}

	buckets, err := f.l.Aging(f.ctx, f.cust.ID, asOf)
	require.NoError(t, err)
	require.Len(t, buckets, len(receivables.DefaultBrackets))
	assert.Equal(t, int64(600), buckets[0].Amount.Amount)
	assert.Equal(t, int64(100), buckets[1].Amount.Amount)
	assert.True(t, buckets[2].Amount.IsZero())
}

func TestOverdueBalance_UsesOutstandingAmount(t *testing.T) {
	f := newFixture(t)
	f.post(t, transaction.KindInvoice, 1000, day(0))
	f.post(t, transaction.KindPayment, 300, day(0))

	got, err := f.l.OverdueBalance(f.ctx, f.cust.ID, day(10), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(700), got.Amount)
}

func TestAllocation_NewestFirst(t *testing.T) {
	f := newFixture(t, receivables.WithAutoAllocate(false))

	older := f.post(t, transaction.KindInvoice, 100, day(0))
	newer := f.post(t, transaction.KindInvoice, 100, day(5))
	pay := f.post(t, transaction.KindPayment, 150, day(10))

	res, err := f.l.Recompute(f.ctx, f.cust.ID)
	require.NoError(t, err)
	require.Len(t, res.Links, 2)
	assert.Equal(t, newer.ID, res.Links[0].DebitID)
	assert.Equal(t, int64(100), res.Links[0].Amount.Amount)
	assert.Equal(t, older.ID, res.Links[1].DebitID)
	assert.Equal(t, int64(50), res.Links[1].Amount.Amount)
	assert.Equal(t, int64(150), res.Allocated().Amount)

	assert.False(t, f.reload(t, newer.ID).OpenItem)
	assert.True(t, f.reload(t, older.ID).OpenItem)
	assert.False(t, f.reload(t, pay.ID).OpenItem)
	f.assertInvariants(t)
}

func TestAllocation_ManyToMany(t *testing.T) {
	f := newFixture(t, receivables.WithAutoAllocate(false))

	f.post(t, transaction.KindInvoice, 300, day(0))
	f.post(t, transaction.KindCounterCharge, 200, day(1))
	f.post(t, transaction.KindRefund, 50, day(2))
	f.post(t, transaction.KindPayment, 120, day(3))
	f.post(t, transaction.KindCreditNote, 80, day(4))
	f.post(t, transaction.KindBadDebt, 500, day(5))

	res, err := f.l.Recompute(f.ctx, f.cust.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(550), res.Allocated().Amount)

	f.assertInvariants(t)
	assert.Equal(t, int64(-150), f.balance(t))
}

func TestRecompute_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.post(t, transaction.KindInvoice, 100, day(0))
	f.post(t, transaction.KindPayment, 40, day(1))

	res, err := f.l.Recompute(f.ctx, f.cust.ID)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Empty(t, res.Links)
	f.assertInvariants(t)
}

func TestRecompute_NothingToMatch(t *testing.T) {
	f := newFixture(t)
	f.post(t, transaction.KindInvoice, 100, day(0))
	f.post(t, transaction.KindInvoice, 200, day(1))

	res, err := f.l.Recompute(f.ctx, f.cust.ID)
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestRecompute_ConcurrentModification(t *testing.T) {
	f := newFixture(t, receivables.WithAutoAllocate(false))
	inv := f.post(t, transaction.KindInvoice, 100, day(0))
	f.post(t, transaction.KindPayment, 100, day(1))

	s := &racingStore{Store: f.store, touch: inv.ID}
	l := receivables.New(s, receivables.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := l.Recompute(f.ctx, f.cust.ID)
	require.ErrorIs(t, err, receivables.ErrConcurrentModification)
	assert.True(t, receivables.IsRetryable(err))

	// Nothing from the failed run was written.
	assert.Empty(t, f.links(t, inv.ID))
	assert.Equal(t, int64(0), f.reload(t, inv.ID).AllocatedAmount.Amount)

	// A fresh run picks up the new versions.
	res, err := f.l.Recompute(f.ctx, f.cust.ID)
	require.NoError(t, err)
	assert.Len(t, res.Links, 1)
	f.assertInvariants(t)
}

// racingStore bumps a transaction's version between loading open items and
// saving the batch, as a concurrent writer would.
type racingStore struct {
	store.Store
	touch id.TransactionID
}

func (s *racingStore) ListOpenItems(ctx context.Context, customerID id.CustomerID) ([]*transaction.Transaction, error) {
	items, err := s.Store.ListOpenItems(ctx, customerID)
	if err != nil {
		return nil, err
	}
	t, err := s.Store.GetTransaction(ctx, s.touch)
	if err != nil {
		return nil, err
	}
	t.Reference = "edited elsewhere"
	return items, s.Store.UpdateTransaction(ctx, t)
}

func TestRecompute_SaveFailurePropagates(t *testing.T) {
	f := newFixture(t, receivables.WithAutoAllocate(false))
	f.post(t, transaction.KindInvoice, 100, day(0))
	f.post(t, transaction.KindPayment, 100, day(1))

	boom := errors.New("disk full")
	l := receivables.New(&failingStore{Store: f.store, err: boom})

	_, err := l.Recompute(f.ctx, f.cust.ID)
	assert.Equal(t, boom, err)
}

type failingStore struct {
	store.Store
	err error
}

func (s *failingStore) SaveAllocations(context.Context, *allocation.Result) error { return s.err }

func TestPost_MissingCustomer(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
	}{
		{"outstanding invoice", 100},
		{"zero invoice", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			txn := &transaction.Transaction{Kind: transaction.KindInvoice, Total: types.USD(tt.cents), EffectiveDate: day(0)}
			require.NoError(t, f.l.CreateTransaction(f.ctx, txn))

			_, err := f.l.Post(f.ctx, txn.ID)
			require.ErrorIs(t, err, receivables.ErrMissingCustomer)

			stored := f.reload(t, txn.ID)
			assert.False(t, stored.IsPosted())
			assert.False(t, stored.OpenItem)

			// Nothing was saved, so the failure is not masked by ErrAlreadyPosted.
			_, err = f.l.Post(f.ctx, txn.ID)
			assert.ErrorIs(t, err, receivables.ErrMissingCustomer)
		})
	}

	f := newFixture(t)
	err := f.l.PreFinalize(f.ctx, &transaction.Transaction{Kind: transaction.KindPayment, Total: types.USD(10), State: transaction.StatePosted})
	assert.ErrorIs(t, err, receivables.ErrMissingCustomer)
}

func TestPreFinalize(t *testing.T) {
	f := newFixture(t)
	c := f.cust

	draft := &transaction.Transaction{CustomerID: c.ID, Kind: transaction.KindInvoice, Total: types.USD(10)}
	assert.ErrorIs(t, f.l.PreFinalize(f.ctx, draft), receivables.ErrNotPosted)
	assert.False(t, draft.OpenItem)

	posted := &transaction.Transaction{CustomerID: c.ID, Kind: transaction.KindInvoice, Total: types.USD(10), State: transaction.StatePosted}
	for range 2 {
		require.NoError(t, f.l.PreFinalize(f.ctx, posted))
		assert.True(t, posted.OpenItem)
	}

	zero := &transaction.Transaction{Kind: transaction.KindInvoice, Total: types.USD(0), State: transaction.StatePosted}
	require.NoError(t, f.l.PreFinalize(f.ctx, zero), "a settled transaction needs no customer")
	assert.False(t, zero.OpenItem)
}

func TestPost_Twice(t *testing.T) {
	f := newFixture(t)
	inv := f.post(t, transaction.KindInvoice, 100, day(0))

	_, err := f.l.Post(f.ctx, inv.ID)
	assert.ErrorIs(t, err, receivables.ErrAlreadyPosted)
}

func TestPostFinalize_RequiresPosted(t *testing.T) {
	f := newFixture(t)
	draft := f.create(t, transaction.KindInvoice, 100, day(0))

	_, err := f.l.PostFinalize(f.ctx, draft)
	assert.ErrorIs(t, err, receivables.ErrNotPosted)
}

func TestCreateTransaction_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		txn  *transaction.Transaction
		want error
	}{
		{"unknown kind", &transaction.Transaction{CustomerID: f.cust.ID, Kind: "voucher", Total: types.USD(1)}, receivables.ErrUnknownKind},
		{"negative total", &transaction.Transaction{CustomerID: f.cust.ID, Kind: transaction.KindInvoice, Total: types.USD(-1)}, receivables.ErrInvalidAmount},
		{"wrong currency", &transaction.Transaction{CustomerID: f.cust.ID, Kind: transaction.KindInvoice, Total: types.EUR(1)}, receivables.ErrCurrencyMismatch},
		{"already posted", &transaction.Transaction{CustomerID: f.cust.ID, Kind: transaction.KindInvoice, Total: types.USD(1), State: transaction.StatePosted}, receivables.ErrAlreadyPosted},
		{"unknown customer", &transaction.Transaction{CustomerID: id.NewCustomerID(), Kind: transaction.KindInvoice, Total: types.USD(1)}, receivables.ErrCustomerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.l.CreateTransaction(f.ctx, tt.txn)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	ok := f.create(t, transaction.KindCreditAdjustment, 100, day(0))
	assert.Equal(t, transaction.Credit, ok.Direction)
	assert.Equal(t, transaction.StateDraft, ok.State)
}

func TestUnbilledAmount(t *testing.T) {
	f := newFixture(t)
	f.create(t, transaction.KindInvoice, 1000, day(0))
	f.create(t, transaction.KindCounterCharge, 200, day(0))
	f.create(t, transaction.KindCreditNote, 300, day(0))
	f.create(t, transaction.KindPayment, 5000, day(0))
	f.post(t, transaction.KindInvoice, 7000, day(0))

	got, err := f.l.UnbilledAmount(f.ctx, f.cust.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), got.Amount)
}

func TestBalance_UnknownCustomer(t *testing.T) {
	f := newFixture(t)
	_, err := f.l.Balance(f.ctx, id.NewCustomerID())
	assert.True(t, receivables.IsNotFound(err))
}
