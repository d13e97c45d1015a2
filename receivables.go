package receivables

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/plugin"
	"github.com/xraph/receivables/store"
	"github.com/xraph/receivables/transaction"
	"github.com/xraph/receivables/types"
)

// Ledger is the receivables engine: it posts transactions, allocates credits
// against debits, and answers balance queries for a store.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   func() time.Time

	autoAllocate bool
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		clock:        time.Now,
		autoAllocate: true,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds how long each plugin hook may run.
func WithPluginTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithAutoAllocate controls whether Post runs allocation for the customer
// once the transaction is saved. It is on by default; callers that batch
// postings can turn it off and call Recompute themselves.
func WithAutoAllocate(enabled bool) Option {
	return func(l *Ledger) {
		l.autoAllocate = enabled
	}
}

// WithClock overrides the time source used to stamp allocation links.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("receivables ledger started",
		"plugins", l.plugins.Count(),
		"auto_allocate", l.autoAllocate,
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Customers
// ──────────────────────────────────────────────────

// CreateCustomer stores a new customer.
func (l *Ledger) CreateCustomer(ctx context.Context, c *customer.Customer) error {
	if c.ID.IsNil() {
		c.ID = id.NewCustomerID()
	}
	if c.Currency == "" {
		return ValidationError{Field: "currency", Message: "required", Err: ErrInvalidInput}
	}
	c.Currency = strings.ToLower(c.Currency)
	if c.Terms != nil && c.Terms.Count < 0 {
		return ValidationError{Field: "terms", Message: "count must not be negative", Err: ErrInvalidInput}
	}
	c.Entity = types.NewEntity()

	if err := l.store.CreateCustomer(ctx, c); err != nil {
		return err
	}

	l.plugins.EmitCustomerCreated(ctx, c)
	return nil
}

// GetCustomer retrieves a customer by ID.
func (l *Ledger) GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	return l.store.GetCustomer(ctx, customerID)
}

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

// CreateTransaction stores a new draft (or in-progress) transaction. Its
// direction is fixed here from its kind.
func (l *Ledger) CreateTransaction(ctx context.Context, t *transaction.Transaction) error {
	if t.ID.IsNil() {
		t.ID = id.NewTransactionID()
	}

	dir, ok := t.Kind.Direction()
	if !ok {
		return ValidationError{Field: "kind", Message: string(t.Kind), Err: ErrUnknownKind}
	}
	t.Direction = dir

	switch t.State {
	case "":
		t.State = transaction.StateDraft
	case transaction.StateDraft, transaction.StateInProgress:
	default:
		return ValidationError{Field: "state", Message: "transactions are created unposted", Err: ErrAlreadyPosted}
	}

	if t.Total.IsNegative() {
		return ValidationError{Field: "total", Message: "must not be negative", Err: ErrInvalidAmount}
	}

	if !t.CustomerID.IsNil() {
		c, err := l.store.GetCustomer(ctx, t.CustomerID)
		if err != nil {
			return err
		}
		if t.Total.Currency == "" {
			t.Total.Currency = c.Currency
		}
		if t.Total.Currency != c.Currency {
			return ValidationError{Field: "total", Message: t.Total.Currency, Err: ErrCurrencyMismatch}
		}
	}

	t.AllocatedAmount = types.Zero(t.Total.Currency)
	t.OpenItem = false
	t.Version = 0
	t.Entity = types.NewEntity()

	return l.store.CreateTransaction(ctx, t)
}

// GetTransaction retrieves a transaction by ID.
func (l *Ledger) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	return l.store.GetTransaction(ctx, txnID)
}

// Post finalizes a transaction: it moves it to posted, attaches the
// open-item marker, saves it, and then allocates for its customer. The
// returned result is nil when auto-allocation is disabled.
//
// A transaction without a customer is rejected with ErrMissingCustomer
// before anything is saved, whatever its total.
func (l *Ledger) Post(ctx context.Context, txnID id.TransactionID) (*allocation.Result, error) {
	t, err := l.store.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if t.IsPosted() {
		return nil, ErrAlreadyPosted
	}
	if t.CustomerID.IsNil() {
		return nil, ErrMissingCustomer
	}

	t.State = transaction.StatePosted
	if err := l.PreFinalize(ctx, t); err != nil {
		return nil, err
	}

	if err := l.store.UpdateTransaction(ctx, t); err != nil {
		return nil, err
	}

	l.logger.Debug("transaction posted",
		"transaction_id", t.ID.String(),
		"customer_id", t.CustomerID.String(),
		"kind", string(t.Kind),
		"total", t.Total.String(),
		"open_item", t.OpenItem,
	)
	l.plugins.EmitTransactionPosted(ctx, t)

	if !l.autoAllocate {
		return nil, nil
	}
	return l.PostFinalize(ctx, t)
}

// PostFinalize runs allocation for the owning customer of a transaction
// that has been durably posted.
func (l *Ledger) PostFinalize(ctx context.Context, t *transaction.Transaction) (*allocation.Result, error) {
	if !t.IsPosted() {
		return nil, ErrNotPosted
	}
	if t.CustomerID.IsNil() {
		return nil, ErrMissingCustomer
	}
	return l.Recompute(ctx, t.CustomerID)
}
