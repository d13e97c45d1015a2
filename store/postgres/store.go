package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/receivables"
	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	rstore "github.com/xraph/receivables/store"
	"github.com/xraph/receivables/transaction"
)

// compile-time interface check
var _ rstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("receivables/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: postgres: %w", receivables.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Customer Store ====================

func (s *Store) CreateCustomer(ctx context.Context, c *customer.Customer) error {
	m := toCustomerModel(c)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if isUniqueViolation(err) {
		return receivables.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	m := new(customerModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", customerID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, receivables.ErrCustomerNotFound
		}
		return nil, err
	}
	return fromCustomerModel(m)
}

func (s *Store) ListCustomers(ctx context.Context, opts customer.ListOpts) ([]*customer.Customer, error) {
	var models []customerModel
	q := s.pg.NewSelect(&models)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromCustomerModels(models)
}

func (s *Store) UpdateCustomer(ctx context.Context, c *customer.Customer) error {
	c.UpdatedAt = now()
	m := toCustomerModel(c)
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return receivables.ErrCustomerNotFound
	}
	return nil
}

func (s *Store) ListCustomersWithOpenItems(ctx context.Context) ([]*customer.Customer, error) {
	var models []customerModel
	err := s.pg.NewSelect(&models).
		Where("EXISTS (SELECT 1 FROM ar_transactions t WHERE t.customer_id = ar_customers.id AND t.open_item)").
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromCustomerModels(models)
}

func fromCustomerModels(models []customerModel) ([]*customer.Customer, error) {
	result := make([]*customer.Customer, len(models))
	for i := range models {
		c, err := fromCustomerModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

// ==================== Transaction Store ====================

func (s *Store) CreateTransaction(ctx context.Context, t *transaction.Transaction) error {
	m := toTransactionModel(t)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if isUniqueViolation(err) {
		return receivables.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	m := new(transactionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", txnID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, receivables.ErrTransactionNotFound
		}
		return nil, err
	}
	return fromTransactionModel(m)
}

// UpdateTransaction writes every mutable column when the stored version still
// matches t.Version, then advances t.Version.
func (s *Store) UpdateTransaction(ctx context.Context, t *transaction.Transaction) error {
	m := toTransactionModel(t)
	m.UpdatedAt = now()

	res, err := s.pg.NewUpdate((*transactionModel)(nil)).
		Set("customer_id = $1", m.CustomerID).
		Set("kind = $2", m.Kind).
		Set("direction = $3", m.Direction).
		Set("reference = $4", m.Reference).
		Set("total = $5", m.Total).
		Set("allocated_amount = $6", m.AllocatedAmount).
		Set("currency = $7", m.Currency).
		Set("state = $8", m.State).
		Set("effective_date = $9", m.EffectiveDate).
		Set("open_item = $10", m.OpenItem).
		Set("metadata = $11::jsonb", metadataJSON(m.Metadata)).
		Set("updated_at = $12", m.UpdatedAt).
		Set("version = version + 1").
		Where("id = $13", m.ID).
		Where("version = $14", m.Version).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetTransaction(ctx, t.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", receivables.ErrConcurrentModification, t.ID)
	}

	t.Version++
	t.UpdatedAt = m.UpdatedAt
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, customerID id.CustomerID, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel
	q := s.pg.NewSelect(&models).Where("customer_id = $1", customerID.String())

	argIdx := 1
	if len(opts.States) > 0 {
		args := make([]any, len(opts.States))
		for i, st := range opts.States {
			args[i] = string(st)
		}
		q = q.Where("state IN "+placeholders(&argIdx, len(args)), args...)
	}
	if len(opts.Kinds) > 0 {
		args := kindArgs(opts.Kinds)
		q = q.Where("kind IN "+placeholders(&argIdx, len(args)), args...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("effective_date DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromTransactionModels(models)
}

func (s *Store) ListOpenItems(ctx context.Context, customerID id.CustomerID) ([]*transaction.Transaction, error) {
	var models []transactionModel
	err := s.pg.NewSelect(&models).
		Where("customer_id = $1", customerID.String()).
		Where("open_item").
		OrderExpr("effective_date DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromTransactionModels(models)
}

func (s *Store) MostRecentTransaction(ctx context.Context, customerID id.CustomerID, kinds ...transaction.Kind) (*transaction.Transaction, error) {
	m := new(transactionModel)
	q := s.pg.NewSelect(m).
		Where("customer_id = $1", customerID.String()).
		Where("state = $2", string(transaction.StatePosted))

	argIdx := 2
	if len(kinds) > 0 {
		args := kindArgs(kinds)
		q = q.Where("kind IN "+placeholders(&argIdx, len(args)), args...)
	}

	err := q.OrderExpr("effective_date DESC, id DESC").Limit(1).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, receivables.ErrTransactionNotFound
		}
		return nil, err
	}
	return fromTransactionModel(m)
}

func fromTransactionModels(models []transactionModel) ([]*transaction.Transaction, error) {
	result := make([]*transaction.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

// ==================== Allocation Store ====================

// SaveAllocations persists the batch as one statement. The changed rows are
// locked and their versions compared first; the update and the link insert
// only run when none of them is stale, so the batch lands whole or not at
// all.
func (s *Store) SaveAllocations(ctx context.Context, r *allocation.Result) error {
	if r.Empty() {
		return nil
	}

	query, args := saveAllocationsQuery(r, now())

	var stale int64
	if err := s.pg.NewRaw(query, args...).Scan(ctx, &stale); err != nil {
		return fmt.Errorf("receivables/postgres: save allocations: %w", err)
	}
	if stale > 0 {
		return fmt.Errorf("%w: %d of %d transactions for customer %s",
			receivables.ErrConcurrentModification, stale, len(r.Changed), r.CustomerID)
	}

	for _, t := range r.Changed {
		t.Version++
	}
	return nil
}

// saveAllocationsQuery builds the data-modifying CTE behind SaveAllocations.
// It returns the number of changed transactions whose version did not match.
func saveAllocationsQuery(r *allocation.Result, at time.Time) (string, []any) {
	var (
		b    strings.Builder
		args []any
		n    int
	)
	arg := func(v any) string {
		args = append(args, v)
		n++
		return fmt.Sprintf("$%d", n)
	}

	b.WriteString("WITH expected (id, version, allocated_amount, open_item) AS (VALUES ")
	for i, t := range r.Changed {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "(%s::text, %s::bigint, %s::bigint, %s::boolean)",
			arg(t.ID.String()), arg(t.Version), arg(t.AllocatedAmount.Amount), arg(t.OpenItem))
	}
	b.WriteString(`),
locked AS (
    SELECT t.id, t.version FROM ar_transactions t
    JOIN expected e ON e.id = t.id
    FOR UPDATE OF t
),
stale AS (
    SELECT COUNT(*) AS n FROM expected e
    LEFT JOIN locked l ON l.id = e.id AND l.version = e.version
    WHERE l.id IS NULL
),
upd AS (
    UPDATE ar_transactions t
    SET allocated_amount = e.allocated_amount,
        open_item = e.open_item,
        version = t.version + 1,
        updated_at = `)
	b.WriteString(arg(at))
	b.WriteString(`
    FROM expected e, stale
    WHERE t.id = e.id AND t.version = e.version AND stale.n = 0
    RETURNING t.id
)`)

	if len(r.Links) > 0 {
		b.WriteString(`,
ins AS (
    INSERT INTO ar_allocation_links (id, customer_id, credit_id, debit_id, amount, currency, created_at)
    SELECT v.id, v.customer_id, v.credit_id, v.debit_id, v.amount, v.currency, v.created_at
    FROM (VALUES `)
		for i, l := range r.Links {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "(%s::text, %s::text, %s::text, %s::text, %s::bigint, %s::text, %s::timestamptz)",
				arg(l.ID.String()), arg(l.CustomerID.String()), arg(l.CreditID.String()), arg(l.DebitID.String()),
				arg(l.Amount.Amount), arg(l.Amount.Currency), arg(l.CreatedAt))
		}
		b.WriteString(`) AS v (id, customer_id, credit_id, debit_id, amount, currency, created_at), stale
    WHERE stale.n = 0
    RETURNING id
)`)
	}

	b.WriteString("\nSELECT n FROM stale")
	return b.String(), args
}

func (s *Store) ListLinks(ctx context.Context, txnID id.TransactionID) ([]*allocation.Link, error) {
	var models []linkModel
	err := s.pg.NewSelect(&models).
		Where("(credit_id = $1 OR debit_id = $2)", txnID.String(), txnID.String()).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*allocation.Link, len(models))
	for i := range models {
		l, err := fromLinkModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = l
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// placeholders renders "($a, $b, ...)" for count arguments, continuing the
// numbering from *argIdx.
func placeholders(argIdx *int, count int) string {
	parts := make([]string, count)
	for i := range parts {
		*argIdx++
		parts[i] = fmt.Sprintf("$%d", *argIdx)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func kindArgs(kinds []transaction.Kind) []any {
	args := make([]any, len(kinds))
	for i, k := range kinds {
		args[i] = string(k)
	}
	return args
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches PostgreSQL's unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
