package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/receivables"
	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	rstore "github.com/xraph/receivables/store"
	"github.com/xraph/receivables/transaction"
)

// Collection name constants.
const (
	colCustomers    = "ar_customers"
	colTransactions = "ar_transactions"
	colLinks        = "ar_allocation_links"
)

// compile-time interface check
var _ rstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
// SaveAllocations needs a replica set or sharded cluster, since it runs in a
// multi-document transaction.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all receivables collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: mongo: %s indexes: %w", receivables.ErrMigrationFailed, col, err)
		}
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return receivables.ErrAlreadyExists
		}
		return fmt.Errorf("receivables/mongo: create customer: %w", err)
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	var m customerModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": customerID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, receivables.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("receivables/mongo: get customer: %w", err)
	}
	return fromCustomerModel(&m)
}

func (s *Store) ListCustomers(ctx context.Context, opts customer.ListOpts) ([]*customer.Customer, error) {
	var models []customerModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("receivables/mongo: list customers: %w", err)
	}
	return fromCustomerModels(models)
}

func (s *Store) UpdateCustomer(ctx context.Context, c *customer.Customer) error {
	c.UpdatedAt = now()
	m := toCustomerModel(c)

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("receivables/mongo: update customer: %w", err)
	}
	if res.MatchedCount() == 0 {
		return receivables.ErrCustomerNotFound
	}
	return nil
}

func (s *Store) ListCustomersWithOpenItems(ctx context.Context) ([]*customer.Customer, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"open_item": true}},
		bson.M{"$group": bson.M{"_id": "$customer_id"}},
	}

	cursor, err := s.mdb.Collection(colTransactions).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("receivables/mongo: open item customers: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []struct {
		CustomerID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("receivables/mongo: open item customers decode: %w", err)
	}
	if len(groups) == 0 {
		return nil, nil
	}

	ids := make(bson.A, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.CustomerID)
	}

	var models []customerModel
	err = s.mdb.NewFind(&models).
		Filter(bson.M{"_id": bson.M{"$in": ids}}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("receivables/mongo: open item customers: %w", err)
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
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return receivables.ErrAlreadyExists
		}
		return fmt.Errorf("receivables/mongo: create transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	var m transactionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": txnID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, receivables.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("receivables/mongo: get transaction: %w", err)
	}
	return fromTransactionModel(&m)
}

// UpdateTransaction replaces the mutable fields when the stored version still
// matches t.Version, then advances t.Version.
func (s *Store) UpdateTransaction(ctx context.Context, t *transaction.Transaction) error {
	m := toTransactionModel(t)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate((*transactionModel)(nil)).
		Filter(bson.M{"_id": m.ID, "version": m.Version}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"customer_id":      m.CustomerID,
				"kind":             m.Kind,
				"direction":        m.Direction,
				"reference":        m.Reference,
				"total":            m.Total,
				"allocated_amount": m.AllocatedAmount,
				"currency":         m.Currency,
				"state":            m.State,
				"effective_date":   m.EffectiveDate,
				"open_item":        m.OpenItem,
				"metadata":         m.Metadata,
				"updated_at":       m.UpdatedAt,
			},
			"$inc": bson.M{"version": 1},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("receivables/mongo: update transaction: %w", err)
	}
	if res.MatchedCount() == 0 {
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

	filter := bson.M{"customer_id": customerID.String()}
	if len(opts.States) > 0 {
		states := make(bson.A, len(opts.States))
		for i, st := range opts.States {
			states[i] = string(st)
		}
		filter["state"] = bson.M{"$in": states}
	}
	if len(opts.Kinds) > 0 {
		filter["kind"] = bson.M{"$in": kindValues(opts.Kinds)}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(newestFirst())

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("receivables/mongo: list transactions: %w", err)
	}
	return fromTransactionModels(models)
}

func (s *Store) ListOpenItems(ctx context.Context, customerID id.CustomerID) ([]*transaction.Transaction, error) {
	var models []transactionModel

	err := s.mdb.NewFind(&models).
		Filter(bson.M{"customer_id": customerID.String(), "open_item": true}).
		Sort(newestFirst()).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("receivables/mongo: list open items: %w", err)
	}
	return fromTransactionModels(models)
}

func (s *Store) MostRecentTransaction(ctx context.Context, customerID id.CustomerID, kinds ...transaction.Kind) (*transaction.Transaction, error) {
	var m transactionModel

	filter := bson.M{
		"customer_id": customerID.String(),
		"state":       string(transaction.StatePosted),
	}
	if len(kinds) > 0 {
		filter["kind"] = bson.M{"$in": kindValues(kinds)}
	}

	err := s.mdb.NewFind(&m).
		Filter(filter).
		Sort(newestFirst()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, receivables.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("receivables/mongo: most recent transaction: %w", err)
	}
	return fromTransactionModel(&m)
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

// errStale aborts the session transaction when a changed document no longer
// carries the version it was loaded with.
var errStale = errors.New("stale transaction version")

// SaveAllocations writes the batch inside a multi-document transaction. Each
// changed document is updated only if its version still matches; the first
// miss aborts the whole transaction.
func (s *Store) SaveAllocations(ctx context.Context, r *allocation.Result) error {
	if r.Empty() {
		return nil
	}

	txns := s.mdb.Collection(colTransactions)
	links := s.mdb.Collection(colLinks)

	sess, err := txns.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("receivables/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	at := now()
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		for _, t := range r.Changed {
			res, err := txns.UpdateOne(ctx,
				bson.M{"_id": t.ID.String(), "version": t.Version},
				bson.M{
					"$set": bson.M{
						"allocated_amount": t.AllocatedAmount.Amount,
						"open_item":        t.OpenItem,
						"updated_at":       at,
					},
					"$inc": bson.M{"version": 1},
				},
			)
			if err != nil {
				return nil, err
			}
			if res.MatchedCount == 0 {
				return nil, fmt.Errorf("%w: %s", errStale, t.ID)
			}
		}

		if len(r.Links) > 0 {
			docs := make([]any, len(r.Links))
			for i, l := range r.Links {
				docs[i] = toLinkModel(l)
			}
			if _, err := links.InsertMany(ctx, docs); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, errStale) {
			return fmt.Errorf("%w: %w", receivables.ErrConcurrentModification, err)
		}
		return fmt.Errorf("receivables/mongo: save allocations: %w", err)
	}

	for _, t := range r.Changed {
		t.Version++
		t.UpdatedAt = at
	}
	return nil
}

func (s *Store) ListLinks(ctx context.Context, txnID id.TransactionID) ([]*allocation.Link, error) {
	var models []linkModel

	err := s.mdb.NewFind(&models).
		Filter(bson.M{"$or": bson.A{
			bson.M{"credit_id": txnID.String()},
			bson.M{"debit_id": txnID.String()},
		}}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("receivables/mongo: list links: %w", err)
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

// newestFirst is the open-item order: effective date, then ID, descending.
func newestFirst() bson.D {
	return bson.D{{Key: "effective_date", Value: -1}, {Key: "_id", Value: -1}}
}

func kindValues(kinds []transaction.Kind) bson.A {
	out := make(bson.A, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all receivables collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colCustomers: {},
		colTransactions: {
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "state", Value: 1}, {Key: "kind", Value: 1}, {Key: "effective_date", Value: -1}}},
			{
				Keys:    bson.D{{Key: "customer_id", Value: 1}, {Key: "effective_date", Value: -1}, {Key: "_id", Value: -1}},
				Options: options.Index().SetPartialFilterExpression(bson.M{"open_item": true}),
			},
		},
		colLinks: {
			{Keys: bson.D{{Key: "credit_id", Value: 1}}},
			{Keys: bson.D{{Key: "debit_id", Value: 1}}},
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}
}
