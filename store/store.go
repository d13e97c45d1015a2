package store

import (
	"context"

	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/transaction"
)

// Store is the persistence collaborator of the receivables engine.
// Methods are declared explicitly rather than embedding the per-package
// interfaces so every backend has one flat surface to satisfy.
type Store interface {
	// Customer methods
	CreateCustomer(ctx context.Context, c *customer.Customer) error
	GetCustomer(ctx context.Context, customerID id.CustomerID) (*customer.Customer, error)
	ListCustomers(ctx context.Context, opts customer.ListOpts) ([]*customer.Customer, error)
	UpdateCustomer(ctx context.Context, c *customer.Customer) error
	// ListCustomersWithOpenItems returns every customer holding at least one
	// open item, ordered by customer ID.
	ListCustomersWithOpenItems(ctx context.Context) ([]*customer.Customer, error)

	// Transaction methods
	CreateTransaction(ctx context.Context, t *transaction.Transaction) error
	GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error)
	// UpdateTransaction writes t if its Version matches the stored one and
	// bumps Version on success.
	UpdateTransaction(ctx context.Context, t *transaction.Transaction) error
	ListTransactions(ctx context.Context, customerID id.CustomerID, opts transaction.ListOpts) ([]*transaction.Transaction, error)
	// ListOpenItems returns the customer's open items, most recent effective
	// date first, ties broken by descending ID.
	ListOpenItems(ctx context.Context, customerID id.CustomerID) ([]*transaction.Transaction, error)
	// MostRecentTransaction returns the posted transaction of one of the
	// given kinds with the latest effective date.
	MostRecentTransaction(ctx context.Context, customerID id.CustomerID, kinds ...transaction.Kind) (*transaction.Transaction, error)

	// Allocation methods
	SaveAllocations(ctx context.Context, r *allocation.Result) error
	ListLinks(ctx context.Context, txnID id.TransactionID) ([]*allocation.Link, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ customer.Store    = Store(nil)
	_ transaction.Store = Store(nil)
	_ allocation.Store  = Store(nil)
)
