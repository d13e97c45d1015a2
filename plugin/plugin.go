// Package plugin provides an extensible plugin system for receivables.
// Plugins hook into lifecycle events to observe posting and allocation.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/transaction"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCustomerCreated is called after a customer is stored.
type OnCustomerCreated interface {
	Plugin
	OnCustomerCreated(ctx context.Context, c *customer.Customer) error
}

// OnTransactionPosted is called after a transaction is durably posted and
// before allocation runs for its customer.
type OnTransactionPosted interface {
	Plugin
	OnTransactionPosted(ctx context.Context, t *transaction.Transaction) error
}

// ──────────────────────────────────────────────────
// Allocation hooks
// ──────────────────────────────────────────────────

// OnAllocationsApplied is called after an allocation batch is persisted.
type OnAllocationsApplied interface {
	Plugin
	OnAllocationsApplied(ctx context.Context, r *allocation.Result, elapsed time.Duration) error
}

// OnOpenItemSettled is called for each transaction that became fully
// allocated in a persisted batch.
type OnOpenItemSettled interface {
	Plugin
	OnOpenItemSettled(ctx context.Context, t *transaction.Transaction) error
}

// OnAllocationFailed is called when an allocation run fails to load or save.
type OnAllocationFailed interface {
	Plugin
	OnAllocationFailed(ctx context.Context, customerID id.CustomerID, err error) error
}
