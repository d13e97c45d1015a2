// Package receivables provides an accounts-receivable open-item engine for Go
// applications.
//
// Receivables is a library, not a service. It keeps a customer's debits
// (invoices, charges, refunds) and credits (payments, credit notes,
// write-offs) as open items until they are fully matched against each other,
// and it answers the balance questions a collections workflow asks:
//
//   - Balance: the signed sum of everything posted
//   - OverdueBalance: what is past due, optionally within an aging window
//   - CreditAmount and UnbilledAmount
//   - StreamOverdueCustomers: a lazy filter over customers
//   - Summarize: a lazy, memoized per-customer projection
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/receivables"
//	    "github.com/xraph/receivables/store/memory"
//	)
//
//	l := receivables.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Posting and allocation
//
// Transactions are created as drafts and posted with Post. Posting attaches
// the open-item marker to anything with an outstanding amount and then runs
// Recompute for the customer, which matches open credits against open
// debits, most recent first, and saves the changes as one atomic batch:
//
//	inv := &transaction.Transaction{
//	    CustomerID:    cust.ID,
//	    Kind:          transaction.KindInvoice,
//	    Total:         receivables.USD(10000),
//	    EffectiveDate: time.Now(),
//	}
//	_ = l.CreateTransaction(ctx, inv)
//	_, _ = l.Post(ctx, inv.ID)
//
// Every match is recorded as an allocation link. A partial match leaves the
// marker on whichever side still has an outstanding amount.
//
// # Concurrency
//
// Recompute must be serialized per customer by the caller. Stores check a
// per-transaction version on save and reject a stale batch with
// ErrConcurrentModification, in which case Recompute can simply be retried.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	cust_01h2xcejqtf2nbrexx3vqjhp41   // Customer ID
//	txn_01h2xcejqtf2nbrexx3vqjhp41    // Transaction ID
//	alloc_01h455vb4pex5vsknk084sn02q  // Allocation link ID
//
// All monetary calculations use integer arithmetic in the smallest currency
// unit.
package receivables
