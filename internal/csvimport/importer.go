package csvimport

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/xraph/receivables"
	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/transaction"
)

// Defaults fill in customers that transactions.csv mentions but
// customers.csv does not describe, and customers without a currency.
type Defaults struct {
	Currency string
	Terms    *customer.AccountTerms
}

// Book is the outcome of an import.
type Book struct {
	// Customers in the order they were first seen.
	Customers []*customer.Customer
	// Results holds every non-empty allocation produced while posting.
	Results []*allocation.Result

	byKey      map[string]*customer.Customer
	references map[string]string
}

// Customer returns the customer imported under key.
func (b *Book) Customer(key string) (*customer.Customer, bool) {
	c, ok := b.byKey[key]
	return c, ok
}

// All yields the imported customers in import order.
func (b *Book) All() iter.Seq[*customer.Customer] {
	return slices.Values(b.Customers)
}

// Reference returns the display reference of an imported transaction,
// falling back to its ID.
func (b *Book) Reference(txnID id.TransactionID) string {
	if ref := b.references[txnID.String()]; ref != "" {
		return ref
	}
	return txnID.String()
}

// Importer creates customers and posts transactions through a Ledger.
type Importer struct {
	ledger   *receivables.Ledger
	defaults Defaults
	logger   *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(l *receivables.Ledger, defaults Defaults, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{ledger: l, defaults: defaults, logger: logger}
}

// Import creates every customer, then creates and posts the transactions
// oldest first. Rows sharing a date keep their file order.
func (im *Importer) Import(ctx context.Context, customers []CustomerRecord, txns []TransactionRecord) (*Book, error) {
	b := &Book{
		byKey:      make(map[string]*customer.Customer),
		references: make(map[string]string),
	}

	for _, rec := range customers {
		if _, dup := b.byKey[rec.Key]; dup {
			return nil, fmt.Errorf("customer %q: duplicate key", rec.Key)
		}
		if _, err := im.createCustomer(ctx, b, rec); err != nil {
			return nil, err
		}
	}

	ordered := slices.Clone(txns)
	slices.SortStableFunc(ordered, func(x, y TransactionRecord) int {
		return x.Date.Compare(y.Date)
	})

	for _, rec := range ordered {
		c, ok := b.byKey[rec.Customer]
		if !ok {
			var err error
			c, err = im.createCustomer(ctx, b, CustomerRecord{Key: rec.Customer, Name: rec.Customer})
			if err != nil {
				return nil, err
			}
		}

		total, err := ToMoney(rec.Amount, c.Currency)
		if err != nil {
			return nil, fmt.Errorf("transaction %q: %w", rec.Reference, err)
		}

		t := &transaction.Transaction{
			CustomerID:    c.ID,
			Kind:          rec.Kind,
			Reference:     rec.Reference,
			Total:         total,
			EffectiveDate: rec.Date,
		}
		if err := im.ledger.CreateTransaction(ctx, t); err != nil {
			return nil, fmt.Errorf("transaction %q: %w", rec.Reference, err)
		}
		b.references[t.ID.String()] = rec.Reference

		res, err := im.ledger.Post(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("posting %q: %w", rec.Reference, err)
		}
		if !res.Empty() {
			b.Results = append(b.Results, res)
		}
	}

	im.logger.Debug("csv import complete",
		"customers", len(b.Customers),
		"transactions", len(txns),
		"allocations", len(b.Results),
	)

	return b, nil
}

func (im *Importer) createCustomer(ctx context.Context, b *Book, rec CustomerRecord) (*customer.Customer, error) {
	c := &customer.Customer{
		Name:     rec.Name,
		Currency: rec.Currency,
		Terms:    rec.Terms,
		Metadata: map[string]string{"import_key": rec.Key},
	}
	if c.Name == "" {
		c.Name = rec.Key
	}
	if c.Currency == "" {
		c.Currency = im.defaults.Currency
	}
	if c.Terms == nil && im.defaults.Terms != nil {
		terms := *im.defaults.Terms
		c.Terms = &terms
	}

	if err := im.ledger.CreateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("customer %q: %w", rec.Key, err)
	}

	b.byKey[rec.Key] = c
	b.Customers = append(b.Customers, c)
	return c, nil
}
