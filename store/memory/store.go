// Package memory implements store.Store in process memory. It is the default
// backend for tests and the command-line tool.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/receivables"
	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/store"
	"github.com/xraph/receivables/transaction"
)

var _ store.Store = (*Store)(nil)

// Store keeps copies of every record; callers never share memory with it.
type Store struct {
	mu sync.RWMutex

	// Customer storage
	customers map[string]*customer.Customer

	// Transaction storage
	transactions map[string]*transaction.Transaction

	// Allocation links, in insertion order
	links []*allocation.Link

	closed bool
}

func New() *Store {
	return &Store{
		customers:    make(map[string]*customer.Customer),
		transactions: make(map[string]*transaction.Transaction),
	}
}

// Customer Store implementation
func (s *Store) CreateCustomer(_ context.Context, c *customer.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[c.ID.String()]; exists {
		return receivables.ErrAlreadyExists
	}
	s.customers[c.ID.String()] = cloneCustomer(c)
	return nil
}

func (s *Store) GetCustomer(_ context.Context, customerID id.CustomerID) (*customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.customers[customerID.String()]; ok {
		return cloneCustomer(c), nil
	}
	return nil, receivables.ErrCustomerNotFound
}

func (s *Store) ListCustomers(_ context.Context, opts customer.ListOpts) ([]*customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*customer.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		result = append(result, cloneCustomer(c))
	}
	sortCustomers(result)

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateCustomer(_ context.Context, c *customer.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.customers[c.ID.String()]; !exists {
		return receivables.ErrCustomerNotFound
	}
	c.Touch()
	s.customers[c.ID.String()] = cloneCustomer(c)
	return nil
}

func (s *Store) ListCustomersWithOpenItems(_ context.Context) ([]*customer.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var result []*customer.Customer
	for _, t := range s.transactions {
		if !t.OpenItem {
			continue
		}
		key := t.CustomerID.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		if c, ok := s.customers[key]; ok {
			result = append(result, cloneCustomer(c))
		}
	}
	sortCustomers(result)

	return result, nil
}

// Transaction Store implementation
func (s *Store) CreateTransaction(_ context.Context, t *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[t.ID.String()]; exists {
		return receivables.ErrAlreadyExists
	}
	s.transactions[t.ID.String()] = t.Clone()
	return nil
}

func (s *Store) GetTransaction(_ context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.transactions[txnID.String()]; ok {
		return t.Clone(), nil
	}
	return nil, receivables.ErrTransactionNotFound
}

func (s *Store) UpdateTransaction(_ context.Context, t *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[t.ID.String()]
	if !ok {
		return receivables.ErrTransactionNotFound
	}
	if existing.Version != t.Version {
		return fmt.Errorf("%w: %s", receivables.ErrConcurrentModification, t.ID)
	}

	t.Version++
	t.Touch()
	s.transactions[t.ID.String()] = t.Clone()
	return nil
}

func (s *Store) ListTransactions(_ context.Context, customerID id.CustomerID, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*transaction.Transaction
	for _, t := range s.transactions {
		if t.CustomerID == customerID && opts.Matches(t) {
			result = append(result, t.Clone())
		}
	}
	sortTransactions(result)

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ListOpenItems(_ context.Context, customerID id.CustomerID) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*transaction.Transaction
	for _, t := range s.transactions {
		if t.CustomerID == customerID && t.OpenItem {
			result = append(result, t.Clone())
		}
	}
	sortTransactions(result)

	return result, nil
}

func (s *Store) MostRecentTransaction(_ context.Context, customerID id.CustomerID, kinds ...transaction.Kind) (*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	opts := transaction.ListOpts{
		States: []transaction.State{transaction.StatePosted},
		Kinds:  kinds,
	}

	var latest *transaction.Transaction
	for _, t := range s.transactions {
		if t.CustomerID != customerID || !opts.Matches(t) {
			continue
		}
		if latest == nil || newerThan(t, latest) {
			latest = t
		}
	}
	if latest == nil {
		return nil, receivables.ErrTransactionNotFound
	}
	return latest.Clone(), nil
}

// Allocation Store implementation

// SaveAllocations applies the whole batch or nothing. Every changed
// transaction must still carry the version it was loaded with.
func (s *Store) SaveAllocations(_ context.Context, r *allocation.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range r.Changed {
		existing, ok := s.transactions[t.ID.String()]
		if !ok {
			return receivables.ErrTransactionNotFound
		}
		if existing.Version != t.Version {
			return fmt.Errorf("%w: %s", receivables.ErrConcurrentModification, t.ID)
		}
	}

	now := time.Now().UTC()
	for _, t := range r.Changed {
		t.Version++
		t.UpdatedAt = now
		s.transactions[t.ID.String()] = t.Clone()
	}
	for _, l := range r.Links {
		link := *l
		s.links = append(s.links, &link)
	}
	return nil
}

func (s *Store) ListLinks(_ context.Context, txnID id.TransactionID) ([]*allocation.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*allocation.Link
	for _, l := range s.links {
		if l.Touches(txnID) {
			link := *l
			result = append(result, &link)
		}
	}
	return result, nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return receivables.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Helpers

func cloneCustomer(c *customer.Customer) *customer.Customer {
	out := *c
	if c.Terms != nil {
		terms := *c.Terms
		out.Terms = &terms
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func sortCustomers(cs []*customer.Customer) {
	sort.Slice(cs, func(i, j int) bool {
		return cs[i].ID.Compare(cs[j].ID) < 0
	})
}

// sortTransactions orders most recent effective date first, then by
// descending ID.
func sortTransactions(ts []*transaction.Transaction) {
	sort.Slice(ts, func(i, j int) bool {
		return newerThan(ts[i], ts[j])
	})
}

func newerThan(a, b *transaction.Transaction) bool {
	if !a.EffectiveDate.Equal(b.EffectiveDate) {
		return a.EffectiveDate.After(b.EffectiveDate)
	}
	return a.ID.Compare(b.ID) > 0
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
