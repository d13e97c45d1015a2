// Package transaction defines the debit and credit documents that make up a
// customer's receivables ledger.
package transaction

import (
	"time"

	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/types"
)

// Direction says which side of the customer's account a transaction sits on.
type Direction int

const (
	// Debit transactions increase what the customer owes.
	Debit Direction = iota + 1
	// Credit transactions reduce what the customer owes.
	Credit
)

func (d Direction) String() string {
	switch d {
	case Debit:
		return "debit"
	case Credit:
		return "credit"
	default:
		return "unknown"
	}
}

// Kind is the ledger document type.
type Kind string

const (
	KindInvoice          Kind = "invoice"
	KindCounterCharge    Kind = "counter_charge"
	KindDebitAdjustment  Kind = "debit_adjustment"
	KindRefund           Kind = "refund"
	KindInitialBalance   Kind = "initial_balance"
	KindCreditNote       Kind = "credit_note"
	KindPayment          Kind = "payment"
	KindCreditAdjustment Kind = "credit_adjustment"
	KindBadDebt          Kind = "bad_debt"
)

// kindDirections registers every known kind with its fixed direction.
var kindDirections = map[Kind]Direction{
	KindInvoice:          Debit,
	KindCounterCharge:    Debit,
	KindDebitAdjustment:  Debit,
	KindRefund:           Debit,
	KindInitialBalance:   Debit,
	KindCreditNote:       Credit,
	KindPayment:          Credit,
	KindCreditAdjustment: Credit,
	KindBadDebt:          Credit,
}

// Direction returns the registered direction of the kind. ok is false for
// kinds that were never registered.
func (k Kind) Direction() (d Direction, ok bool) {
	d, ok = kindDirections[k]
	return d, ok
}

// InvoiceKinds are the customer-facing charge documents.
var InvoiceKinds = []Kind{KindInvoice, KindCounterCharge}

// BillingKinds are the documents produced by the billing workflow, the only
// ones that count towards the unbilled amount while still in draft.
var BillingKinds = []Kind{KindInvoice, KindCounterCharge, KindCreditNote}

// State is the lifecycle state of a transaction. Posting is one-way.
type State string

const (
	StateDraft      State = "draft"
	StateInProgress State = "in_progress"
	StatePosted     State = "posted"
)

// Transaction is a single debit or credit on a customer's account.
//
// Total is immutable once posted. AllocatedAmount is only ever changed by
// allocation and always stays within [0, Total]. OpenItem is the open-item
// marker: it is set exactly while the transaction is posted and not fully
// allocated.
type Transaction struct {
	types.Entity
	ID              id.TransactionID  `json:"id"`
	CustomerID      id.CustomerID     `json:"customer_id"`
	Kind            Kind              `json:"kind"`
	Direction       Direction         `json:"direction"`
	Reference       string            `json:"reference,omitempty"`
	Total           types.Money       `json:"total"`
	AllocatedAmount types.Money       `json:"allocated_amount"`
	State           State             `json:"state"`
	EffectiveDate   time.Time         `json:"effective_date"`
	OpenItem        bool              `json:"open_item"`
	Version         int64             `json:"version"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// IsPosted reports whether the transaction has been finalized.
func (t *Transaction) IsPosted() bool { return t.State == StatePosted }

// Outstanding is the part of the total not yet matched by allocation.
func (t *Transaction) Outstanding() types.Money {
	return t.Total.Subtract(t.AllocatedAmount)
}

// IsSettled reports whether the transaction is fully allocated.
func (t *Transaction) IsSettled() bool {
	return !t.Outstanding().IsPositive()
}

// Signed returns the total with the sign of its direction: debits are
// positive, credits negative.
func (t *Transaction) Signed() types.Money {
	switch t.Direction {
	case Debit:
		return t.Total
	case Credit:
		return t.Total.Negate()
	default:
		return types.Zero(t.Total.Currency)
	}
}

// Clone returns a deep copy safe to mutate independently.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.Metadata != nil {
		c.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
