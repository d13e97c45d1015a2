package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/transaction"
	"github.com/xraph/receivables/types"
)

// ==================== Customer models ====================

type customerModel struct {
	grove.BaseModel `grove:"table:ar_customers"`

	ID        string            `grove:"id,pk"      bson:"_id"`
	Name      string            `grove:"name"       bson:"name"`
	Currency  string            `grove:"currency"   bson:"currency"`
	Terms     *termsModel       `grove:"terms"      bson:"terms,omitempty"`
	Metadata  map[string]string `grove:"metadata"   bson:"metadata,omitempty"`
	CreatedAt time.Time         `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time         `grove:"updated_at" bson:"updated_at"`
}

type termsModel struct {
	Count int    `bson:"count"`
	Unit  string `bson:"unit"`
}

func toCustomerModel(c *customer.Customer) *customerModel {
	m := &customerModel{
		ID:        c.ID.String(),
		Name:      c.Name,
		Currency:  c.Currency,
		Metadata:  c.Metadata,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Terms != nil {
		m.Terms = &termsModel{Count: c.Terms.Count, Unit: string(c.Terms.Unit)}
	}
	return m
}

func fromCustomerModel(m *customerModel) (*customer.Customer, error) {
	customerID, err := id.ParseCustomerID(m.ID)
	if err != nil {
		return nil, err
	}

	c := &customer.Customer{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       customerID,
		Name:     m.Name,
		Currency: m.Currency,
		Metadata: m.Metadata,
	}
	if m.Terms != nil {
		c.Terms = &customer.AccountTerms{Count: m.Terms.Count, Unit: customer.TermUnit(m.Terms.Unit)}
	}
	return c, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:ar_transactions"`

	ID              string            `grove:"id,pk"            bson:"_id"`
	CustomerID      string            `grove:"customer_id"      bson:"customer_id"`
	Kind            string            `grove:"kind"             bson:"kind"`
	Direction       int               `grove:"direction"        bson:"direction"`
	Reference       string            `grove:"reference"        bson:"reference"`
	Total           int64             `grove:"total"            bson:"total"`
	AllocatedAmount int64             `grove:"allocated_amount" bson:"allocated_amount"`
	Currency        string            `grove:"currency"         bson:"currency"`
	State           string            `grove:"state"            bson:"state"`
	EffectiveDate   time.Time         `grove:"effective_date"   bson:"effective_date"`
	OpenItem        bool              `grove:"open_item"        bson:"open_item"`
	Version         int64             `grove:"version"          bson:"version"`
	Metadata        map[string]string `grove:"metadata"         bson:"metadata,omitempty"`
	CreatedAt       time.Time         `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"       bson:"updated_at"`
}

func toTransactionModel(t *transaction.Transaction) *transactionModel {
	m := &transactionModel{
		ID:              t.ID.String(),
		Kind:            string(t.Kind),
		Direction:       int(t.Direction),
		Reference:       t.Reference,
		Total:           t.Total.Amount,
		AllocatedAmount: t.AllocatedAmount.Amount,
		Currency:        t.Total.Currency,
		State:           string(t.State),
		EffectiveDate:   t.EffectiveDate,
		OpenItem:        t.OpenItem,
		Version:         t.Version,
		Metadata:        t.Metadata,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if !t.CustomerID.IsNil() {
		m.CustomerID = t.CustomerID.String()
	}
	return m
}

func fromTransactionModel(m *transactionModel) (*transaction.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}

	var customerID id.CustomerID
	if m.CustomerID != "" {
		customerID, err = id.ParseCustomerID(m.CustomerID)
		if err != nil {
			return nil, err
		}
	}

	return &transaction.Transaction{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              txnID,
		CustomerID:      customerID,
		Kind:            transaction.Kind(m.Kind),
		Direction:       transaction.Direction(m.Direction),
		Reference:       m.Reference,
		Total:           types.New(m.Total, m.Currency),
		AllocatedAmount: types.New(m.AllocatedAmount, m.Currency),
		State:           transaction.State(m.State),
		EffectiveDate:   m.EffectiveDate,
		OpenItem:        m.OpenItem,
		Version:         m.Version,
		Metadata:        m.Metadata,
	}, nil
}

// ==================== Allocation link models ====================

type linkModel struct {
	grove.BaseModel `grove:"table:ar_allocation_links"`

	ID         string    `grove:"id,pk"       bson:"_id"`
	CustomerID string    `grove:"customer_id" bson:"customer_id"`
	CreditID   string    `grove:"credit_id"   bson:"credit_id"`
	DebitID    string    `grove:"debit_id"    bson:"debit_id"`
	Amount     int64     `grove:"amount"      bson:"amount"`
	Currency   string    `grove:"currency"    bson:"currency"`
	CreatedAt  time.Time `grove:"created_at"  bson:"created_at"`
}

func toLinkModel(l *allocation.Link) *linkModel {
	return &linkModel{
		ID:         l.ID.String(),
		CustomerID: l.CustomerID.String(),
		CreditID:   l.CreditID.String(),
		DebitID:    l.DebitID.String(),
		Amount:     l.Amount.Amount,
		Currency:   l.Amount.Currency,
		CreatedAt:  l.CreatedAt,
	}
}

func fromLinkModel(m *linkModel) (*allocation.Link, error) {
	linkID, err := id.ParseAllocationID(m.ID)
	if err != nil {
		return nil, err
	}
	customerID, err := id.ParseCustomerID(m.CustomerID)
	if err != nil {
		return nil, err
	}
	creditID, err := id.ParseTransactionID(m.CreditID)
	if err != nil {
		return nil, err
	}
	debitID, err := id.ParseTransactionID(m.DebitID)
	if err != nil {
		return nil, err
	}

	return &allocation.Link{
		ID:         linkID,
		CustomerID: customerID,
		CreditID:   creditID,
		DebitID:    debitID,
		Amount:     types.New(m.Amount, m.Currency),
		CreatedAt:  m.CreatedAt,
	}, nil
}
