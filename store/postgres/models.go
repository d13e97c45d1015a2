package postgres

import (
	"encoding/json"
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

	ID         string            `grove:"id,pk"`
	Name       string            `grove:"name"`
	Currency   string            `grove:"currency"`
	TermsCount int               `grove:"terms_count"`
	TermsUnit  string            `grove:"terms_unit"`
	Metadata   map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt  time.Time         `grove:"created_at"`
	UpdatedAt  time.Time         `grove:"updated_at"`
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
		m.TermsCount = c.Terms.Count
		m.TermsUnit = string(c.Terms.Unit)
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
	// An empty unit means the customer has no terms.
	if m.TermsUnit != "" {
		c.Terms = &customer.AccountTerms{Count: m.TermsCount, Unit: customer.TermUnit(m.TermsUnit)}
	}
	return c, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:ar_transactions"`

	ID              string            `grove:"id,pk"`
	CustomerID      string            `grove:"customer_id"`
	Kind            string            `grove:"kind"`
	Direction       int               `grove:"direction"`
	Reference       string            `grove:"reference"`
	Total           int64             `grove:"total"`
	AllocatedAmount int64             `grove:"allocated_amount"`
	Currency        string            `grove:"currency"`
	State           string            `grove:"state"`
	EffectiveDate   time.Time         `grove:"effective_date"`
	OpenItem        bool              `grove:"open_item"`
	Version         int64             `grove:"version"`
	Metadata        map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt       time.Time         `grove:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"`
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

// metadataJSON encodes metadata for raw statements that bind it as jsonb.
func metadataJSON(md map[string]string) string {
	if md == nil {
		return "{}"
	}
	data, _ := json.Marshal(md) //nolint:errcheck // map[string]string always encodes
	return string(data)
}

// ==================== Allocation link models ====================

type linkModel struct {
	grove.BaseModel `grove:"table:ar_allocation_links"`

	ID         string    `grove:"id,pk"`
	CustomerID string    `grove:"customer_id"`
	CreditID   string    `grove:"credit_id"`
	DebitID    string    `grove:"debit_id"`
	Amount     int64     `grove:"amount"`
	Currency   string    `grove:"currency"`
	CreatedAt  time.Time `grove:"created_at"`
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
