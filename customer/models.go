// Package customer defines the account holders that own ledger transactions.
package customer

import (
	"time"

	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/types"
)

// TermUnit is the unit in which account payment terms are expressed.
type TermUnit string

const (
	TermDays   TermUnit = "days"
	TermWeeks  TermUnit = "weeks"
	TermMonths TermUnit = "months"
)

// AccountTerms are the payment terms granted to a customer, e.g. "30 days".
type AccountTerms struct {
	Count int      `json:"count"`
	Unit  TermUnit `json:"unit"`
}

// DueDate returns the date a debit effective on the given date falls due.
// Unknown units are treated as days.
func (t AccountTerms) DueDate(effective time.Time) time.Time {
	switch t.Unit {
	case TermWeeks:
		return effective.AddDate(0, 0, 7*t.Count)
	case TermMonths:
		return effective.AddDate(0, t.Count, 0)
	default:
		return effective.AddDate(0, 0, t.Count)
	}
}

// Customer owns transactions and, optionally, payment terms used for aging.
type Customer struct {
	types.Entity
	ID       id.CustomerID     `json:"id"`
	Name     string            `json:"name"`
	Currency string            `json:"currency"`
	Terms    *AccountTerms     `json:"terms,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DueDate applies the customer's terms to an effective date. Without terms a
// debit is due on its effective date.
func (c *Customer) DueDate(effective time.Time) time.Time {
	if c.Terms == nil {
		return effective
	}
	return c.Terms.DueDate(effective)
}
