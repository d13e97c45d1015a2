// Package types provides value types shared across receivables packages.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Money is a monetary value in the smallest currency unit.
// All arithmetic is integer-only. A ledger operates in a single currency, so
// mixing currencies in arithmetic is a programming error and panics.
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (cents, pence, etc)
	Currency string `json:"currency"` // ISO 4217 lowercase: "usd", "eur", "gbp"
}

// New creates a Money value in the given currency.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// JPY creates a Money value in Japanese Yen (no decimal).
func JPY(yen int64) Money { return Money{Amount: yen, Currency: "jpy"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.currencyOr(other)}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.currencyOr(other)}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values have the same amount and currency.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// LessThan returns true if this Money is less than other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// Min returns the smaller of two Money values. Panics if currencies don't match.
func (m Money) Min(other Money) Money {
	m.assertSameCurrency(other)
	if m.Amount <= other.Amount {
		return m
	}
	return other
}

// FormatMajor returns the major unit string without currency symbol,
// e.g. "49.00" for USD(4900) and "100" for JPY(100).
func (m Money) FormatMajor() string {
	decimals := CurrencyDecimals(m.Currency)
	if decimals == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}

	divisor := int64(1)
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}

	abs := m.Amount
	sign := ""
	if abs < 0 {
		abs = -abs
		sign = "-"
	}

	return fmt.Sprintf("%s%d.%0*d", sign, abs/divisor, decimals, abs%divisor)
}

// String returns the amount followed by the upper-case currency code,
// e.g. "49.00 USD".
func (m Money) String() string {
	if m.Currency == "" {
		return m.FormatMajor()
	}
	return m.FormatMajor() + " " + strings.ToUpper(m.Currency)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// assertSameCurrency panics if currencies don't match. An empty currency is
// the zero value of an accumulator and matches anything.
func (m Money) assertSameCurrency(other Money) {
	if m.Currency != "" && other.Currency != "" && m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

func (m Money) currencyOr(other Money) string {
	if m.Currency != "" {
		return m.Currency
	}
	return other.Currency
}

// CurrencyDecimals returns the number of minor-unit digits for a currency.
func CurrencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd", "clp", "pyg", "idr":
		return 0
	default:
		return 2
	}
}

// Sum adds the given values in the given currency.
func Sum(currency string, values ...Money) Money {
	total := Zero(currency)
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
