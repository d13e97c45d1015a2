// Package csvimport reads customers and transactions from CSV files and
// posts them to a receivables ledger.
package csvimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/transaction"
	"github.com/xraph/receivables/types"
)

// CustomerHeader is the CSV header for customers.csv.
const CustomerHeader = "customer,name,currency,terms"

// TransactionHeader is the CSV header for transactions.csv.
const TransactionHeader = "customer,date,kind,reference,amount"

const (
	dateFormat = "2006-01-02"

	numCustomerFields = 4
	colCustKey        = 0
	colCustName       = 1
	colCustCurrency   = 2
	colCustTerms      = 3

	numTransactionFields = 5
	colTxnCustomer       = 0
	colTxnDate           = 1
	colTxnKind           = 2
	colTxnRef            = 3
	colTxnAmount         = 4
)

// CustomerRecord is one row of customers.csv. Key is the handle that
// transactions.csv uses to refer to the customer.
type CustomerRecord struct {
	Key      string
	Name     string
	Currency string
	Terms    *customer.AccountTerms
}

// TransactionRecord is one row of transactions.csv. Amount is in major
// currency units, e.g. "49.99".
type TransactionRecord struct {
	Customer  string
	Date      time.Time
	Kind      transaction.Kind
	Reference string
	Amount    decimal.Decimal
}

// ReadCustomers reads all rows from a customers.csv reader.
func ReadCustomers(r io.Reader) ([]CustomerRecord, error) {
	records, err := readAll(r, numCustomerFields)
	if err != nil {
		return nil, fmt.Errorf("reading customers CSV: %w", err)
	}

	var out []CustomerRecord
	for i, rec := range records {
		c, err := UnmarshalCustomer(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ReadTransactions reads all rows from a transactions.csv reader.
func ReadTransactions(r io.Reader) ([]TransactionRecord, error) {
	records, err := readAll(r, numTransactionFields)
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	var out []TransactionRecord
	for i, rec := range records {
		t, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// readAll returns the data rows, skipping the header.
func readAll(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

// UnmarshalCustomer converts a CSV row to a CustomerRecord.
func UnmarshalCustomer(record []string) (CustomerRecord, error) {
	if len(record) != numCustomerFields {
		return CustomerRecord{}, fmt.Errorf("expected %d fields, got %d", numCustomerFields, len(record))
	}
	if record[colCustKey] == "" {
		return CustomerRecord{}, fmt.Errorf("customer key is empty")
	}

	terms, err := ParseTerms(record[colCustTerms])
	if err != nil {
		return CustomerRecord{}, err
	}

	return CustomerRecord{
		Key:      record[colCustKey],
		Name:     record[colCustName],
		Currency: strings.ToLower(record[colCustCurrency]),
		Terms:    terms,
	}, nil
}

// UnmarshalTransaction converts a CSV row to a TransactionRecord.
func UnmarshalTransaction(record []string) (TransactionRecord, error) {
	if len(record) != numTransactionFields {
		return TransactionRecord{}, fmt.Errorf("expected %d fields, got %d", numTransactionFields, len(record))
	}
	if record[colTxnCustomer] == "" {
		return TransactionRecord{}, fmt.Errorf("customer key is empty")
	}

	date, err := time.Parse(dateFormat, record[colTxnDate])
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("parsing date %q: %w", record[colTxnDate], err)
	}

	kind := transaction.Kind(record[colTxnKind])
	if _, ok := kind.Direction(); !ok {
		return TransactionRecord{}, fmt.Errorf("unknown kind %q", record[colTxnKind])
	}

	amount, err := decimal.NewFromString(record[colTxnAmount])
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("parsing amount %q: %w", record[colTxnAmount], err)
	}
	if amount.IsNegative() {
		return TransactionRecord{}, fmt.Errorf("amount %q must not be negative", record[colTxnAmount])
	}

	return TransactionRecord{
		Customer:  record[colTxnCustomer],
		Date:      date,
		Kind:      kind,
		Reference: record[colTxnRef],
		Amount:    amount,
	}, nil
}

// ParseTerms parses account terms written as "<count> <unit>", e.g.
// "30 days" or "1 month". An empty string means no terms.
func ParseTerms(s string) (*customer.AccountTerms, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Fields(s)
	if len(parts) != 2 {
		return nil, fmt.Errorf("parsing terms %q: want \"<count> <unit>\"", s)
	}

	count, err := strconv.Atoi(parts[0])
	if err != nil || count < 0 {
		return nil, fmt.Errorf("parsing terms count %q", parts[0])
	}

	var unit customer.TermUnit
	switch strings.TrimSuffix(strings.ToLower(parts[1]), "s") {
	case "day":
		unit = customer.TermDays
	case "week":
		unit = customer.TermWeeks
	case "month":
		unit = customer.TermMonths
	default:
		return nil, fmt.Errorf("parsing terms unit %q", parts[1])
	}

	return &customer.AccountTerms{Count: count, Unit: unit}, nil
}

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ToMoney converts a major-unit amount to Money in the given currency.
// Amounts finer than the currency's minor unit are rejected rather than
// rounded.
func ToMoney(amount decimal.Decimal, currency string) (types.Money, error) {
	minor := amount.Shift(int32(types.CurrencyDecimals(currency)))
	if !minor.Equal(minor.Truncate(0)) {
		return types.Money{}, fmt.Errorf("amount %s has more precision than %s allows", amount, strings.ToUpper(currency))
	}
	if minor.Abs().GreaterThan(maxMinor) {
		return types.Money{}, fmt.Errorf("amount %s is too large", amount)
	}
	return types.New(minor.IntPart(), currency), nil
}
