package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/transaction"
	"github.com/xraph/receivables/types"
)

func TestPlaceholders(t *testing.T) {
	idx := 2
	assert.Equal(t, "($3, $4, $5)", placeholders(&idx, 3))
	assert.Equal(t, 5, idx)
}

func TestSaveAllocationsQuery(t *testing.T) {
	custID := id.NewCustomerID()
	inv := &transaction.Transaction{ID: id.NewTransactionID(), Version: 3, AllocatedAmount: types.USD(60), OpenItem: true}
	pay := &transaction.Transaction{ID: id.NewTransactionID(), Version: 1, AllocatedAmount: types.USD(60)}
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	r := &allocation.Result{
		CustomerID: custID,
		Changed:    []*transaction.Transaction{pay, inv},
		Links: []*allocation.Link{{
			ID: id.NewAllocationID(), CustomerID: custID,
			CreditID: pay.ID, DebitID: inv.ID, Amount: types.USD(60), CreatedAt: at,
		}},
	}

	query, args := saveAllocationsQuery(r, at)
	// 4 per changed transaction, 1 timestamp, 7 per link.
	require.Len(t, args, 2*4+1+7)
	assert.Equal(t, pay.ID.String(), args[0])
	assert.Equal(t, int64(1), args[1])
	assert.Equal(t, inv.ID.String(), args[4])
	assert.Equal(t, int64(3), args[5])
	assert.Equal(t, true, args[7])
	assert.Equal(t, at, args[8])

	assert.Contains(t, query, "FOR UPDATE OF t")
	assert.Contains(t, query, "INSERT INTO ar_allocation_links")
	assert.Contains(t, query, "$16::timestamptz")
	assert.True(t, strings.HasSuffix(query, "SELECT n FROM stale"))
}

func TestSaveAllocationsQuery_MarkerOnly(t *testing.T) {
	txn := &transaction.Transaction{ID: id.NewTransactionID(), AllocatedAmount: types.USD(10)}
	r := &allocation.Result{CustomerID: id.NewCustomerID(), Changed: []*transaction.Transaction{txn}}

	query, args := saveAllocationsQuery(r, time.Now())
	assert.Len(t, args, 5)
	assert.NotContains(t, query, "ar_allocation_links")
}

func TestTransactionModel_RoundTrip(t *testing.T) {
	txn := &transaction.Transaction{
		ID:              id.NewTransactionID(),
		CustomerID:      id.NewCustomerID(),
		Kind:            transaction.KindCreditNote,
		Direction:       transaction.Credit,
		Total:           types.EUR(1500),
		AllocatedAmount: types.EUR(500),
		State:           transaction.StatePosted,
		EffectiveDate:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		OpenItem:        true,
		Version:         4,
	}

	got, err := fromTransactionModel(toTransactionModel(txn))
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
	assert.Equal(t, txn.CustomerID, got.CustomerID)
	assert.Equal(t, transaction.Credit, got.Direction)
	assert.Equal(t, int64(1000), got.Outstanding().Amount)
	assert.Equal(t, "eur", got.Total.Currency)
	assert.Equal(t, int64(4), got.Version)
}

func TestTransactionModel_NoCustomer(t *testing.T) {
	txn := &transaction.Transaction{ID: id.NewTransactionID(), Kind: transaction.KindInvoice}

	m := toTransactionModel(txn)
	assert.Empty(t, m.CustomerID)

	got, err := fromTransactionModel(m)
	require.NoError(t, err)
	assert.True(t, got.CustomerID.IsNil())
}

func TestCustomerModel_Terms(t *testing.T) {
	c := &customer.Customer{ID: id.NewCustomerID(), Currency: "usd"}
	got, err := fromCustomerModel(toCustomerModel(c))
	require.NoError(t, err)
	assert.Nil(t, got.Terms)

	c.Terms = &customer.AccountTerms{Count: 2, Unit: customer.TermWeeks}
	got, err = fromCustomerModel(toCustomerModel(c))
	require.NoError(t, err)
	require.NotNil(t, got.Terms)
	assert.Equal(t, *c.Terms, *got.Terms)
}
