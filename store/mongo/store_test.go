package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/transaction"
	"github.com/xraph/receivables/types"
)

func TestTransactionModel_BSONRoundTrip(t *testing.T) {
	txn := &transaction.Transaction{
		ID:              id.NewTransactionID(),
		CustomerID:      id.NewCustomerID(),
		Kind:            transaction.KindInvoice,
		Direction:       transaction.Debit,
		Total:           types.USD(2500),
		AllocatedAmount: types.USD(1000),
		State:           transaction.StatePosted,
		EffectiveDate:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		OpenItem:        true,
		Version:         2,
		Metadata:        map[string]string{"po": "1234"},
	}

	data, err := bson.Marshal(toTransactionModel(txn))
	require.NoError(t, err)

	var raw bson.M
	require.NoError(t, bson.Unmarshal(data, &raw))
	assert.Equal(t, txn.ID.String(), raw["_id"])
	assert.Equal(t, true, raw["open_item"])

	var m transactionModel
	require.NoError(t, bson.Unmarshal(data, &m))
	got, err := fromTransactionModel(&m)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
	assert.Equal(t, txn.CustomerID, got.CustomerID)
	assert.Equal(t, int64(1500), got.Outstanding().Amount)
	assert.Equal(t, "1234", got.Metadata["po"])
	assert.True(t, got.EffectiveDate.Equal(txn.EffectiveDate))
}

func TestCustomerModel_Terms(t *testing.T) {
	c := &customer.Customer{
		ID:       id.NewCustomerID(),
		Currency: "usd",
		Terms:    &customer.AccountTerms{Count: 1, Unit: customer.TermMonths},
	}

	got, err := fromCustomerModel(toCustomerModel(c))
	require.NoError(t, err)
	require.NotNil(t, got.Terms)
	assert.Equal(t, customer.TermMonths, got.Terms.Unit)

	c.Terms = nil
	got, err = fromCustomerModel(toCustomerModel(c))
	require.NoError(t, err)
	assert.Nil(t, got.Terms)
}

func TestLinkModel_RoundTrip(t *testing.T) {
	l := &allocation.Link{
		ID:         id.NewAllocationID(),
		CustomerID: id.NewCustomerID(),
		CreditID:   id.NewTransactionID(),
		DebitID:    id.NewTransactionID(),
		Amount:     types.JPY(300),
	}

	got, err := fromLinkModel(toLinkModel(l))
	require.NoError(t, err)
	assert.Equal(t, l.CreditID, got.CreditID)
	assert.Equal(t, l.DebitID, got.DebitID)
	assert.Equal(t, l.Amount, got.Amount)
}

func TestMigrationIndexes(t *testing.T) {
	idx := migrationIndexes()
	assert.Len(t, idx[colTransactions], 2)
	assert.Len(t, idx[colLinks], 3)
}
