package receivables

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/transaction"
	"github.com/xraph/receivables/types"
)

func openItem(kind transaction.Kind, total, allocated int64) *transaction.Transaction {
	dir, _ := kind.Direction()
	return &transaction.Transaction{
		ID:              id.NewTransactionID(),
		Kind:            kind,
		Direction:       dir,
		Total:           types.USD(total),
		AllocatedAmount: types.USD(allocated),
		State:           transaction.StatePosted,
		OpenItem:        true,
	}
}

func TestAllocate_OnlyCreditsOrDebits(t *testing.T) {
	res := allocate(id.NewCustomerID(), []*transaction.Transaction{
		openItem(transaction.KindInvoice, 100, 0),
		openItem(transaction.KindRefund, 50, 10),
	}, time.Now())
	assert.True(t, res.Empty())
	assert.Empty(t, res.Links)
}

func TestAllocate_PartiallyAllocatedInputs(t *testing.T) {
	inv := openItem(transaction.KindInvoice, 100, 70)
	pay := openItem(transaction.KindPayment, 50, 20)

	res := allocate(id.NewCustomerID(), []*transaction.Transaction{pay, inv}, time.Now())
	require.Len(t, res.Links, 1)
	assert.Equal(t, int64(30), res.Links[0].Amount.Amount)
	assert.Equal(t, int64(100), inv.AllocatedAmount.Amount)
	assert.Equal(t, int64(50), pay.AllocatedAmount.Amount)
	assert.False(t, inv.OpenItem)
	assert.False(t, pay.OpenItem)
	assert.Len(t, res.Changed, 2)
	assert.Len(t, res.Settled(), 2)
}

func TestAllocate_DropsStaleMarker(t *testing.T) {
	settled := openItem(transaction.KindInvoice, 100, 100)

	res := allocate(id.NewCustomerID(), []*transaction.Transaction{settled}, time.Now())
	require.Len(t, res.Changed, 1)
	assert.False(t, settled.OpenItem)
	assert.Empty(t, res.Links)
}

func TestAllocate_IgnoresUnpostedAndDuplicates(t *testing.T) {
	inv := openItem(transaction.KindInvoice, 100, 0)
	draft := openItem(transaction.KindPayment, 100, 0)
	draft.State = transaction.StateDraft
	pay := openItem(transaction.KindPayment, 40, 0)

	res := allocate(id.NewCustomerID(), []*transaction.Transaction{draft, pay, inv, pay}, time.Now())
	require.Len(t, res.Links, 1)
	assert.Equal(t, int64(40), res.Links[0].Amount.Amount)
	assert.Equal(t, int64(0), draft.AllocatedAmount.Amount)
}

func TestAllocate_ChangedInFirstTouchOrder(t *testing.T) {
	d1 := openItem(transaction.KindInvoice, 10, 0)
	d2 := openItem(transaction.KindInvoice, 10, 0)
	c1 := openItem(transaction.KindPayment, 15, 0)

	res := allocate(id.NewCustomerID(), []*transaction.Transaction{c1, d1, d2}, time.Now())
	require.Len(t, res.Changed, 3)
	assert.Equal(t, c1.ID, res.Changed[0].ID)
	assert.Equal(t, d1.ID, res.Changed[1].ID)
	assert.Equal(t, d2.ID, res.Changed[2].ID)
	assert.Equal(t, int64(5), d2.AllocatedAmount.Amount)
	assert.True(t, d2.OpenItem)
}
