package customer

import (
	"context"

	"github.com/xraph/receivables/id"
)

type Store interface {
	CreateCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, customerID id.CustomerID) (*Customer, error)
	ListCustomers(ctx context.Context, opts ListOpts) ([]*Customer, error)
	UpdateCustomer(ctx context.Context, c *Customer) error
}

type ListOpts struct {
	Limit  int
	Offset int
}
