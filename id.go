package receivables

import "github.com/xraph/receivables/id"

// ID is the identifier type shared by customers, transactions and links.
type ID = id.ID

// ParseTransactionID parses a "txn_" prefixed TypeID.
var ParseTransactionID = id.ParseTransactionID

// ParseCustomerID parses a "cust_" prefixed TypeID.
var ParseCustomerID = id.ParseCustomerID
