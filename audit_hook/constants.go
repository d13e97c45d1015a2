package audithook

// Action constants for audit events.
const (
	// Customer actions
	ActionCustomerCreated = "customer.created"

	// Posting actions
	ActionTransactionPosted = "transaction.posted"

	// Allocation actions
	ActionAllocationApplied = "allocation.applied"
	ActionOpenItemSettled   = "open_item.settled"
	ActionAllocationFailed  = "allocation.failed"
)

// Resource constants for audit events.
const (
	ResourceCustomer    = "customer"
	ResourceTransaction = "transaction"
	ResourceAllocation  = "allocation"
)

// Category constants for audit events.
const (
	CategoryAccount    = "account"
	CategoryPosting    = "posting"
	CategoryAllocation = "allocation"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
