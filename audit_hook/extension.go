// Package audithook bridges receivables lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/plugin"
	"github.com/xraph/receivables/transaction"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnCustomerCreated    = (*Extension)(nil)
	_ plugin.OnTransactionPosted  = (*Extension)(nil)
	_ plugin.OnAllocationsApplied = (*Extension)(nil)
	_ plugin.OnOpenItemSettled    = (*Extension)(nil)
	_ plugin.OnAllocationFailed   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges receivables lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnCustomerCreated implements plugin.OnCustomerCreated.
func (e *Extension) OnCustomerCreated(ctx context.Context, c *customer.Customer) error {
	return e.record(ctx, ActionCustomerCreated, SeverityInfo, OutcomeSuccess,
		ResourceCustomer, c.ID.String(), CategoryAccount, nil,
		"name", c.Name,
		"currency", c.Currency,
	)
}

// OnTransactionPosted implements plugin.OnTransactionPosted.
func (e *Extension) OnTransactionPosted(ctx context.Context, t *transaction.Transaction) error {
	return e.record(ctx, ActionTransactionPosted, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, t.ID.String(), CategoryPosting, nil,
		"customer_id", t.CustomerID.String(),
		"kind", string(t.Kind),
		"direction", t.Direction.String(),
		"reference", t.Reference,
		"total", t.Total.String(),
	)
}

// ──────────────────────────────────────────────────
// Allocation hooks
// ──────────────────────────────────────────────────

// OnAllocationsApplied implements plugin.OnAllocationsApplied.
func (e *Extension) OnAllocationsApplied(ctx context.Context, r *allocation.Result, elapsed time.Duration) error {
	return e.record(ctx, ActionAllocationApplied, SeverityInfo, OutcomeSuccess,
		ResourceAllocation, r.CustomerID.String(), CategoryAllocation, nil,
		"links", len(r.Links),
		"changed", len(r.Changed),
		"allocated", r.Allocated().String(),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnOpenItemSettled implements plugin.OnOpenItemSettled.
func (e *Extension) OnOpenItemSettled(ctx context.Context, t *transaction.Transaction) error {
	return e.record(ctx, ActionOpenItemSettled, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, t.ID.String(), CategoryAllocation, nil,
		"customer_id", t.CustomerID.String(),
		"kind", string(t.Kind),
		"total", t.Total.String(),
	)
}

// OnAllocationFailed implements plugin.OnAllocationFailed.
func (e *Extension) OnAllocationFailed(ctx context.Context, customerID id.CustomerID, err error) error {
	return e.record(ctx, ActionAllocationFailed, SeverityError, OutcomeFailure,
		ResourceAllocation, customerID.String(), CategoryAllocation, err,
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
