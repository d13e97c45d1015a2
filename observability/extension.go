// Package observability provides a metrics extension for receivables that
// records posting and allocation counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/plugin"
	"github.com/xraph/receivables/transaction"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnCustomerCreated    = (*MetricsExtension)(nil)
	_ plugin.OnTransactionPosted  = (*MetricsExtension)(nil)
	_ plugin.OnAllocationsApplied = (*MetricsExtension)(nil)
	_ plugin.OnOpenItemSettled    = (*MetricsExtension)(nil)
	_ plugin.OnAllocationFailed   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Ledger plugin to automatically track receivables metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Customer metrics
	CustomerCreated Counter

	// Posting metrics
	DebitsPosted  Counter
	CreditsPosted Counter
	PostedAmount  Histogram

	// Allocation metrics
	AllocationRuns     Counter
	AllocationLinks    Counter
	AllocatedAmount    Histogram
	AllocationLatency  Histogram
	OpenItemsSettled   Counter
	AllocationFailures Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Customer metrics
		CustomerCreated: factory.Counter("receivables.customer.created"),

		// Posting metrics
		DebitsPosted:  factory.Counter("receivables.transaction.posted.debit"),
		CreditsPosted: factory.Counter("receivables.transaction.posted.credit"),
		PostedAmount:  factory.Histogram("receivables.transaction.posted.amount"),

		// Allocation metrics
		AllocationRuns:     factory.Counter("receivables.allocation.applied"),
		AllocationLinks:    factory.Counter("receivables.allocation.links"),
		AllocatedAmount:    factory.Histogram("receivables.allocation.amount"),
		AllocationLatency:  factory.Histogram("receivables.allocation.latency_ms"),
		OpenItemsSettled:   factory.Counter("receivables.open_item.settled"),
		AllocationFailures: factory.Counter("receivables.allocation.failures"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// OnCustomerCreated implements plugin.OnCustomerCreated.
func (m *MetricsExtension) OnCustomerCreated(_ context.Context, _ *customer.Customer) error {
	m.CustomerCreated.Inc()
	return nil
}

// OnTransactionPosted implements plugin.OnTransactionPosted.
func (m *MetricsExtension) OnTransactionPosted(_ context.Context, t *transaction.Transaction) error {
	switch t.Direction {
	case transaction.Debit:
		m.DebitsPosted.Inc()
	case transaction.Credit:
		m.CreditsPosted.Inc()
	}
	m.PostedAmount.Observe(float64(t.Total.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Allocation hooks
// ──────────────────────────────────────────────────

// OnAllocationsApplied implements plugin.OnAllocationsApplied.
func (m *MetricsExtension) OnAllocationsApplied(_ context.Context, r *allocation.Result, elapsed time.Duration) error {
	m.AllocationRuns.Inc()
	m.AllocationLinks.Add(float64(len(r.Links)))
	m.AllocatedAmount.Observe(float64(r.Allocated().Amount))
	m.AllocationLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnOpenItemSettled implements plugin.OnOpenItemSettled.
func (m *MetricsExtension) OnOpenItemSettled(_ context.Context, _ *transaction.Transaction) error {
	m.OpenItemsSettled.Inc()
	return nil
}

// OnAllocationFailed implements plugin.OnAllocationFailed.
func (m *MetricsExtension) OnAllocationFailed(_ context.Context, _ id.CustomerID, _ error) error {
	m.AllocationFailures.Inc()
	return nil
}
