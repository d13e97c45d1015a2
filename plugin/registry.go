package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/receivables/allocation"
	"github.com/xraph/receivables/customer"
	"github.com/xraph/receivables/id"
	"github.com/xraph/receivables/transaction"
)

// DefaultTimeout bounds how long a single hook may run.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and dispatches hooks to them.
// Hook implementations are discovered once at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit               []OnInit
	onShutdown           []OnShutdown
	onCustomerCreated    []OnCustomerCreated
	onTransactionPosted  []OnTransactionPosted
	onAllocationsApplied []OnAllocationsApplied
	onOpenItemSettled    []OnOpenItemSettled
	onAllocationFailed   []OnAllocationFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout. Non-positive values are ignored.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnCustomerCreated); ok {
		r.onCustomerCreated = append(r.onCustomerCreated, v)
	}
	if v, ok := p.(OnTransactionPosted); ok {
		r.onTransactionPosted = append(r.onTransactionPosted, v)
	}
	if v, ok := p.(OnAllocationsApplied); ok {
		r.onAllocationsApplied = append(r.onAllocationsApplied, v)
	}
	if v, ok := p.(OnOpenItemSettled); ok {
		r.onOpenItemSettled = append(r.onOpenItemSettled, v)
	}
	if v, ok := p.(OnAllocationFailed); ok {
		r.onAllocationFailed = append(r.onAllocationFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	check := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	check(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	check(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	check(reflect.TypeOf((*OnCustomerCreated)(nil)).Elem(), "OnCustomerCreated")
	check(reflect.TypeOf((*OnTransactionPosted)(nil)).Elem(), "OnTransactionPosted")
	check(reflect.TypeOf((*OnAllocationsApplied)(nil)).Elem(), "OnAllocationsApplied")
	check(reflect.TypeOf((*OnOpenItemSettled)(nil)).Elem(), "OnOpenItemSettled")
	check(reflect.TypeOf((*OnAllocationFailed)(nil)).Elem(), "OnAllocationFailed")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error { return p.OnInit(ctx, l) })
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error { return p.OnShutdown(ctx) })
	}
}

// EmitCustomerCreated emits a customer created event.
func (r *Registry) EmitCustomerCreated(ctx context.Context, c *customer.Customer) {
	r.mu.RLock()
	plugins := r.onCustomerCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnCustomerCreated", func() error { return p.OnCustomerCreated(ctx, c) })
	}
}

// EmitTransactionPosted emits a transaction posted event.
func (r *Registry) EmitTransactionPosted(ctx context.Context, t *transaction.Transaction) {
	r.mu.RLock()
	plugins := r.onTransactionPosted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnTransactionPosted", func() error { return p.OnTransactionPosted(ctx, t) })
	}
}

// EmitAllocationsApplied emits an allocations applied event.
func (r *Registry) EmitAllocationsApplied(ctx context.Context, res *allocation.Result, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onAllocationsApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnAllocationsApplied", func() error { return p.OnAllocationsApplied(ctx, res, elapsed) })
	}
}

// EmitOpenItemSettled emits an open item settled event.
func (r *Registry) EmitOpenItemSettled(ctx context.Context, t *transaction.Transaction) {
	r.mu.RLock()
	plugins := r.onOpenItemSettled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnOpenItemSettled", func() error { return p.OnOpenItemSettled(ctx, t) })
	}
}

// EmitAllocationFailed emits an allocation failed event.
func (r *Registry) EmitAllocationFailed(ctx context.Context, customerID id.CustomerID, err error) {
	r.mu.RLock()
	plugins := r.onAllocationFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnAllocationFailed", func() error { return p.OnAllocationFailed(ctx, customerID, err) })
	}
}

// dispatch runs one hook and logs, but never propagates, its failure.
func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins must never block posting or allocation.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
