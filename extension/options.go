package extension

import (
	"time"

	"github.com/xraph/receivables"
	"github.com/xraph/receivables/plugin"
	"github.com/xraph/receivables/store"
)

// Option configures the receivables Forge extension.
type Option func(*Extension)

// WithStore sets the store for the receivables engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a receivables.Option through to the underlying engine.
func WithLedgerOption(opt receivables.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a receivables plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, receivables.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableAutoAllocate stops posting from allocating automatically.
func WithDisableAutoAllocate() Option {
	return func(e *Extension) { e.config.DisableAutoAllocate = true }
}

// WithPluginTimeout sets the per-hook timeout.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
