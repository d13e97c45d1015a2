package extension

import "time"

// Config holds the receivables extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.receivables" or "receivables" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// DisableAutoAllocate stops Post from running allocation for the
	// customer. Callers then invoke Recompute themselves.
	DisableAutoAllocate bool `json:"disable_auto_allocate" mapstructure:"disable_auto_allocate" yaml:"disable_auto_allocate"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PluginTimeout: 5 * time.Second,
	}
}
