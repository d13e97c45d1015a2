// Package extension provides the Forge extension adapter for receivables.
//
// It implements the forge.Extension interface to integrate the allocation
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.receivables" or
// "receivables" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/receivables"
	"github.com/xraph/receivables/store"
	"github.com/xraph/receivables/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "receivables"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Accounts receivable open-item allocation engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the receivables engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *receivables.Ledger
	store      store.Store
	ledgerOpts []receivables.Option
}

// New creates a new receivables Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *receivables.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = receivables.New(e.store, e.buildLedgerOpts()...)

	return vessel.Provide(fapp.Container(), func() (*receivables.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("receivables: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("receivables: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs receivables.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []receivables.Option {
	opts := make([]receivables.Option, 0, len(e.ledgerOpts)+2)

	if e.config.PluginTimeout > 0 {
		opts = append(opts, receivables.WithPluginTimeout(e.config.PluginTimeout))
	}
	if e.config.DisableAutoAllocate {
		opts = append(opts, receivables.WithAutoAllocate(false))
	}

	opts = append(opts, e.ledgerOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("receivables: configuration is required but not found in config files; " +
				"ensure 'extensions.receivables' or 'receivables' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("receivables: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("disable_auto_allocate", e.config.DisableAutoAllocate),
		forge.F("plugin_timeout", e.config.PluginTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.receivables", "receivables"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("receivables: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("receivables: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = DefaultConfig().PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableAutoAllocate {
		yamlConfig.DisableAutoAllocate = true
	}
	if yamlConfig.PluginTimeout == 0 && programmaticConfig.PluginTimeout != 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	return mergeWithDefaults(yamlConfig)
}
