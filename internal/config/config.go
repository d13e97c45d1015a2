package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xraph/receivables"
	"github.com/xraph/receivables/customer"
)

// Config represents the receivables.yaml configuration read by the CLI.
type Config struct {
	// Currency is used for customers imported without one.
	Currency string                `yaml:"currency"`
	Terms    TermsConfig           `yaml:"terms"`
	Brackets []receivables.Bracket `yaml:"brackets,omitempty"`
}

// TermsConfig are the account terms given to customers imported without
// their own. A zero count means debits fall due on their effective date.
type TermsConfig struct {
	Count int    `yaml:"count"`
	Unit  string `yaml:"unit"`
}

// Load reads a receivables.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with 30 day terms and the 30/60/90 aging columns.
func Default() *Config {
	return &Config{
		Currency: "usd",
		Terms: TermsConfig{
			Count: 30,
			Unit:  string(customer.TermDays),
		},
		Brackets: slices.Clone(receivables.DefaultBrackets),
	}
}

// Validate checks the currency, the terms unit and the bracket bounds.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Currency) == "" {
		return fmt.Errorf("config: currency is required")
	}
	if c.Terms.Count < 0 {
		return fmt.Errorf("config: terms count must not be negative, got %d", c.Terms.Count)
	}
	switch customer.TermUnit(c.Terms.Unit) {
	case "", customer.TermDays, customer.TermWeeks, customer.TermMonths:
	default:
		return fmt.Errorf("config: unknown terms unit %q", c.Terms.Unit)
	}
	for i, b := range c.Brackets {
		if b.ToDays > 0 && b.ToDays < b.FromDays {
			return fmt.Errorf("config: bracket %d ends before it starts (%d-%d)", i, b.FromDays, b.ToDays)
		}
	}
	return nil
}

// AccountTerms returns the default terms, or nil when none are configured.
func (c *Config) AccountTerms() *customer.AccountTerms {
	if c.Terms.Count == 0 {
		return nil
	}
	unit := customer.TermUnit(c.Terms.Unit)
	if unit == "" {
		unit = customer.TermDays
	}
	return &customer.AccountTerms{Count: c.Terms.Count, Unit: unit}
}

// AgingBrackets returns the configured brackets, falling back to the
// receivables defaults.
func (c *Config) AgingBrackets() []receivables.Bracket {
	if len(c.Brackets) == 0 {
		return receivables.DefaultBrackets
	}
	return c.Brackets
}
