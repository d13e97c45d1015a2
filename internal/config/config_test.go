package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/receivables"
	"github.com/xraph/receivables/customer"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Currency = "eur"
	cfg.Terms = TermsConfig{Count: 2, Unit: "weeks"}
	cfg.Brackets = []receivables.Bracket{{FromDays: 1, ToDays: 14}, {FromDays: 15}}

	path := filepath.Join(t.TempDir(), "receivables.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "eur", got.Currency)
	assert.Equal(t, cfg.Terms, got.Terms)
	assert.Equal(t, cfg.Brackets, got.Brackets)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "usd", cfg.Currency)
	assert.Equal(t, &customer.AccountTerms{Count: 30, Unit: customer.TermDays}, cfg.AccountTerms())
	assert.Equal(t, receivables.DefaultBrackets, cfg.AgingBrackets())
	require.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receivables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("currency: gbp\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gbp", cfg.Currency)
	assert.Equal(t, 30, cfg.Terms.Count)
	assert.Len(t, cfg.AgingBrackets(), 4)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing currency", func(c *Config) { c.Currency = " " }},
		{"negative terms", func(c *Config) { c.Terms.Count = -1 }},
		{"unknown unit", func(c *Config) { c.Terms.Unit = "fortnights" }},
		{"inverted bracket", func(c *Config) { c.Brackets = []receivables.Bracket{{FromDays: 30, ToDays: 10}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAccountTerms_NoneConfigured(t *testing.T) {
	cfg := Default()
	cfg.Terms = TermsConfig{}
	assert.Nil(t, cfg.AccountTerms())

	cfg.Terms = TermsConfig{Count: 10}
	assert.Equal(t, customer.TermDays, cfg.AccountTerms().Unit)
}
