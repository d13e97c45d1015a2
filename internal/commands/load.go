package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/xraph/receivables"
	"github.com/xraph/receivables/internal/config"
	"github.com/xraph/receivables/internal/csvimport"
	"github.com/xraph/receivables/store/memory"
)

const dateFormat = "2006-01-02"

type globalOptions struct {
	configPath       string
	customersPath    string
	transactionsPath string
	verbose          bool
}

// session is an in-memory ledger loaded from the CSV inputs.
type session struct {
	cfg    *config.Config
	ledger *receivables.Ledger
	book   *csvimport.Book
}

func (o *globalOptions) logger(stderr io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(o.configPath)
}

// load reads the configuration and CSV inputs and posts every transaction
// to a fresh in-memory ledger.
func (o *globalOptions) load(ctx context.Context, stderr io.Writer, ledgerOpts ...receivables.Option) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	var customers []csvimport.CustomerRecord
	if o.customersPath != "" {
		f, err := os.Open(o.customersPath)
		if err != nil {
			return nil, fmt.Errorf("opening customers: %w", err)
		}
		defer f.Close()
		if customers, err = csvimport.ReadCustomers(f); err != nil {
			return nil, err
		}
	}

	f, err := os.Open(o.transactionsPath)
	if err != nil {
		return nil, fmt.Errorf("opening transactions: %w", err)
	}
	defer f.Close()
	txns, err := csvimport.ReadTransactions(f)
	if err != nil {
		return nil, err
	}

	logger := o.logger(stderr)
	opts := append([]receivables.Option{receivables.WithLogger(logger)}, ledgerOpts...)
	l := receivables.New(memory.New(), opts...)
	if err := l.Start(ctx); err != nil {
		return nil, err
	}

	im := csvimport.NewImporter(l, csvimport.Defaults{
		Currency: cfg.Currency,
		Terms:    cfg.AccountTerms(),
	}, logger)
	book, err := im.Import(ctx, customers, txns)
	if err != nil {
		return nil, err
	}

	return &session{cfg: cfg, ledger: l, book: book}, nil
}

// parseAsOf parses a YYYY-MM-DD date, defaulting to today.
func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing --as-of %q: %w", s, err)
	}
	return t, nil
}
