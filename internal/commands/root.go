package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/receivables/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "receivables",
		Short:   "Allocate payments against invoices and report what customers owe",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to receivables.yaml (defaults apply when empty)")
	flags.StringVar(&opts.customersPath, "customers", "", "path to customers.csv")
	flags.StringVar(&opts.transactionsPath, "transactions", "", "path to transactions.csv (required)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log engine activity to stderr")
	_ = rootCmd.MarkPersistentFlagRequired("transactions")

	rootCmd.AddCommand(
		newAllocateCommand(opts),
		newReportCommand(opts),
		newOverdueCommand(opts),
		newAgingCommand(opts),
	)

	return rootCmd
}
