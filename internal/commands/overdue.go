package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraph/receivables"
)

func newOverdueCommand(opts *globalOptions) *cobra.Command {
	var asOf string
	var fromDays, toDays int

	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List customers with debt overdue within a window of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOverdue(cmd, opts, asOf, fromDays, toDays)
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&fromDays, "from", 1, "minimum days past due")
	cmd.Flags().IntVar(&toDays, "to", 0, "maximum days past due (0 for no limit)")

	return cmd
}

func runOverdue(cmd *cobra.Command, opts *globalOptions, asOfFlag string, fromDays, toDays int) error {
	ctx := cmd.Context()

	asOf, err := parseAsOf(asOfFlag)
	if err != nil {
		return err
	}

	s, err := opts.load(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	// A customer that fails to evaluate is reported after the others.
	var errs receivables.MultiError

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CUSTOMER\tOVERDUE")
	for c, err := range s.ledger.StreamOverdueCustomers(ctx, s.book.All(), asOf, fromDays, toDays) {
		if c == nil {
			errs.Add(err)
			break
		}
		if err != nil {
			errs.Add(fmt.Errorf("%s: %w", c.Name, err))
			continue
		}
		amount, err := s.ledger.OverdueBalance(ctx, c.ID, asOf, fromDays, toDays)
		if err != nil {
			errs.Add(fmt.Errorf("%s: %w", c.Name, err))
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", c.Name, amount)
	}
	if err := w.Flush(); err != nil {
		errs.Add(err)
	}
	return errs.Err()
}
