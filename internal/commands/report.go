package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraph/receivables"
)

func newReportCommand(opts *globalOptions) *cobra.Command {
	var asOf string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize every customer's balance as of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, opts, asOf, asJSON)
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "report date, YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write one JSON object per customer")

	return cmd
}

func runReport(cmd *cobra.Command, opts *globalOptions, asOfFlag string, asJSON bool) error {
	ctx := cmd.Context()

	asOf, err := parseAsOf(asOfFlag)
	if err != nil {
		return err
	}

	s, err := opts.load(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	var rows []receivables.SummaryRow
	for summary := range s.ledger.Summarize(s.book.All(), asOf) {
		row, err := summary.Row(ctx)
		if err != nil {
			return fmt.Errorf("summarizing %s: %w", summary.Customer.Name, err)
		}
		rows = append(rows, row)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CUSTOMER\tBALANCE\tOVERDUE\tCREDIT\tLAST PAYMENT\tLAST INVOICE")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Name,
			row.Balance,
			row.OverdueBalance,
			row.CreditBalance,
			formatSnapshot(row.LastPayment),
			formatSnapshot(row.LastInvoice),
		)
	}
	return w.Flush()
}

func formatSnapshot(s *receivables.Snapshot) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%s %s", s.Date.Format(dateFormat), s.Amount)
}
