package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraph/receivables"
)

func newAgingCommand(opts *globalOptions) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "aging",
		Short: "Split each customer's overdue balance into the configured brackets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAging(cmd, opts, asOf)
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date, YYYY-MM-DD (default today)")

	return cmd
}

func runAging(cmd *cobra.Command, opts *globalOptions, asOfFlag string) error {
	ctx := cmd.Context()

	asOf, err := parseAsOf(asOfFlag)
	if err != nil {
		return err
	}

	s, err := opts.load(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	brackets := s.cfg.AgingBrackets()

	header := []string{"CUSTOMER"}
	for _, b := range brackets {
		header = append(header, bracketLabel(b))
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for c := range s.book.All() {
		buckets, err := s.ledger.Aging(ctx, c.ID, asOf, brackets...)
		if err != nil {
			return fmt.Errorf("aging %s: %w", c.Name, err)
		}
		cols := []string{c.Name}
		for _, bucket := range buckets {
			cols = append(cols, bucket.Amount.String())
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	return w.Flush()
}

func bracketLabel(b receivables.Bracket) string {
	from := max(b.FromDays, 1)
	if b.ToDays <= 0 {
		return fmt.Sprintf("%d+", from)
	}
	return fmt.Sprintf("%d-%d", from, b.ToDays)
}
