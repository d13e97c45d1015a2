package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraph/receivables"
	"github.com/xraph/receivables/allocation"
)

func newAllocateCommand(opts *globalOptions) *cobra.Command {
	var batch bool

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Post the imported transactions and list the allocations made",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAllocate(cmd, opts, batch)
		},
	}

	cmd.Flags().BoolVar(&batch, "batch", false, "post everything first, then allocate once per customer")

	return cmd
}

func runAllocate(cmd *cobra.Command, opts *globalOptions, batch bool) error {
	ctx := cmd.Context()

	var ledgerOpts []receivables.Option
	if batch {
		ledgerOpts = append(ledgerOpts, receivables.WithAutoAllocate(false))
	}

	s, err := opts.load(ctx, cmd.ErrOrStderr(), ledgerOpts...)
	if err != nil {
		return err
	}

	results := s.book.Results
	if batch {
		for c := range s.book.All() {
			res, err := s.ledger.Recompute(ctx, c.ID)
			if err != nil {
				return fmt.Errorf("allocating %s: %w", c.Name, err)
			}
			if !res.Empty() {
				results = append(results, res)
			}
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CUSTOMER\tCREDIT\tDEBIT\tAMOUNT")

	var links int
	for _, res := range results {
		name := s.customerName(res)
		for _, link := range res.Links {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				name,
				s.book.Reference(link.CreditID),
				s.book.Reference(link.DebitID),
				link.Amount,
			)
			links++
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d allocation(s)\n", links)
	return nil
}

func (s *session) customerName(res *allocation.Result) string {
	for _, c := range s.book.Customers {
		if c.ID == res.CustomerID {
			return c.Name
		}
	}
	return res.CustomerID.String()
}
