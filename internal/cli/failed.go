package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prepfox/prepfox-ops/internal/core/retry"
)

func newFailedCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failed",
		Short: "Inspect operations that failed after retries",
	}
	cmd.AddCommand(newFailedListCmd(opts), newFailedRemoveCmd(opts))
	return cmd
}

func newFailedListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List failed operations, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			ops, err := app.FailedOperations().GetAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list failed operations: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(ops) == 0 {
				fmt.Fprintln(out, color.GreenString("No failed operations"))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tCORRELATION ID\tOPERATION\tKIND\tATTEMPTS\tMESSAGE")
			for _, op := range ops {
				kind := op.Kind
				if kind == retry.KindExhausted.String() {
					kind = color.YellowString(kind)
				} else {
					kind = color.RedString(kind)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					op.CreatedAt.Format("2006-01-02 15:04:05"),
					op.CorrelationID,
					op.Operation,
					kind,
					op.Attempts,
					op.Message,
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d failed operation(s)\n", len(ops))
			return nil
		},
	}
}

func newFailedRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [correlation_id]",
		Short: "Remove a failed operation once it has been handled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.FailedOperations().Remove(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to remove %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}
