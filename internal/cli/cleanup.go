package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Mark syncs stuck in progress as failed, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Cleaner().RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reconciled %d stuck sync(s)\n", n)
			return nil
		},
	}
}
