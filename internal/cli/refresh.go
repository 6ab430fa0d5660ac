package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prepfox/prepfox-ops/internal/core/domain"
	"github.com/prepfox/prepfox-ops/internal/core/retry"
)

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	var storeID, userID string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch and store the sync statuses of a store",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			r, err := app.Refresher()
			if err != nil {
				return err
			}
			statuses, err := r.Refresh(cmd.Context(), storeID, userID)
			if err != nil {
				return fmt.Errorf("%s: %w", retry.UserMessage(err), err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INTEGRATION\tSTATE\tSTARTED\tERROR")
			for _, s := range statuses {
				started := "-"
				if !s.StartedAt.IsZero() {
					started = s.StartedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Integration, stateColor(s.State), started, s.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&storeID, "store", "", "store id")
	cmd.Flags().StringVar(&userID, "user", "", "user id for notifications")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}

func stateColor(s domain.SyncState) string {
	switch s {
	case domain.SyncStateSuccess:
		return color.GreenString(string(s))
	case domain.SyncStateError:
		return color.RedString(string(s))
	case domain.SyncStateSyncing:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}
