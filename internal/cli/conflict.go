package cli

import (
	"context"
	"fmt"
	"time"

	"wisefido-schedule/internal/app"
	"wisefido-schedule/internal/domain"

	"github.com/spf13/cobra"
)

func newConflictCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflict",
		Short: "Inspect auxiliary schedule conflicts",
	}

	var (
		auxiliaryID, start, end, exclude string
	)
	check := &cobra.Command{
		Use:   "check",
		Short: "Report whether an auxiliary already has an event overlapping the window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			endDate, err := time.Parse(time.RFC3339, end)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			candidate := &domain.Event{AuxiliaryID: auxiliaryID, StartDate: startDate, EndDate: endDate}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				conflict, err := a.SeriesService.HasConflict(ctx, opts.tenantID, candidate, exclude)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"has_conflict": conflict})
			})
		},
	}
	check.Flags().StringVar(&auxiliaryID, "auxiliary", "", "Auxiliary ID")
	check.Flags().StringVar(&start, "start", "", "Window start (RFC3339)")
	check.Flags().StringVar(&end, "end", "", "Window end (RFC3339)")
	check.Flags().StringVar(&exclude, "exclude", "", "Event ID to ignore (the event being edited)")
	_ = check.MarkFlagRequired("auxiliary")
	_ = check.MarkFlagRequired("start")
	_ = check.MarkFlagRequired("end")

	cmd.AddCommand(check)
	return cmd
}
