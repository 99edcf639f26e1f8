package cli

import (
	"context"
	"fmt"
	"time"

	"wisefido-schedule/internal/app"
	"wisefido-schedule/internal/domain"
	"wisefido-schedule/internal/service"

	"github.com/spf13/cobra"
)

func newSeriesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Create, update and delete recurring series",
	}
	cmd.AddCommand(newSeriesCreateCmd(opts))
	cmd.AddCommand(newSeriesUpdateCmd(opts))
	cmd.AddCommand(newSeriesDeleteCmd(opts))
	return cmd
}

func newSeriesCreateCmd(opts *options) *cobra.Command {
	var frequency string

	cmd := &cobra.Command{
		Use:   "create <seed-event-id>",
		Short: "Turn an existing event into a series and generate 90 days of occurrences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			freq := domain.Frequency(frequency)
			if !freq.IsRepeating() {
				return fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, frequency)
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				resp, err := a.SeriesService.CreateSeries(ctx, service.CreateSeriesRequest{
					TenantID:    opts.tenantID,
					SeedEventID: args[0],
					Frequency:   freq,
				})
				if resp != nil && resp.Generated != nil {
					out := map[string]any{
						"created":    len(resp.Generated.Created),
						"detached":   resp.Generated.DetachedEventIDs,
						"suppressed": resp.Generated.SuppressedStarts,
						"reparented": resp.Reparented,
					}
					if resp.Repetition != nil {
						out["group_id"] = resp.Repetition.GroupID
					}
					if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&frequency, "frequency", "", "every_day | every_week_day | every_week | every_two_weeks")
	_ = cmd.MarkFlagRequired("frequency")
	return cmd
}

func newSeriesUpdateCmd(opts *options) *cobra.Command {
	var (
		start, end  string
		auxiliaryID string
		unassign    bool
	)

	cmd := &cobra.Command{
		Use:   "update <anchor-event-id>",
		Short: "Move the anchor and every later live occurrence by the same offset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			endDate, err := time.Parse(time.RFC3339, end)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}

			req := service.UpdateSeriesRequest{
				TenantID:      opts.tenantID,
				AnchorEventID: args[0],
				StartDate:     startDate,
				EndDate:       endDate,
			}
			switch {
			case unassign:
				empty := ""
				req.AuxiliaryID = &empty
			case cmd.Flags().Changed("auxiliary"):
				req.AuxiliaryID = &auxiliaryID
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				resp, err := a.SeriesService.UpdateSeries(ctx, req)
				if resp != nil {
					if perr := printJSON(cmd.OutOrStdout(), resp); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "New anchor start (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "New anchor end (RFC3339)")
	cmd.Flags().StringVar(&auxiliaryID, "auxiliary", "", "Reassign to this auxiliary")
	cmd.Flags().BoolVar(&unassign, "unassign", false, "Clear the auxiliary on every updated occurrence")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newSeriesDeleteCmd(opts *options) *cobra.Command {
	var actorID string

	cmd := &cobra.Command{
		Use:   "delete <anchor-event-id>",
		Short: "Delete the anchor and every later unbilled occurrence of its series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				resp, err := a.SeriesService.DeleteSeries(ctx, service.DeleteSeriesRequest{
					TenantID:      opts.tenantID,
					AnchorEventID: args[0],
					ActorID:       actorID,
				})
				if resp != nil {
					out := map[string]any{
						"anchor_event_id":      resp.Anchor.EventID,
						"skipped":              resp.Skipped,
						"deleted_event_ids":    resp.DeletedEventIDs,
						"preserved_billed_ids": resp.PreservedBilledIDs,
					}
					if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "schedulectl", "Actor recorded in event history")
	return cmd
}
