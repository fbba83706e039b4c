package commands

import (
	"context"
	"fmt"

	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newScheduleCmd(deps Deps, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule [job-id]",
		Short: "Place unscheduled jobs on the calendar",
		Long:  "Without arguments every unscheduled, uncompleted job is placed. With a job id only that job is.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id uuid.UUID
			if len(args) == 1 {
				parsed, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid job id %q: %w", args[0], err)
				}
				id = parsed
			}
			return withPlanner(cmd, deps, opts, func(ctx context.Context, p Planner) error {
				var result *planner.RunResult
				var err error
				if id == uuid.Nil {
					result, err = p.ScheduleAll(ctx)
				} else {
					result, err = p.ScheduleOne(ctx, id)
				}
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				return writeRun(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newResetCmd(deps Deps, opts *options) *cobra.Command {
	var all, includeCompleted bool
	cmd := &cobra.Command{
		Use:   "reset [job-id]",
		Short: "Clear placements so jobs can be scheduled again",
		Args: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("give either a job id or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd, deps, opts, func(ctx context.Context, p Planner) error {
				out := cmd.OutOrStdout()
				if all {
					n, err := p.ResetAll(ctx, !includeCompleted)
					if err != nil {
						return err
					}
					if opts.jsonOut {
						return writeJSON(out, map[string]int64{"reset": n})
					}
					fmt.Fprintf(out, "Reset %d job(s)\n", n)
					return nil
				}

				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid job id %q: %w", args[0], err)
				}
				job, err := p.Reset(ctx, id)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(out, job)
				}
				fmt.Fprintf(out, "Reset %s (%s)\n", job.ID, job.Title)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Reset every placed job")
	cmd.Flags().BoolVar(&includeCompleted, "include-completed", false, "With --all, also clear completed jobs")
	return cmd
}

// placementLabel renders the slot of a placed job
func placementLabel(date models.Date, start, end models.ClockTime) string {
	return fmt.Sprintf("%s %s-%s", date, start, end)
}
