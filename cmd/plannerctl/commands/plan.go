package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newTodayCmd(deps Deps, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Print today's plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd, deps, opts, func(ctx context.Context, p Planner) error {
				day, err := p.Today(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), day)
				}
				return writeDay(cmd.OutOrStdout(), day)
			})
		},
	}
}

// maxWeekOffset matches the API bound, about ten years either way
const maxWeekOffset = 520

func newWeekCmd(deps Deps, opts *options) *cobra.Command {
	var offset int
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Print the Monday to Sunday plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if offset < -maxWeekOffset || offset > maxWeekOffset {
				return fmt.Errorf("--offset must be between %d and %d", -maxWeekOffset, maxWeekOffset)
			}
			return withPlanner(cmd, deps, opts, func(ctx context.Context, p Planner) error {
				week, err := p.Week(ctx, offset)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), week)
				}
				return writeWeek(cmd.OutOrStdout(), week)
			})
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "Weeks from the current one; negative looks back")
	return cmd
}
