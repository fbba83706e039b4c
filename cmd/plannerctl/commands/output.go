package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/benvon/frog-planner/internal/planner"
	"github.com/benvon/frog-planner/internal/services/planning"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRun(w io.Writer, result *planner.RunResult) error {
	fmt.Fprintf(w, "Placed %d chunk(s): %d created, %d updated, %d replaced\n",
		len(result.Placements), result.Created, result.Updated, result.Deleted)

	if len(result.Placements) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIER\tSLOT\tHOURS\tTITLE")
		for _, p := range result.Placements {
			title := p.Title
			if p.IsFrog {
				title += " (frog)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Tier, placementLabel(p.Date, p.Start, p.End), p.Hours.String(), title)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	for _, u := range result.Unplaced {
		fmt.Fprintf(w, "Could not place %q (tier %s): %d of %d chunk(s) fit within the horizon\n",
			u.Title, u.Tier, u.Fitted, u.Chunks)
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped %d job(s) already placed or completed\n", len(result.Skipped))
	}
	return nil
}

func writeDay(w io.Writer, day planning.DayPlan) error {
	fmt.Fprintf(w, "%s %s\n", day.Weekday, day.Date)
	if len(day.Jobs) == 0 {
		fmt.Fprintln(w, "  nothing planned")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, job := range day.Jobs {
		slot := "--:--"
		if job.StartTime != nil && job.EndTime != nil {
			slot = fmt.Sprintf("%s-%s", job.StartTime, job.EndTime)
		}
		marks := ""
		if job.IsFrog {
			marks += " (frog)"
		}
		if job.Completed {
			marks += " [done]"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s%s\n", slot, job.Tier, job.Title, marks)
	}
	return tw.Flush()
}

func writeWeek(w io.Writer, week planning.WeekPlan) error {
	fmt.Fprintf(w, "Week %s to %s\n", week.Start, week.End)
	for _, day := range week.Days {
		if err := writeDay(w, day); err != nil {
			return err
		}
	}
	return nil
}
