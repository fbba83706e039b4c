package planner

import (
	"testing"

	"github.com/benvon/frog-planner/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestDivide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		hours     string
		divisible bool
		want      []string
	}{
		{name: "divisible 2.5h", hours: "2.5", divisible: true, want: []string{"1", "1", "0.5"}},
		{name: "divisible 3h", hours: "3", divisible: true, want: []string{"1", "1", "1"}},
		{name: "divisible 1.25h", hours: "1.25", divisible: true, want: []string{"1", "0.25"}},
		{name: "divisible 1h stays whole", hours: "1", divisible: true, want: []string{"1"}},
		{name: "divisible short job stays whole", hours: "0.75", divisible: true, want: []string{"0.75"}},
		{name: "indivisible long job", hours: "5.5", divisible: false, want: []string{"5.5"}},
		{name: "indivisible 16h", hours: "16", divisible: false, want: []string{"16"}},
		{name: "divisible with odd quarters", hours: "2.33", divisible: true, want: []string{"1", "1", "0.33"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := &models.Job{
				ID:            uuid.New(),
				Title:         "write report",
				Urgency:       models.LevelHigh,
				Importance:    models.LevelLow,
				DurationHours: decimal.RequireFromString(tt.hours),
				IsFrog:        true,
				CanBeDivided:  tt.divisible,
			}
			chunks := Divide(job)
			if len(chunks) != len(tt.want) {
				t.Fatalf("Divide returned %d chunks, want %d", len(chunks), len(tt.want))
			}

			sum := decimal.Zero
			for i, c := range chunks {
				if !c.Hours.Equal(decimal.RequireFromString(tt.want[i])) {
					t.Errorf("chunk %d = %s hours, want %s", i, c.Hours, tt.want[i])
				}
				if c.Title != job.Title || c.IsFrog != job.IsFrog || c.Urgency != job.Urgency {
					t.Errorf("chunk %d does not carry the job attributes: %+v", i, c)
				}
				sum = sum.Add(c.Hours)
			}
			if !sum.Equal(job.DurationHours) {
				t.Errorf("chunks sum to %s, want %s", sum, job.DurationHours)
			}
		})
	}
}
