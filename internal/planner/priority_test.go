package planner

import (
	"testing"

	"github.com/benvon/frog-planner/internal/models"
	"github.com/google/uuid"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	low, med, high := models.LevelLow, models.LevelMedium, models.LevelHigh
	tests := []struct {
		urgency    models.Level
		importance models.Level
		want       models.Tier
	}{
		{high, high, models.TierA},
		{high, med, models.TierB},
		{high, low, models.TierB},
		{med, high, models.TierB},
		{low, high, models.TierB},
		{med, med, models.TierC},
		{med, low, models.TierC},
		{low, med, models.TierC},
		{low, low, models.TierC},
	}

	for _, tt := range tests {
		t.Run(tt.urgency.String()+"/"+tt.importance.String(), func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.urgency, tt.importance); got != tt.want {
				t.Errorf("Classify(%s, %s) = %s, want %s", tt.urgency, tt.importance, got, tt.want)
			}
		})
	}
}

func TestRank_StableWithinTier(t *testing.T) {
	t.Parallel()

	c1 := &models.Job{ID: uuid.New(), Title: "c1", Urgency: models.LevelLow, Importance: models.LevelLow}
	a1 := &models.Job{ID: uuid.New(), Title: "a1", Urgency: models.LevelHigh, Importance: models.LevelHigh}
	b1 := &models.Job{ID: uuid.New(), Title: "b1", Urgency: models.LevelHigh, Importance: models.LevelLow}
	c2 := &models.Job{ID: uuid.New(), Title: "c2", Urgency: models.LevelMedium, Importance: models.LevelMedium}
	a2 := &models.Job{ID: uuid.New(), Title: "a2", Urgency: models.LevelHigh, Importance: models.LevelHigh}
	b2 := &models.Job{ID: uuid.New(), Title: "b2", Urgency: models.LevelLow, Importance: models.LevelHigh}

	input := []*models.Job{c1, a1, b1, c2, a2, b2}
	got := Rank(input)

	want := []string{"a1", "a2", "b1", "b2", "c1", "c2"}
	if len(got) != len(want) {
		t.Fatalf("Rank returned %d jobs, want %d", len(got), len(want))
	}
	for i, job := range got {
		if job.Title != want[i] {
			t.Errorf("position %d: got %s, want %s", i, job.Title, want[i])
		}
	}
	if input[0] != c1 || input[1] != a1 {
		t.Error("Rank must not reorder its input slice")
	}
}
