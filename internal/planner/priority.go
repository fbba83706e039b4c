package planner

import (
	"slices"

	"github.com/benvon/frog-planner/internal/models"
)

// Classify maps an urgency/importance pair to a priority tier.
// A: both high. B: exactly one high. C: neither high.
func Classify(urgency, importance models.Level) models.Tier {
	urgent := urgency == models.LevelHigh
	important := importance == models.LevelHigh
	switch {
	case urgent && important:
		return models.TierA
	case urgent != important:
		return models.TierB
	default:
		return models.TierC
	}
}

// TierOf returns the tier of a job
func TierOf(job *models.Job) models.Tier {
	return Classify(job.Urgency, job.Importance)
}

// Rank returns the jobs ordered A before B before C. Jobs within a tier keep
// their input order. The input slice is not modified.
func Rank(jobs []*models.Job) []*models.Job {
	ranked := slices.Clone(jobs)
	slices.SortStableFunc(ranked, func(a, b *models.Job) int {
		return tierRank(TierOf(a)) - tierRank(TierOf(b))
	})
	return ranked
}

func tierRank(t models.Tier) int {
	switch t {
	case models.TierA:
		return 0
	case models.TierB:
		return 1
	default:
		return 2
	}
}
