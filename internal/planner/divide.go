package planner

import (
	"time"

	"github.com/benvon/frog-planner/internal/models"
	"github.com/shopspring/decimal"
)

// MaxChunkHours is the largest piece a divisible job is split into
var MaxChunkHours = decimal.NewFromInt(1)

// Chunk is a placeable piece of a job
type Chunk struct {
	Title        string
	Urgency      models.Level
	Importance   models.Level
	Hours        decimal.Decimal
	IsFrog       bool
	CanBeDivided bool
}

// Duration returns the chunk length as a time.Duration
func (c Chunk) Duration() time.Duration {
	return models.HoursToDuration(c.Hours)
}

// Divide splits a divisible job longer than one hour into one-hour chunks
// followed by the remainder, e.g. 2.5h becomes [1, 1, 0.5]. Any other job is
// returned as a single chunk carrying its full duration.
func Divide(job *models.Job) []Chunk {
	base := Chunk{
		Title:        job.Title,
		Urgency:      job.Urgency,
		Importance:   job.Importance,
		Hours:        job.DurationHours,
		IsFrog:       job.IsFrog,
		CanBeDivided: job.CanBeDivided,
	}
	if !job.CanBeDivided || !job.DurationHours.GreaterThan(MaxChunkHours) {
		return []Chunk{base}
	}

	chunks := make([]Chunk, 0, job.DurationHours.Ceil().IntPart())
	remaining := job.DurationHours
	for remaining.IsPositive() {
		piece := decimal.Min(MaxChunkHours, remaining)
		chunk := base
		chunk.Hours = piece
		chunks = append(chunks, chunk)
		remaining = remaining.Sub(piece)
	}
	return chunks
}
