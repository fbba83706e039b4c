package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id              UUID PRIMARY KEY,
		title           VARCHAR(255) NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		urgency         SMALLINT NOT NULL CHECK (urgency BETWEEN 1 AND 3),
		importance      SMALLINT NOT NULL CHECK (importance BETWEEN 1 AND 3),
		duration_hours  NUMERIC(4,2) NOT NULL CHECK (duration_hours > 0),
		is_frog         BOOLEAN NOT NULL DEFAULT FALSE,
		can_be_divided  BOOLEAN NOT NULL DEFAULT FALSE,
		date            DATE,
		start_time      TIME,
		end_time        TIME,
		due_date        DATE,
		completed       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT jobs_placement_complete CHECK (
			(date IS NULL AND start_time IS NULL AND end_time IS NULL) OR
			(date IS NOT NULL AND start_time IS NOT NULL AND end_time IS NOT NULL)
		)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_schedule ON jobs (date, start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_unscheduled ON jobs (created_at) WHERE start_time IS NULL`,
}

// Migrate creates the schema if it does not exist yet
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
