package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benvon/frog-planner/internal/config"
	"github.com/benvon/frog-planner/internal/database"
	"github.com/benvon/frog-planner/internal/models"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/benvon/frog-planner/internal/services/planning"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var monday = models.Date{Year: 2024, Month: time.January, Day: 8}

type mockPlanner struct {
	scheduleAllCalls int
	scheduledOne     uuid.UUID
	resetID          uuid.UUID
	resetAllOnlyOpen *bool
	weekOffset       int
	result           *planner.RunResult
	err              error
}

func (m *mockPlanner) ScheduleAll(context.Context) (*planner.RunResult, error) {
	m.scheduleAllCalls++
	return m.result, m.err
}

func (m *mockPlanner) ScheduleOne(_ context.Context, id uuid.UUID) (*planner.RunResult, error) {
	m.scheduledOne = id
	return m.result, m.err
}

func (m *mockPlanner) Reset(_ context.Context, id uuid.UUID) (*models.Job, error) {
	m.resetID = id
	if m.err != nil {
		return nil, m.err
	}
	return &models.Job{ID: id, Title: "write report"}, nil
}

func (m *mockPlanner) ResetAll(_ context.Context, onlyOpen bool) (int64, error) {
	m.resetAllOnlyOpen = &onlyOpen
	return 4, m.err
}

func (m *mockPlanner) Today(context.Context) (planning.DayPlan, error) {
	start, end := models.Clock(7, 0), models.Clock(8, 0)
	job := &models.Job{ID: uuid.New(), Title: "eat the frog", IsFrog: true, Date: &monday, StartTime: &start, EndTime: &end}
	return planning.DayPlan{
		Date:    monday,
		Weekday: monday.Weekday().String(),
		Jobs:    []planning.JobView{{Job: job, Tier: models.TierA, State: models.JobStateScheduled}},
	}, m.err
}

func (m *mockPlanner) Week(_ context.Context, offset int) (planning.WeekPlan, error) {
	m.weekOffset = offset
	start := monday.AddDays(7 * offset)
	plan := planning.WeekPlan{Offset: offset, Start: start, End: start.AddDays(6), Days: make([]planning.DayPlan, 7)}
	for i := range plan.Days {
		day := start.AddDays(i)
		plan.Days[i] = planning.DayPlan{Date: day, Weekday: day.Weekday().String()}
	}
	return plan, m.err
}

func testDeps(p *mockPlanner, migrateErr error) Deps {
	return Deps{
		LoadConfig: func() (*config.Config, error) {
			return &config.Config{
				DatabaseURL:      "postgres://localhost/test",
				RateLimit:        "5-S",
				RollbackSchedule: "@every 15m",
				ScheduleLockTTL:  2 * time.Minute,
				Planner:          config.DefaultPlanner(),
			}, nil
		},
		OpenPlanner: func(context.Context, *config.Config, *zap.Logger) (Planner, func(), error) {
			return p, func() {}, nil
		},
		Migrate: func(context.Context, *config.Config) error { return migrateErr },
	}
}

func run(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(deps)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	placed := &planner.RunResult{
		Placements: []planner.Placement{{
			JobID: jobID, SourceID: jobID, Title: "write report", Tier: models.TierA,
			Date: monday, Start: models.Clock(7, 0), End: models.Clock(8, 30),
			Hours: decimal.RequireFromString("1.5"), IsFrog: true,
		}},
		Unplaced: []planner.Unplaced{{JobID: uuid.New(), Title: "move house", Tier: models.TierC, Chunks: 3, Fitted: 1}},
		Updated:  1,
	}

	tests := []struct {
		name    string
		args    []string
		planner *mockPlanner
		wantErr bool
		want    []string
		check   func(*testing.T, *mockPlanner)
	}{
		{
			name:    "schedule all",
			args:    []string{"schedule"},
			planner: &mockPlanner{result: placed},
			want:    []string{"Placed 1 chunk(s)", "2024-01-08 07:00-08:30", "write report (frog)", `Could not place "move house"`},
			check: func(t *testing.T, m *mockPlanner) {
				if m.scheduleAllCalls != 1 {
					t.Errorf("ScheduleAll calls = %d, want 1", m.scheduleAllCalls)
				}
			},
		},
		{
			name:    "schedule one",
			args:    []string{"schedule", jobID.String()},
			planner: &mockPlanner{result: &planner.RunResult{}},
			want:    []string{"Placed 0 chunk(s)"},
			check: func(t *testing.T, m *mockPlanner) {
				if m.scheduledOne != jobID {
					t.Errorf("ScheduleOne id = %s, want %s", m.scheduledOne, jobID)
				}
			},
		},
		{name: "schedule bad id", args: []string{"schedule", "nope"}, planner: &mockPlanner{}, wantErr: true},
		{name: "schedule lock held", args: []string{"schedule"}, planner: &mockPlanner{err: errors.New("schedule lock held")}, wantErr: true},
		{
			name:    "reset one",
			args:    []string{"reset", jobID.String()},
			planner: &mockPlanner{},
			want:    []string{"Reset " + jobID.String()},
			check: func(t *testing.T, m *mockPlanner) {
				if m.resetID != jobID {
					t.Errorf("Reset id = %s, want %s", m.resetID, jobID)
				}
			},
		},
		{
			name:    "reset all keeps completed",
			args:    []string{"reset", "--all"},
			planner: &mockPlanner{},
			want:    []string{"Reset 4 job(s)"},
			check: func(t *testing.T, m *mockPlanner) {
				if m.resetAllOnlyOpen == nil || !*m.resetAllOnlyOpen {
					t.Error("expected ResetAll(onlyOpen=true)")
				}
			},
		},
		{
			name:    "reset all including completed",
			args:    []string{"reset", "--all", "--include-completed"},
			planner: &mockPlanner{},
			check: func(t *testing.T, m *mockPlanner) {
				if m.resetAllOnlyOpen == nil || *m.resetAllOnlyOpen {
					t.Error("expected ResetAll(onlyOpen=false)")
				}
			},
		},
		{name: "reset needs target", args: []string{"reset"}, planner: &mockPlanner{}, wantErr: true},
		{name: "reset id and all", args: []string{"reset", "--all", jobID.String()}, planner: &mockPlanner{}, wantErr: true},
		{name: "reset missing job", args: []string{"reset", jobID.String()}, planner: &mockPlanner{err: database.ErrJobNotFound}, wantErr: true},
		{
			name:    "today",
			args:    []string{"today"},
			planner: &mockPlanner{},
			want:    []string{"Monday 2024-01-08", "07:00-08:00", "eat the frog (frog)"},
		},
		{
			name:    "week with offset",
			args:    []string{"week", "--offset", "-1"},
			planner: &mockPlanner{},
			want:    []string{"Week 2024-01-01 to 2024-01-07", "nothing planned"},
			check: func(t *testing.T, m *mockPlanner) {
				if m.weekOffset != -1 {
					t.Errorf("Week offset = %d, want -1", m.weekOffset)
				}
			},
		},
		{name: "week offset out of range", args: []string{"week", "--offset", "9999"}, planner: &mockPlanner{}, wantErr: true},
		{name: "migrate", args: []string{"migrate"}, planner: &mockPlanner{}, want: []string{"Schema is up to date"}},
		{
			name:    "config",
			args:    []string{"config"},
			planner: &mockPlanner{},
			want:    []string{"planner:", "workday_start:", "07:00", "horizon_days: 30", "@every 15m"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := run(t, testDeps(tt.planner, nil), tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v (output %q)", err, tt.wantErr, out)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			if tt.check != nil {
				tt.check(t, tt.planner)
			}
		})
	}
}

func TestCommands_JSONOutput(t *testing.T) {
	t.Parallel()

	out, err := run(t, testDeps(&mockPlanner{}, nil), "week", "--json")
	if err != nil {
		t.Fatalf("week --json error = %v", err)
	}
	var week planning.WeekPlan
	if err := json.Unmarshal([]byte(out), &week); err != nil {
		t.Fatalf("output is not a week plan: %v\n%s", err, out)
	}
	if len(week.Days) != 7 || week.Start != monday {
		t.Errorf("unexpected week %+v", week)
	}
}

func TestMigrate_Error(t *testing.T) {
	t.Parallel()

	_, err := run(t, testDeps(&mockPlanner{}, errors.New("permission denied")), "migrate")
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("migrate error = %v, want wrapped permission denied", err)
	}
}
