package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/frog-planner/internal/lock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type rollbackFunc func(ctx context.Context) (int64, error)

func (f rollbackFunc) RollbackElapsed(ctx context.Context) (int64, error) {
	return f(ctx)
}

func TestNewSweeper(t *testing.T) {
	t.Parallel()

	target := rollbackFunc(func(context.Context) (int64, error) { return 0, nil })
	tests := []struct {
		name    string
		target  Rollbacker
		spec    string
		wantErr bool
	}{
		{name: "descriptor", target: target, spec: "@every 15m"},
		{name: "five field cron", target: target, spec: "*/5 7-21 * * 1-5"},
		{name: "seconds field rejected", target: target, spec: "0 */5 * * * *", wantErr: true},
		{name: "garbage", target: target, spec: "whenever", wantErr: true},
		{name: "nil target", spec: "@hourly", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSweeper(tt.target, tt.spec, time.UTC, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSweeper() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSweeper_Sweep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		result    int64
		err       error
		wantLevel zapcore.Level
		wantMsg   string
	}{
		{name: "rolled back", result: 2, wantLevel: zapcore.DebugLevel, wantMsg: "rollback_sweep_completed"},
		{name: "lock held", err: lock.ErrLockHeld, wantLevel: zapcore.DebugLevel, wantMsg: "rollback_sweep_skipped_lock_held"},
		{name: "store failure", err: errors.New("db down"), wantLevel: zapcore.ErrorLevel, wantMsg: "rollback_sweep_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			core, logs := observer.New(zapcore.DebugLevel)
			var deadlineSet bool
			target := rollbackFunc(func(ctx context.Context) (int64, error) {
				_, deadlineSet = ctx.Deadline()
				return tt.result, tt.err
			})
			s, err := NewSweeper(target, "@every 1h", time.UTC, zap.New(core))
			if err != nil {
				t.Fatalf("NewSweeper() error = %v", err)
			}

			s.Sweep(context.Background())

			if !deadlineSet {
				t.Error("sweep should run with a timeout")
			}
			entries := logs.FilterMessage(tt.wantMsg).All()
			if len(entries) != 1 || entries[0].Level != tt.wantLevel {
				t.Errorf("expected one %s %q entry, got %+v", tt.wantLevel, tt.wantMsg, logs.All())
			}
		})
	}
}

func TestSweeper_StartStop(t *testing.T) {
	t.Parallel()

	target := rollbackFunc(func(context.Context) (int64, error) { return 0, nil })
	s, err := NewSweeper(target, "@every 1h", time.UTC, nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Errorf("second Start() error = %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	s.Stop(stopCtx)
	s.Stop(stopCtx)
	if s.c != nil {
		t.Error("Stop should clear the cron instance")
	}
}
