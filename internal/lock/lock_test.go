package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalLocker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	locker := NewLocalLocker()

	lease, err := locker.Acquire(ctx, "schedule")
	if err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}
	if _, err := locker.Acquire(ctx, "schedule"); !errors.Is(err, ErrLockHeld) {
		t.Errorf("second Acquire() error = %v, want ErrLockHeld", err)
	}
	if other, err := locker.Acquire(ctx, "rollback"); err != nil {
		t.Errorf("Acquire() on a different key error = %v", err)
	} else {
		_ = other.Release(ctx)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Errorf("second Release() error = %v", err)
	}

	again, err := locker.Acquire(ctx, "schedule")
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	_ = again.Release(ctx)
}

func TestNewRedisLocker_InvalidURL(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisLocker("not-a-redis-url://", time.Minute); err == nil {
		t.Error("expected an error for an invalid Redis URL")
	}
}

func TestNewRedisLockerWithClient_DefaultTTL(t *testing.T) {
	t.Parallel()

	l := NewRedisLockerWithClient(nil, 0)
	if l.ttl != 2*time.Minute {
		t.Errorf("ttl = %s, want 2m default", l.ttl)
	}
}
