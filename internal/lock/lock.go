// Package lock serialises scheduling runs across server, worker and CLI processes.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockHeld is returned when another holder owns the lock
var ErrLockHeld = errors.New("lock is held by another scheduling run")

// Locker hands out exclusive leases on named keys
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Lease is an acquired lock; Release is safe to call more than once
type Lease interface {
	Release(ctx context.Context) error
}

// LocalLocker is an in-process Locker for single-binary use and tests
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

// Acquire takes key or fails with ErrLockHeld
func (l *LocalLocker) Acquire(_ context.Context, key string) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, ErrLockHeld
	}
	l.held[key] = true
	return &localLease{locker: l, key: key}, nil
}

type localLease struct {
	locker *LocalLocker
	key    string
	once   sync.Once
}

func (l *localLease) Release(context.Context) error {
	l.once.Do(func() {
		l.locker.mu.Lock()
		delete(l.locker.held, l.key)
		l.locker.mu.Unlock()
	})
	return nil
}
