// Package lock defines the mutual-exclusion contract used to serialize slot
// acquisition and appointment status changes, plus an in-process
// implementation for single-node deployments and tests.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotAcquired = errors.New("lock not acquired")
	ErrUnavailable = errors.New("lock backend unavailable")
)

// Locker runs fn while holding an exclusive lock on key. Keys are
// independent: holding one never blocks callers of another.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type entry struct {
	sem  chan struct{}
	refs int
}

// Local is a keyed mutex. Entries are reference counted so the map only
// holds keys that currently have a holder or a waiter.
type Local struct {
	mu   sync.Mutex
	keys map[string]*entry
	wait time.Duration
}

// NewLocal returns a Local locker. A positive wait bounds how long a caller
// queues behind the current holder before giving up with ErrNotAcquired.
func NewLocal(wait time.Duration) *Local {
	return &Local{
		keys: make(map[string]*entry),
		wait: wait,
	}
}

func (l *Local) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e := l.ref(key)
	defer l.unref(key, e)

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case e.sem <- struct{}{}:
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrNotAcquired
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (l *Local) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.keys[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	return e
}

func (l *Local) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}
