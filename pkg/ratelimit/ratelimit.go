// Package ratelimit spaces out calls to an upstream service.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Lock interface {
	// Lock blocks until the caller is allowed to proceed or ctx is done.
	// The returned function must be called once the call has finished.
	Lock(ctx context.Context) func()
}

type lock struct {
	lck  sync.Mutex
	wait time.Duration
	next time.Time
}

// New returns a lock that lets a call start at most once every wait. Calls
// are not serialized: a slow call doesn't hold back the next one.
func New(wait time.Duration) Lock {
	return &lock{wait: wait}
}

func (l *lock) Lock(ctx context.Context) func() {
	if l.wait <= 0 {
		return func() {}
	}
	l.lck.Lock()
	now := time.Now()
	start := l.next
	if start.Before(now) {
		start = now
	}
	l.next = start.Add(l.wait)
	l.lck.Unlock()

	if d := time.Until(start); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
	return func() {}
}
