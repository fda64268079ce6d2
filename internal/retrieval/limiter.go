package retrieval

import (
	"context"
	"sync"
	"time"
)

// Limiter spaces calls to the search API at a fixed minimum interval. One
// limiter is constructed per process and shared by every caller; Acquire is
// safe under concurrent use and never holds the lock while waiting.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

// NewLimiter creates a limiter with the given minimum interval between
// calls. A non-positive interval disables limiting.
func NewLimiter(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Acquire blocks until the caller's reserved slot arrives or ctx is done.
// Slots are handed out in Acquire order.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	if l.next.Before(now) {
		l.next = now
	}
	wait := l.next.Sub(now)
	l.next = l.next.Add(l.interval)
	l.mu.Unlock()

	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		// The reserved slot goes unused; give it back so later callers
		// are not delayed by a call that never happened.
		l.mu.Lock()
		l.next = l.next.Add(-l.interval)
		l.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
