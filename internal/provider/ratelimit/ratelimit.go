// Package ratelimit enforces a per-provider call budget over a trailing
// window. Acquire blocks until a slot is free; it never rejects.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits at most MaxCalls calls within any trailing Window, and
// additionally spaces consecutive calls by at least Window/MaxCalls so a
// full budget is never spent in one burst.
type Limiter struct {
	maxCalls int
	window   time.Duration
	spacing  time.Duration

	mu    sync.Mutex
	calls []time.Time // admission times still inside the window
	last  time.Time
}

// New returns a limiter admitting maxCalls per window. A maxCalls <= 0
// yields a no-op limiter.
func New(maxCalls int, window time.Duration) *Limiter {
	l := &Limiter{maxCalls: maxCalls, window: window}
	if maxCalls > 0 && window > 0 {
		l.spacing = window / time.Duration(maxCalls)
	}
	return l
}

// Acquire blocks until a call slot is available, then reserves it. The only
// error path is context cancellation; under contention multiple waiters race
// for the freed slot, so the wait loops and re-checks after every sleep.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.maxCalls <= 0 || l.window <= 0 {
		return ctx.Err()
	}
	for {
		l.mu.Lock()
		now := time.Now()
		l.evict(now)

		var wait time.Duration
		if len(l.calls) >= l.maxCalls {
			// Sleep until the oldest admission leaves the window, plus a
			// small buffer so the re-check lands on the far side.
			wait = l.calls[0].Add(l.window).Sub(now) + 5*time.Millisecond
		} else if !l.last.IsZero() {
			if gap := l.spacing - now.Sub(l.last); gap > 0 {
				wait = gap
			}
		}

		if wait <= 0 {
			l.calls = append(l.calls, now)
			l.last = now
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// evict drops admissions that have aged out of the trailing window.
// Caller holds l.mu.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

// InFlight returns the number of admissions currently inside the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(time.Now())
	return len(l.calls)
}
