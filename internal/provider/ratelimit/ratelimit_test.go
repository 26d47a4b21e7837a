package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquire_SpacesCallsAcrossWindow(t *testing.T) {
	// 3 calls per 300ms: spacing is 100ms, so 6 back-to-back acquires must
	// take at least (6-3) * 100ms.
	l := New(3, 300*time.Millisecond)

	start := time.Now()
	for i := 0; i < 6; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 300*time.Millisecond, "6 calls finished too quickly: %v", elapsed)
	require.LessOrEqual(t, l.InFlight(), 3)
}

func TestAcquire_MinSpacingUnderCountLimit(t *testing.T) {
	l := New(10, time.Second) // spacing 100ms

	start := time.Now()
	require.NoError(t, l.Acquire(context.Background()))
	require.NoError(t, l.Acquire(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquire_ContextCancelUnblocks(t *testing.T) {
	l := New(1, time.Hour)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquire_ConcurrentWaitersNeverExceedBudget(t *testing.T) {
	const n = 8
	l := New(2, 200*time.Millisecond)

	done := make(chan time.Time, n)
	for i := 0; i < n; i++ {
		go func() {
			if err := l.Acquire(context.Background()); err == nil {
				done <- time.Now()
			}
		}()
	}

	var admitted []time.Time
	for i := 0; i < n; i++ {
		admitted = append(admitted, <-done)
	}

	// No 200ms sub-window may contain more than 2 admissions.
	for i := range admitted {
		count := 0
		for j := range admitted {
			d := admitted[j].Sub(admitted[i])
			if d >= 0 && d < 200*time.Millisecond {
				count++
			}
		}
		require.LessOrEqual(t, count, 2, "window starting at admission %d over budget", i)
	}
}

func TestAcquire_NoopWhenUnconfigured(t *testing.T) {
	l := New(0, 0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}
