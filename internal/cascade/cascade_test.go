package cascade

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"findata/internal/provider"
	"findata/internal/provider/cache"
	"findata/internal/provider/ratelimit"
	"findata/internal/provider/retry"
)

type fakeQuote struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
}

func newRunner(c cache.Cache) *Runner[fakeQuote] {
	return &Runner[fakeQuote]{
		Cache:       c,
		Retry:       retry.Policy{MaxAttempts: 2, RateLimitDelay: time.Millisecond, TransientBase: time.Millisecond},
		PositiveTTL: time.Minute,
		NegativeTTL: time.Minute,
		Log:         zerolog.Nop(),
	}
}

func step(name string, calls *atomic.Int64, q fakeQuote, err error) Step[fakeQuote] {
	return Step[fakeQuote]{
		Name:    name,
		Limiter: ratelimit.New(0, 0),
		Fetch: func(context.Context) (fakeQuote, error) {
			calls.Add(1)
			if err != nil {
				return fakeQuote{}, err
			}
			return q, nil
		},
	}
}

func TestDo_CascadeOrderingAndCaching(t *testing.T) {
	mem := cache.NewMemory()
	r := newRunner(mem)

	var callsA, callsB atomic.Int64
	steps := []Step[fakeQuote]{
		step("a", &callsA, fakeQuote{}, provider.Errf(provider.KindNoData, "a", "nothing")),
		step("b", &callsB, fakeQuote{Symbol: "VCB", Close: 95.2}, nil),
	}

	got, err := r.Do(context.Background(), "quote|VCB", steps)
	require.NoError(t, err)
	require.Equal(t, 95.2, got.Close)
	require.EqualValues(t, 1, callsA.Load())
	require.EqualValues(t, 1, callsB.Load())

	// Second request: positive hit, neither provider touched.
	got, err = r.Do(context.Background(), "quote|VCB", steps)
	require.NoError(t, err)
	require.Equal(t, "VCB", got.Symbol)
	require.EqualValues(t, 1, callsA.Load())
	require.EqualValues(t, 1, callsB.Load())

	// A's failure was negative-cached under its own step key.
	_, ok, negative := mem.Get("quote|VCB#a")
	require.True(t, ok)
	require.True(t, negative)
}

func TestDo_NegativeCacheSuppressesLiveCalls(t *testing.T) {
	mem := cache.NewMemory()
	r := newRunner(mem)

	var calls atomic.Int64
	steps := []Step[fakeQuote]{
		step("only", &calls, fakeQuote{}, provider.Errf(provider.KindNoData, "only", "nothing")),
	}

	_, err := r.Do(context.Background(), "quote|XYZ", steps)
	require.ErrorIs(t, err, provider.ErrExhausted)
	require.EqualValues(t, 1, calls.Load())

	// Within the negative TTL: zero live calls, same classification.
	_, err = r.Do(context.Background(), "quote|XYZ", steps)
	require.ErrorIs(t, err, provider.ErrExhausted)
	require.EqualValues(t, 1, calls.Load())
}

func TestDo_TransientRetriesThenAdvances(t *testing.T) {
	mem := cache.NewMemory()
	r := newRunner(mem) // MaxAttempts=2

	var callsA, callsB atomic.Int64
	steps := []Step[fakeQuote]{
		step("flaky", &callsA, fakeQuote{}, provider.Errf(provider.KindTransient, "flaky", "503")),
		step("good", &callsB, fakeQuote{Symbol: "AAPL", Close: 210}, nil),
	}

	got, err := r.Do(context.Background(), "quote|AAPL", steps)
	require.NoError(t, err)
	require.Equal(t, "AAPL", got.Symbol)
	require.EqualValues(t, 2, callsA.Load(), "one retry before advancing")
	require.EqualValues(t, 1, callsB.Load())
}

func TestDo_InvalidDataNotRetriedNotCachedPositively(t *testing.T) {
	mem := cache.NewMemory()
	r := newRunner(mem)

	var calls atomic.Int64
	steps := []Step[fakeQuote]{
		step("corrupt", &calls, fakeQuote{}, provider.Errf(provider.KindInvalidData, "corrupt", "year 1970")),
	}

	_, err := r.Do(context.Background(), "quote|ABC", steps)
	require.ErrorIs(t, err, provider.ErrExhausted)
	require.EqualValues(t, 1, calls.Load(), "invalid data must not retry")

	_, ok, negative := mem.Get("quote|ABC")
	require.False(t, ok && !negative, "corrupt result must not be cached positively")
}

func TestDo_StaticFallbackServedAfterExhaustion(t *testing.T) {
	mem := cache.NewMemory()
	r := newRunner(mem)
	r.Fallback = func() (fakeQuote, bool) {
		return fakeQuote{Symbol: "XAU-24K", Close: 2_333_333}, true
	}

	var calls atomic.Int64
	steps := []Step[fakeQuote]{
		step("down", &calls, fakeQuote{}, provider.Errf(provider.KindTransient, "down", "unreachable")),
	}

	got, err := r.Do(context.Background(), "gold|vn", steps)
	require.NoError(t, err)
	require.Equal(t, "XAU-24K", got.Symbol)

	// The estimate is not cached: the next call tries the provider again.
	before := calls.Load()
	_, err = r.Do(context.Background(), "gold|vn", steps)
	require.NoError(t, err)
	require.Greater(t, calls.Load(), before)
}

func TestDo_CancellationAbortsWithoutNegativeCaching(t *testing.T) {
	mem := cache.NewMemory()
	r := newRunner(mem)

	ctx, cancel := context.WithCancel(context.Background())
	steps := []Step[fakeQuote]{
		{
			Name:    "slow",
			Limiter: ratelimit.New(0, 0),
			Fetch: func(ctx context.Context) (fakeQuote, error) {
				cancel()
				return fakeQuote{}, provider.Wrap(provider.KindTransient, "slow", ctx.Err())
			},
		},
	}

	_, err := r.Do(ctx, "quote|slow", steps)
	require.Error(t, err)

	_, ok, _ := mem.Get("quote|slow#slow")
	require.False(t, ok, "cancellation must not write a negative entry")
}

func TestDo_RateLimiterConsulted(t *testing.T) {
	mem := cache.NewMemory()
	r := newRunner(mem)

	lim := ratelimit.New(1, 200*time.Millisecond)
	var calls atomic.Int64
	steps := []Step[fakeQuote]{{
		Name:    "limited",
		Limiter: lim,
		Fetch: func(context.Context) (fakeQuote, error) {
			calls.Add(1)
			return fakeQuote{Symbol: "GAS", Close: 1}, nil
		},
	}}

	start := time.Now()
	_, err := r.Do(context.Background(), "quote|GAS|1", steps)
	require.NoError(t, err)
	_, err = r.Do(context.Background(), "quote|GAS|2", steps)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	require.EqualValues(t, 2, calls.Load())
}
