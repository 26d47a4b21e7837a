// Package cascade runs a logical request through an ordered list of
// providers until one succeeds. It owns the interaction between the result
// cache, the per-provider rate limiters and the retry policy, so adapters
// stay stateless and the services stay declarative.
package cascade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"findata/internal/provider"
	"findata/internal/provider/cache"
	"findata/internal/provider/ratelimit"
	"findata/internal/provider/retry"
)

// Step is one provider in priority order. Fetch must return a complete,
// validated result or a classified error.
type Step[T any] struct {
	Name    string
	Limiter *ratelimit.Limiter
	Fetch   func(ctx context.Context) (T, error)
}

// Runner executes cascades against a shared cache. One Runner per logical
// domain (quotes, gold, news), sharing process-wide cache and limiters.
type Runner[T any] struct {
	Cache       cache.Cache
	Retry       retry.Policy
	PositiveTTL time.Duration
	NegativeTTL time.Duration
	Log         zerolog.Logger

	// Fallback, when set, supplies a static estimate after every provider
	// has failed. The estimate is returned but never cached: it must not
	// mask a provider recovery.
	Fallback func() (T, bool)

	group singleflight.Group
}

// Do resolves key through the cascade. Identical concurrent keys collapse to
// a single execution. On a positive cache hit no provider is touched; a
// provider's own recent failure short-circuits that provider only.
func (r *Runner[T]) Do(ctx context.Context, key string, steps []Step[T]) (T, error) {
	var zero T

	if value, ok, negative := r.Cache.Get(key); ok && !negative {
		var out T
		if err := json.Unmarshal(value, &out); err == nil {
			r.Log.Debug().Str("key", key).Msg("cache hit")
			return out, nil
		}
		// Undecodable entry: drop it and fetch fresh.
		r.Cache.Invalidate(key)
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.run(ctx, key, steps)
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func (r *Runner[T]) run(ctx context.Context, key string, steps []Step[T]) (T, error) {
	var zero T

	// Re-check under the singleflight lock: a concurrent caller may have
	// filled the cache while this one waited.
	if value, ok, negative := r.Cache.Get(key); ok && !negative {
		var out T
		if err := json.Unmarshal(value, &out); err == nil {
			return out, nil
		}
	}

	var lastErr error
	for _, step := range steps {
		stepKey := key + "#" + step.Name
		if _, ok, negative := r.Cache.Get(stepKey); ok && negative {
			r.Log.Debug().Str("key", key).Str("provider", step.Name).Msg("negative cache hit, skipping provider")
			lastErr = provider.Errf(provider.KindNoData, step.Name, "recently failed, in negative cache")
			continue
		}

		out, err := r.tryStep(ctx, step)
		if err == nil {
			if b, merr := json.Marshal(out); merr == nil {
				r.Cache.PutPositive(key, b, r.PositiveTTL)
			}
			return out, nil
		}
		if ctx.Err() != nil {
			// Caller gave up; do not poison the negative cache on our way out.
			return zero, err
		}

		kind, _ := provider.KindOf(err)
		r.Log.Warn().Str("key", key).Str("provider", step.Name).Stringer("kind", kind).Err(err).Msg("provider failed, advancing cascade")
		r.Cache.PutNegative(stepKey, r.NegativeTTL)
		lastErr = err
	}

	if r.Fallback != nil {
		if out, ok := r.Fallback(); ok {
			r.Log.Warn().Str("key", key).Msg("all providers failed, serving static fallback")
			return out, nil
		}
	}

	if lastErr != nil {
		return zero, fmt.Errorf("%w: %w", provider.ErrExhausted, lastErr)
	}
	return zero, provider.ErrExhausted
}

// tryStep runs one provider with rate limiting and the retry policy. The
// returned error is the final classified failure after the attempt budget.
func (r *Runner[T]) tryStep(ctx context.Context, step Step[T]) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		if err := step.Limiter.Acquire(ctx); err != nil {
			return zero, err
		}
		out, err := step.Fetch(ctx)
		if err == nil {
			return out, nil
		}

		again, delay := r.Retry.Decide(err, attempt)
		if !again {
			return zero, err
		}
		r.Log.Debug().Str("provider", step.Name).Int("attempt", attempt).Dur("delay", delay).Msg("retrying provider")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}

// IsUnavailable reports whether err is the terminal "no data" outcome rather
// than an internal fault.
func IsUnavailable(err error) bool {
	return errors.Is(err, provider.ErrExhausted) || errors.Is(err, provider.ErrNotFound)
}
