// Package retry centralizes the backoff decision for failed provider calls.
// The policy lives in one place so every call site backs off the same way.
package retry

import (
	"time"

	"findata/internal/provider"
)

// Policy decides whether a classified provider error is worth another
// attempt and how long to wait first.
type Policy struct {
	// MaxAttempts counts the initial call: 3 means one call plus two retries.
	MaxAttempts int
	// RateLimitDelay is the fixed wait after a rate-limit response.
	RateLimitDelay time.Duration
	// TransientBase seeds the exponential backoff for transient failures.
	TransientBase time.Duration
}

// Default mirrors the upstream clients this layer replaces: two retries,
// one-second base backoff.
func Default() Policy {
	return Policy{MaxAttempts: 3, RateLimitDelay: 2 * time.Second, TransientBase: time.Second}
}

// Decide returns (retry, delay) for a failure on the given attempt
// (0-based). InvalidData and NoData never retry: an immediate re-request is
// not expected to change either outcome.
func (p Policy) Decide(err error, attempt int) (bool, time.Duration) {
	if err == nil || attempt >= p.MaxAttempts-1 {
		return false, 0
	}
	kind, classified := provider.KindOf(err)
	if !classified {
		// Unclassified errors include context cancellation; never retry those.
		return false, 0
	}
	switch kind {
	case provider.KindRateLimited:
		return true, p.RateLimitDelay
	case provider.KindTransient:
		return true, p.TransientBase << attempt
	default:
		return false, 0
	}
}
