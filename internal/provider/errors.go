package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure. Every error leaving an adapter is
// wrapped in an *Error carrying one of these; the orchestration layer only
// ever branches on the kind, never on provider-specific detail.
type Kind int

const (
	// KindRateLimited: upstream returned 429 or an equivalent quota signal.
	KindRateLimited Kind = iota
	// KindTransient: network failure, timeout, or 5xx. Worth retrying.
	KindTransient
	// KindInvalidData: the payload parsed but fails plausibility checks.
	// Not retried and never cached positively.
	KindInvalidData
	// KindNoData: a clean response with nothing for this key.
	KindNoData
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindInvalidData:
		return "invalid_data"
	case KindNoData:
		return "no_data"
	}
	return "unknown"
}

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf builds a classified error with a formatted message.
func Errf(kind Kind, providerName, format string, args ...any) *Error {
	return &Error{Kind: kind, Provider: providerName, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error. A nil err returns nil.
func Wrap(kind Kind, providerName string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Provider: providerName, Err: err}
}

// KindOf extracts the classification from err. Unclassified errors
// (including context cancellation) report KindTransient, ok=false.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return KindTransient, false
}

// ErrNotFound is returned by the orchestration layer when no provider has
// data for a key. Distinct from an internal fault: callers are expected to
// render it as "no data available", not as an error page.
var ErrNotFound = errors.New("no data available")

// ErrExhausted is returned when every provider in a cascade failed and no
// static fallback was declared.
var ErrExhausted = errors.New("all providers exhausted")
