// Package goldsvc serves gold prices through the provider cascade with a
// static domestic estimate as the terminal fallback, so the caller always
// gets a usable domestic price.
package goldsvc

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"findata/internal/cascade"
	"findata/internal/provider"
	"findata/internal/provider/cache"
	"findata/internal/provider/ratelimit"
	"findata/internal/provider/retry"
)

// Static fallback constants: a tael of gold is 37.5 grams; the estimate is a
// round domestic figure refreshed manually when it drifts too far.
const (
	fallbackTaelVND  = 87_500_000
	gramsPerTael     = 37.5
	fallbackGramVND  = fallbackTaelVND / gramsPerTael
	fallbackSource   = "fallback-static"
	defaultGoldTTL   = 5 * time.Minute
	defaultNegTTL    = 30 * time.Minute
	defaultCacheName = "gold"
)

// Prices is the domestic-first gold snapshot. Domestic is never empty: the
// static estimate backstops a fully failed cascade. Spot carries the
// international XAU/USD quote when a provider for it succeeded.
type Prices struct {
	Domestic []provider.Quote `json:"domestic"`
	Spot     *provider.Quote  `json:"spot,omitempty"`
}

// Entry is one gold provider in cascade priority order.
type Entry struct {
	Provider provider.GoldProvider
	Limiter  *ratelimit.Limiter
}

type Config struct {
	Providers   []Entry
	Cache       cache.Cache
	Retry       retry.Policy
	PositiveTTL time.Duration
	NegativeTTL time.Duration
	Log         zerolog.Logger
}

type Service struct {
	runner *cascade.Runner[[]provider.Quote]
	steps  []cascade.Step[[]provider.Quote]
}

func New(cfg Config) *Service {
	if cfg.PositiveTTL <= 0 {
		cfg.PositiveTTL = defaultGoldTTL
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = defaultNegTTL
	}
	s := &Service{
		runner: &cascade.Runner[[]provider.Quote]{
			Cache:       cfg.Cache,
			Retry:       cfg.Retry,
			PositiveTTL: cfg.PositiveTTL,
			NegativeTTL: cfg.NegativeTTL,
			Log:         cfg.Log,
			Fallback:    func() ([]provider.Quote, bool) { return staticEstimate(), true },
		},
	}
	for _, e := range cfg.Providers {
		e := e
		s.steps = append(s.steps, cascade.Step[[]provider.Quote]{
			Name:    e.Provider.Name(),
			Limiter: e.Limiter,
			Fetch: func(ctx context.Context) ([]provider.Quote, error) {
				return e.Provider.FetchGold(ctx)
			},
		})
	}
	return s
}

// Prices returns the current gold snapshot. The error path is context
// cancellation only: exhaustion lands on the static estimate instead.
func (s *Service) Prices(ctx context.Context) (Prices, error) {
	quotes, err := s.runner.Do(ctx, cache.Key(defaultCacheName, "latest"), s.steps)
	if err != nil {
		return Prices{}, err
	}
	return split(quotes), nil
}

// split separates domestic VND tiers from the international spot quote.
func split(quotes []provider.Quote) Prices {
	var p Prices
	for _, q := range quotes {
		if q.Currency == "VND" {
			p.Domestic = append(p.Domestic, q)
			continue
		}
		if q.Symbol == "XAU" && q.Currency == "USD" && p.Spot == nil {
			spot := q
			p.Spot = &spot
		}
	}
	if len(p.Domestic) == 0 {
		p.Domestic = staticEstimate()
	}
	return p
}

// staticEstimate is the last line of defense: per-gram 24K price derived
// from a fixed per-tael figure, with the usual ±1% buy/sell spread.
func staticEstimate() []provider.Quote {
	return []provider.Quote{{
		Symbol:   "XAU-24K",
		Open:     fallbackGramVND,
		High:     fallbackGramVND * 1.01,
		Low:      fallbackGramVND * 0.99,
		Close:    fallbackGramVND,
		AsOf:     time.Now().UTC(),
		Currency: "VND",
		Source:   fallbackSource,
	}}
}
