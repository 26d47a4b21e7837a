// Package quotes orchestrates equity quote and history lookups across the
// per-market provider cascades, coalescing single-symbol callers into batch
// calls where the provider supports them.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"findata/internal/cascade"
	"findata/internal/provider"
	"findata/internal/provider/cache"
	"findata/internal/provider/ratelimit"
	"findata/internal/provider/retry"
)

// Source is one provider in a market's cascade. History may be nil when the
// provider has no date-ranged endpoint.
type Source struct {
	Name    string
	Limiter *ratelimit.Limiter
	Batch   provider.BatchQuoteProvider
	History provider.HistoryProvider
}

// QuoteResult is the per-symbol outcome of a batch lookup. Err is
// ErrNotFound (possibly wrapped) when no provider had the symbol.
type QuoteResult struct {
	Quote provider.Quote
	Err   error
}

// Recorder persists fetched quotes for offline analysis. Failures are
// logged, never surfaced to quote callers.
type Recorder interface {
	SaveQuotes(ctx context.Context, quotes []provider.Quote) error
}

// Config assembles a Service. Zero durations fall back to the defaults
// below.
type Config struct {
	// Sources maps an upper-case market code ("US", "VN") to its provider
	// cascade in priority order.
	Sources map[string][]Source

	Cache cache.Cache
	Retry retry.Policy

	QuoteTTL       time.Duration // default 5m
	HistoryTTL     time.Duration // default 24h
	NegativeTTL    time.Duration // default 30m
	CoalesceWindow time.Duration // default 25ms
	MaxInFlight    int64         // default 4 concurrent provider calls

	Archive Recorder // optional
	Log     zerolog.Logger
}

type Service struct {
	sources map[string][]Source
	cache   cache.Cache
	retry   retry.Policy

	quoteTTL    time.Duration
	negativeTTL time.Duration

	history *cascade.Runner[[]provider.Quote]
	co      *coalescer
	sem     *semaphore.Weighted
	archive Recorder
	log     zerolog.Logger
}

func New(cfg Config) *Service {
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = 5 * time.Minute
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = 24 * time.Hour
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = 30 * time.Minute
	}
	if cfg.CoalesceWindow <= 0 {
		cfg.CoalesceWindow = 25 * time.Millisecond
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	s := &Service{
		sources:     cfg.Sources,
		cache:       cfg.Cache,
		retry:       cfg.Retry,
		quoteTTL:    cfg.QuoteTTL,
		negativeTTL: cfg.NegativeTTL,
		history: &cascade.Runner[[]provider.Quote]{
			Cache:       cfg.Cache,
			Retry:       cfg.Retry,
			PositiveTTL: cfg.HistoryTTL,
			NegativeTTL: cfg.NegativeTTL,
			Log:         cfg.Log,
		},
		sem:     semaphore.NewWeighted(cfg.MaxInFlight),
		archive: cfg.Archive,
		log:     cfg.Log,
	}
	s.co = newCoalescer(cfg.CoalesceWindow, s.fetchBatch)
	return s
}

// Quote returns the latest quote for one symbol. Concurrent callers inside
// the coalescing window share a single batch call per market.
func (s *Service) Quote(ctx context.Context, symbol, market string) (provider.Quote, error) {
	symbol = normalizeSymbol(symbol)
	market = normalizeMarket(market)
	if _, ok := s.sources[market]; !ok {
		return provider.Quote{}, fmt.Errorf("market %q: %w", market, provider.ErrNotFound)
	}

	// Cache hit needs no coalescing at all.
	if q, ok := s.cachedQuote(market, symbol); ok {
		return q, nil
	}

	res, err := s.co.get(ctx, market, symbol)
	if err != nil {
		return provider.Quote{}, err
	}
	if res.Err != nil {
		return provider.Quote{}, res.Err
	}
	return res.Quote, nil
}

// BatchQuotes resolves several symbols against one market's cascade. The
// result map always has one entry per distinct input symbol; per-symbol
// failures do not affect siblings. The only call-level error is context
// cancellation.
func (s *Service) BatchQuotes(ctx context.Context, symbols []string, market string) (map[string]QuoteResult, error) {
	market = normalizeMarket(market)
	distinct := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = normalizeSymbol(sym)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		distinct = append(distinct, sym)
	}

	out := make(map[string]QuoteResult, len(distinct))
	if _, ok := s.sources[market]; !ok {
		for _, sym := range distinct {
			out[sym] = QuoteResult{Err: fmt.Errorf("market %q: %w", market, provider.ErrNotFound)}
		}
		return out, nil
	}

	missing := make([]string, 0, len(distinct))
	for _, sym := range distinct {
		if q, ok := s.cachedQuote(market, sym); ok {
			out[sym] = QuoteResult{Quote: q}
			continue
		}
		missing = append(missing, sym)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := s.fetchBatch(ctx, market, missing)
	if err != nil {
		return nil, err
	}
	for sym, res := range fetched {
		out[sym] = res
	}
	return out, nil
}

// History returns a date-ranged OHLCV series, oldest first, through the
// market's cascade of history-capable providers.
func (s *Service) History(ctx context.Context, symbol, market string, from, to time.Time, interval string) ([]provider.Quote, error) {
	symbol = normalizeSymbol(symbol)
	market = normalizeMarket(market)
	sources, ok := s.sources[market]
	if !ok {
		return nil, fmt.Errorf("market %q: %w", market, provider.ErrNotFound)
	}
	if interval == "" {
		interval = "1D"
	}

	steps := make([]cascade.Step[[]provider.Quote], 0, len(sources))
	for _, src := range sources {
		if src.History == nil {
			continue
		}
		src := src
		steps = append(steps, cascade.Step[[]provider.Quote]{
			Name:    src.Name,
			Limiter: src.Limiter,
			Fetch: func(ctx context.Context) ([]provider.Quote, error) {
				if err := s.sem.Acquire(ctx, 1); err != nil {
					return nil, err
				}
				defer s.sem.Release(1)
				return src.History.FetchHistory(ctx, symbol, from, to, interval)
			},
		})
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("market %q has no history provider: %w", market, provider.ErrNotFound)
	}

	key := cache.Key("history", market, symbol,
		from.Format("2006-01-02"), to.Format("2006-01-02"), interval)
	series, err := s.history.Do(ctx, key, steps)
	if err != nil {
		if cascade.IsUnavailable(err) {
			return nil, fmt.Errorf("history %s.%s: %w", symbol, market, err)
		}
		return nil, err
	}
	return series, nil
}

// fetchBatch walks the market cascade for the given symbols: one FetchBatch
// call per provider for whatever is still missing, per-symbol negative
// caching, per-symbol NotFound after exhaustion.
func (s *Service) fetchBatch(ctx context.Context, market string, symbols []string) (map[string]QuoteResult, error) {
	out := make(map[string]QuoteResult, len(symbols))
	missing := symbols
	lastErr := make(map[string]error, len(symbols))

	for _, src := range s.sources[market] {
		if len(missing) == 0 {
			break
		}

		// Skip symbols this provider failed on recently.
		ask := make([]string, 0, len(missing))
		for _, sym := range missing {
			if _, ok, negative := s.cache.Get(s.stepKey(market, sym, src.Name)); ok && negative {
				continue
			}
			ask = append(ask, sym)
		}
		if len(ask) == 0 {
			continue
		}

		batch, err := s.callBatch(ctx, src, ask)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			kind, _ := provider.KindOf(err)
			s.log.Warn().Str("provider", src.Name).Str("market", market).
				Stringer("kind", kind).Err(err).Msg("batch fetch failed, advancing cascade")
			for _, sym := range ask {
				s.cache.PutNegative(s.stepKey(market, sym, src.Name), s.negativeTTL)
				lastErr[sym] = err
			}
			continue
		}

		var persisted []provider.Quote
		next := missing[:0]
		for _, sym := range missing {
			q, found := batch[sym]
			if found && q.Valid() {
				if b, merr := json.Marshal(q); merr == nil {
					s.cache.PutPositive(s.quoteKey(market, sym), b, s.quoteTTL)
				}
				out[sym] = QuoteResult{Quote: q}
				persisted = append(persisted, q)
				continue
			}
			if slices.Contains(ask, sym) {
				// Absent or implausible row: NoData for this symbol alone.
				s.cache.PutNegative(s.stepKey(market, sym, src.Name), s.negativeTTL)
				lastErr[sym] = provider.Errf(provider.KindNoData, src.Name, "symbol %s not in batch response", sym)
			}
			next = append(next, sym)
		}
		missing = next

		if s.archive != nil && len(persisted) > 0 {
			if err := s.archive.SaveQuotes(ctx, persisted); err != nil {
				s.log.Error().Err(err).Msg("archiving quotes failed")
			}
		}
	}

	for _, sym := range missing {
		err := fmt.Errorf("quote %s.%s: %w", sym, market, provider.ErrNotFound)
		if cause := lastErr[sym]; cause != nil {
			err = fmt.Errorf("quote %s.%s: %w: %w", sym, market, provider.ErrNotFound, cause)
		}
		out[sym] = QuoteResult{Err: err}
	}
	return out, nil
}

// callBatch runs one provider's FetchBatch under the rate limiter, the
// concurrency semaphore and the retry policy.
func (s *Service) callBatch(ctx context.Context, src Source, symbols []string) (map[string]provider.Quote, error) {
	for attempt := 0; ; attempt++ {
		if err := src.Limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		batch, err := func() (map[string]provider.Quote, error) {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return nil, err
			}
			defer s.sem.Release(1)
			return src.Batch.FetchBatch(ctx, symbols)
		}()
		if err == nil {
			return batch, nil
		}

		again, delay := s.retry.Decide(err, attempt)
		if !again {
			return nil, err
		}
		s.log.Debug().Str("provider", src.Name).Int("attempt", attempt).Dur("delay", delay).Msg("retrying batch fetch")
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (s *Service) cachedQuote(market, symbol string) (provider.Quote, bool) {
	value, ok, negative := s.cache.Get(s.quoteKey(market, symbol))
	if !ok || negative {
		return provider.Quote{}, false
	}
	var q provider.Quote
	if err := json.Unmarshal(value, &q); err != nil {
		s.cache.Invalidate(s.quoteKey(market, symbol))
		return provider.Quote{}, false
	}
	return q, true
}

func (s *Service) quoteKey(market, symbol string) string {
	return cache.Key("quote", market, symbol)
}

func (s *Service) stepKey(market, symbol, providerName string) string {
	return s.quoteKey(market, symbol) + "#" + providerName
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalizeMarket(s string) string {
	m := strings.ToUpper(strings.TrimSpace(s))
	if m == "" {
		m = "US"
	}
	return m
}
