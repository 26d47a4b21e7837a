package quotes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"findata/internal/provider"
)

// flushTimeout bounds a coalesced batch call. The batch runs on a detached
// context so one caller hanging up does not fail its siblings.
const flushTimeout = 2 * time.Minute

// coalescer merges single-symbol lookups that arrive within a short window
// into one batch call per market. The first caller for a market opens the
// window; everyone joining before it closes shares the same provider call.
type coalescer struct {
	window time.Duration
	fetch  func(ctx context.Context, market string, symbols []string) (map[string]QuoteResult, error)

	mu      sync.Mutex
	pending map[string]*batchCall // by market
}

type batchCall struct {
	symbols map[string]struct{}
	done    chan struct{}
	results map[string]QuoteResult
	err     error
}

func newCoalescer(window time.Duration, fetch func(context.Context, string, []string) (map[string]QuoteResult, error)) *coalescer {
	return &coalescer{
		window:  window,
		fetch:   fetch,
		pending: make(map[string]*batchCall),
	}
}

// get joins the open window for market (opening one if needed) and waits for
// the shared result. The caller's own context governs only its wait, not the
// batch call.
func (c *coalescer) get(ctx context.Context, market, symbol string) (QuoteResult, error) {
	c.mu.Lock()
	call, open := c.pending[market]
	if !open {
		call = &batchCall{
			symbols: make(map[string]struct{}),
			done:    make(chan struct{}),
		}
		c.pending[market] = call
		time.AfterFunc(c.window, func() { c.flush(market, call) })
	}
	call.symbols[symbol] = struct{}{}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return QuoteResult{}, ctx.Err()
	case <-call.done:
	}
	if call.err != nil {
		return QuoteResult{}, call.err
	}
	res, ok := call.results[symbol]
	if !ok {
		// fetch guarantees an entry per requested symbol.
		return QuoteResult{}, fmt.Errorf("coalesced batch missed %s: %w", symbol, provider.ErrNotFound)
	}
	return res, nil
}

func (c *coalescer) flush(market string, call *batchCall) {
	c.mu.Lock()
	delete(c.pending, market)
	symbols := make([]string, 0, len(call.symbols))
	for sym := range call.symbols {
		symbols = append(symbols, sym)
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	call.results, call.err = c.fetch(ctx, market, symbols)
	close(call.done)
}
