package provider

import (
	"context"
	"time"
)

// Quote is the normalized OHLCV shape returned by all quote providers.
type Quote struct {
	Symbol   string    `json:"symbol"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	AsOf     time.Time `json:"as_of"`
	Currency string    `json:"currency"`
	Source   string    `json:"source"`
}

// Valid reports whether a quote is plausible enough to cache and serve.
// Prices must be non-negative and the date must fall on a real trading
// calendar; providers occasionally emit epoch-zero dates on malformed rows.
func (q Quote) Valid() bool {
	if q.Open < 0 || q.High < 0 || q.Low < 0 || q.Close < 0 || q.Volume < 0 {
		return false
	}
	if q.AsOf.IsZero() || q.AsOf.Year() < 2000 {
		return false
	}
	return true
}

// NewsItem is the normalized shape returned by all news providers.
// CanonicalURL and TitleHash are filled in by the news service, not by
// adapters.
type NewsItem struct {
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	URL          string    `json:"url"`
	CanonicalURL string    `json:"canonical_url,omitempty"`
	TitleHash    string    `json:"-"`
	Source       string    `json:"source"`
	PublishedAt  time.Time `json:"published_at"`
	Score        float64   `json:"score"`
}

// QuoteProvider fetches the latest end-of-day quote for one symbol.
type QuoteProvider interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// BatchQuoteProvider can serve several symbols in a single upstream call.
type BatchQuoteProvider interface {
	QuoteProvider
	FetchBatch(ctx context.Context, symbols []string) (map[string]Quote, error)
}

// HistoryProvider fetches a date-ranged OHLCV series, oldest first.
type HistoryProvider interface {
	Name() string
	FetchHistory(ctx context.Context, symbol string, from, to time.Time, interval string) ([]Quote, error)
}

// SearchOpts carries the parameters shared by all news providers.
type SearchOpts struct {
	MaxResults int
	DaysBack   int
	Language   string // "vi" or "en"
}

// NewsProvider runs a keyword search and returns raw (not yet deduplicated)
// results.
type NewsProvider interface {
	Name() string
	Search(ctx context.Context, query string, opts SearchOpts) ([]NewsItem, error)
}

// GoldProvider fetches current precious-metal prices.
type GoldProvider interface {
	Name() string
	FetchGold(ctx context.Context) ([]Quote, error)
}
