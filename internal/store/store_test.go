package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"findata/internal/provider"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "findata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveQuotesUpsert(t *testing.T) {
	s := openTestStore(t)
	asOf := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	q := provider.Quote{
		Symbol: "AAPL", Open: 100, High: 110, Low: 99, Close: 105,
		Volume: 1000, AsOf: asOf, Currency: "USD", Source: "eodhd",
	}
	require.NoError(t, s.SaveQuotes(context.Background(), []provider.Quote{q}))

	// Re-fetching the same trading day overwrites, never duplicates.
	q.Close = 106
	require.NoError(t, s.SaveQuotes(context.Background(), []provider.Quote{q}))

	got, err := s.QuotesFor(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 106.0, got[0].Close)
	require.True(t, got[0].AsOf.Equal(asOf))
}

func TestSaveNewsSkipsExistingCanonicalURL(t *testing.T) {
	s := openTestStore(t)
	item := provider.NewsItem{
		Title:        "Fed raises rates for the third time",
		TitleHash:    "abc123",
		Content:      "full article body",
		URL:          "https://www.example.com/news/fed-raises-rates?utm=1",
		CanonicalURL: "https://example.com/news/fed-raises-rates",
		Source:       "tavily",
		PublishedAt:  time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		Score:        0.8,
	}
	require.NoError(t, s.SaveNews(context.Background(), []provider.NewsItem{item}))

	exists, err := s.ExistsByCanonicalURL(context.Background(), item.CanonicalURL)
	require.NoError(t, err)
	require.True(t, exists)

	// Same canonical URL from another provider is ignored.
	dup := item
	dup.Source = "newsdata"
	dup.URL = "https://m.example.com/news/fed-raises-rates"
	require.NoError(t, s.SaveNews(context.Background(), []provider.NewsItem{dup}))

	got, err := s.RecentNews(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "tavily", got[0].Source, "first insert wins")
}

func TestExistsByCanonicalURLMiss(t *testing.T) {
	s := openTestStore(t)
	exists, err := s.ExistsByCanonicalURL(context.Background(), "https://example.com/never-stored")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestRecentNewsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	older := provider.NewsItem{
		Title: "Older story", CanonicalURL: "https://example.com/older", URL: "https://example.com/older",
		Source: "tavily", PublishedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := provider.NewsItem{
		Title: "Newer story", CanonicalURL: "https://example.com/newer", URL: "https://example.com/newer",
		Source: "tavily", PublishedAt: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveNews(context.Background(), []provider.NewsItem{older, newer}))

	got, err := s.RecentNews(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Newer story", got[0].Title)
}
