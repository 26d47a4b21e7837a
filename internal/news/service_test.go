package news

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"findata/internal/provider"
	"findata/internal/provider/cache"
	"findata/internal/provider/retry"
)

type fakeNewsProvider struct {
	name    string
	items   []provider.NewsItem
	err     error
	calls   int
	lastOpt provider.SearchOpts
}

func (f *fakeNewsProvider) Name() string { return f.name }

func (f *fakeNewsProvider) Search(_ context.Context, _ string, opts provider.SearchOpts) ([]provider.NewsItem, error) {
	f.calls++
	f.lastOpt = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func articles(source string, n int) []provider.NewsItem {
	out := make([]provider.NewsItem, n)
	for i := range out {
		out[i] = provider.NewsItem{
			Title:       fmt.Sprintf("Market update number %d from %s desk", i, source),
			Content:     strings.Repeat("x", MinContentLength),
			URL:         fmt.Sprintf("https://%s.example.com/news/market-update-number-%d-full-story", source, i),
			Source:      source,
			PublishedAt: time.Now().Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

func newTestService(entries ...Entry) *Service {
	return &Service{
		Providers:   entries,
		Cache:       cache.NewMemory(),
		Retry:       retry.Policy{MaxAttempts: 2, RateLimitDelay: time.Millisecond, TransientBase: time.Millisecond},
		PositiveTTL: time.Minute,
		NegativeTTL: time.Minute,
		Log:         zerolog.Nop(),
	}
}

func TestSearchPrimaryOvershoot(t *testing.T) {
	t.Parallel()
	primary := &fakeNewsProvider{name: "tavily", items: articles("tavily", 8)}
	backup := &fakeNewsProvider{name: "newsdata", items: articles("newsdata", 8)}
	s := newTestService(Entry{Provider: primary}, Entry{Provider: backup})

	out, err := s.Search(context.Background(), "gold price today", 5, 30)
	require.NoError(t, err)
	require.Len(t, out, 5)
	require.Equal(t, 15, primary.lastOpt.MaxResults, "primary is asked for triple the target")
	require.Equal(t, "en", primary.lastOpt.Language)
	require.Zero(t, backup.calls, "no shortage, backup untouched")
}

func TestSearchTopsUpOnShortage(t *testing.T) {
	t.Parallel()
	primary := &fakeNewsProvider{name: "tavily", items: articles("tavily", 2)}
	backup := &fakeNewsProvider{name: "newsdata", items: articles("newsdata", 8)}
	s := newTestService(Entry{Provider: primary}, Entry{Provider: backup})

	out, err := s.Search(context.Background(), "vn-index outlook", 5, 30)
	require.NoError(t, err)
	require.Len(t, out, 5)
	require.Equal(t, 1, backup.calls)
	require.Equal(t, 3, backup.lastOpt.MaxResults, "backup only fills the gap")
}

func TestSearchFailedProviderNegativeCached(t *testing.T) {
	t.Parallel()
	primary := &fakeNewsProvider{name: "tavily", err: provider.Errf(provider.KindInvalidData, "tavily", "bad payload")}
	backup := &fakeNewsProvider{name: "newsdata", items: articles("newsdata", 3)}
	s := newTestService(Entry{Provider: primary}, Entry{Provider: backup})

	out, err := s.Search(context.Background(), "fed decision", 3, 30)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, 1, primary.calls)

	// Repeat query hits the result cache; no provider is called again.
	out2, err := s.Search(context.Background(), "fed decision", 3, 30)
	require.NoError(t, err)
	require.Equal(t, out, out2)
	require.Equal(t, 1, primary.calls, "no live calls after caching")
	require.Equal(t, 1, backup.calls)
}

func TestSearchShortResultIsSuccess(t *testing.T) {
	t.Parallel()
	primary := &fakeNewsProvider{name: "tavily", items: articles("tavily", 2)}
	backup := &fakeNewsProvider{name: "newsdata", err: provider.Errf(provider.KindNoData, "newsdata", "nothing")}
	s := newTestService(Entry{Provider: primary}, Entry{Provider: backup})

	out, err := s.Search(context.Background(), "obscure ticker", 5, 30)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestSearchAllExhausted(t *testing.T) {
	t.Parallel()
	primary := &fakeNewsProvider{name: "tavily", err: provider.Errf(provider.KindTransient, "tavily", "down")}
	backup := &fakeNewsProvider{name: "newsdata", err: provider.Errf(provider.KindNoData, "newsdata", "nothing")}
	s := newTestService(Entry{Provider: primary}, Entry{Provider: backup})

	_, err := s.Search(context.Background(), "anything at all", 3, 30)
	require.ErrorIs(t, err, provider.ErrExhausted)
	require.Equal(t, 2, primary.calls, "transient failure retried once before advancing")
}

func TestSearchSortsNewestFirstAndFiltersDaysBack(t *testing.T) {
	t.Parallel()
	items := articles("tavily", 3)
	items[0].PublishedAt = time.Now().AddDate(0, 0, -40) // outside the window
	items[1].PublishedAt = time.Now().Add(-48 * time.Hour)
	items[2].PublishedAt = time.Now().Add(-time.Hour)
	primary := &fakeNewsProvider{name: "tavily", items: items}
	s := newTestService(Entry{Provider: primary})

	out, err := s.Search(context.Background(), "market recap", 5, 30)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.True(t, out[0].PublishedAt.After(out[1].PublishedAt))
}

func TestSearchVietnameseQueryLanguage(t *testing.T) {
	t.Parallel()
	primary := &fakeNewsProvider{name: "tavily", items: articles("tavily", 3)}
	s := newTestService(Entry{Provider: primary})

	_, err := s.Search(context.Background(), "giá vàng hôm nay", 3, 30)
	require.NoError(t, err)
	require.Equal(t, "vi", primary.lastOpt.Language)
}

type recordingArchive struct {
	saved []provider.NewsItem
}

func (r *recordingArchive) SaveNews(_ context.Context, items []provider.NewsItem) error {
	r.saved = append(r.saved, items...)
	return nil
}

func TestSearchArchivesResults(t *testing.T) {
	t.Parallel()
	primary := &fakeNewsProvider{name: "tavily", items: articles("tavily", 3)}
	s := newTestService(Entry{Provider: primary})
	archive := &recordingArchive{}
	s.Archive = archive

	out, err := s.Search(context.Background(), "bank earnings season", 3, 30)
	require.NoError(t, err)
	require.Equal(t, out, archive.saved)
}
