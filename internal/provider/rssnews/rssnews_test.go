package rssnews

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"findata/internal/provider"
)

func rssBody(pubDate time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
	<title>Markets Feed</title>
	<item>
		<title>Gold price climbs to a new high</title>
		<link>https://feed.example.com/news/gold-price-climbs</link>
		<description>&lt;p&gt;Spot &lt;b&gt;gold&lt;/b&gt; extended gains on Monday.&lt;/p&gt;</description>
		<pubDate>%s</pubDate>
	</item>
	<item>
		<title>Weather report for the weekend</title>
		<link>https://feed.example.com/news/weather</link>
		<description>Sunny with a chance of rain.</description>
		<pubDate>%s</pubDate>
	</item>
</channel></rss>`, pubDate.Format(time.RFC1123Z), pubDate.Format(time.RFC1123Z))
}

func newTestProvider(t *testing.T, language string, pubDate time.Time) *Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssBody(pubDate))
	}))
	t.Cleanup(srv.Close)
	return New(Config{Feeds: []Feed{{Name: "markets", URL: srv.URL, Language: language}}})
}

func TestSearchNormalizesFeedItems(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, "en", time.Now().Add(-2*time.Hour))

	out, err := p.Search(context.Background(), "gold price", provider.SearchOpts{MaxResults: 10, DaysBack: 7, Language: "en"})
	require.NoError(t, err)
	require.Len(t, out, 1, "only the matching item survives")

	item := out[0]
	require.Equal(t, "Gold price climbs to a new high", item.Title)
	require.Equal(t, "https://feed.example.com/news/gold-price-climbs", item.URL)
	require.Equal(t, "markets", item.Source)
	require.NotContains(t, item.Content, "<", "HTML stripped from description")
	require.Contains(t, item.Content, "extended gains on Monday")
	require.Equal(t, 0.6, item.Score, "fresh items score the top recency bucket")
}

func TestSearchSkipsMismatchedLanguageFeeds(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, "vi", time.Now().Add(-2*time.Hour))

	_, err := p.Search(context.Background(), "gold price", provider.SearchOpts{DaysBack: 7, Language: "en"})
	kind, ok := provider.KindOf(err)
	require.True(t, ok)
	require.Equal(t, provider.KindNoData, kind)
}

func TestSearchFiltersByDaysBack(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, "en", time.Now().AddDate(0, 0, -30))

	_, err := p.Search(context.Background(), "gold price", provider.SearchOpts{DaysBack: 7, Language: "en"})
	kind, ok := provider.KindOf(err)
	require.True(t, ok)
	require.Equal(t, provider.KindNoData, kind)
}

func TestSearchShortTermsIgnored(t *testing.T) {
	t.Parallel()
	p := newTestProvider(t, "en", time.Now().Add(-2*time.Hour))

	_, err := p.Search(context.Background(), "a an", provider.SearchOpts{DaysBack: 7})
	kind, ok := provider.KindOf(err)
	require.True(t, ok)
	require.Equal(t, provider.KindNoData, kind, "terms under three runes never match")
}
