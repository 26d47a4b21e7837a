// Package rssnews serves news from configured RSS feeds. It needs no API key,
// which makes it the cascade's free safety net when the search providers are
// quota-exhausted.
package rssnews

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"findata/internal/provider"
)

// Feed is one RSS source with a language tag so the cascade can skip feeds
// that cannot serve the query's language.
type Feed struct {
	Name     string
	URL      string
	Language string
}

type Config struct {
	Name  string
	Feeds []Feed
}

type Provider struct {
	cfg    Config
	parser *gofeed.Parser
}

func New(cfg Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = "rss"
	}
	return &Provider{cfg: cfg, parser: gofeed.NewParser()}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Search fetches every matching feed and keeps items whose title or body
// mentions a query term. RSS has no relevance ranking, so matches score by
// recency bucket only.
func (p *Provider) Search(ctx context.Context, query string, opts provider.SearchOpts) ([]provider.NewsItem, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, provider.Errf(provider.KindNoData, p.cfg.Name, "empty query")
	}
	cutoff := time.Now().AddDate(0, 0, -opts.DaysBack)

	var out []provider.NewsItem
	var lastErr error
	for _, f := range p.cfg.Feeds {
		if opts.Language != "" && f.Language != "" && f.Language != opts.Language {
			continue
		}
		feed, err := p.parser.ParseURLWithContext(f.URL, ctx)
		if err != nil {
			lastErr = provider.Wrap(provider.KindTransient, p.cfg.Name, err)
			continue
		}
		for _, item := range feed.Items {
			pub := time.Now()
			if item.PublishedParsed != nil {
				pub = *item.PublishedParsed
			} else if item.UpdatedParsed != nil {
				pub = *item.UpdatedParsed
			}
			if pub.Before(cutoff) {
				continue
			}
			content := item.Description
			if content == "" {
				content = item.Content
			}
			content = stripHTML(content)
			if !matches(item.Title, content, terms) {
				continue
			}
			out = append(out, provider.NewsItem{
				Title:       item.Title,
				Content:     content,
				URL:         item.Link,
				Source:      f.Name,
				PublishedAt: pub,
				Score:       recencyScore(pub),
			})
		}
	}

	if len(out) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, provider.Errf(provider.KindNoData, p.cfg.Name, "no matching items for %q", query)
	}
	if opts.MaxResults > 0 && len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out, nil
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripHTML(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, " "))
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

func matches(title, content string, terms []string) bool {
	haystack := strings.ToLower(title + " " + content)
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

func recencyScore(pub time.Time) float64 {
	age := time.Since(pub)
	switch {
	case age < 24*time.Hour:
		return 0.6
	case age < 72*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}
