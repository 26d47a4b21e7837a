// Package tavily adapts the Tavily search API, the primary news source.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"findata/internal/httpx"
	"findata/internal/provider"
)

// Default domain allowlists keep results on financial outlets.
var (
	DefaultVietnameseDomains = []string{
		"vnexpress.net", "cafef.vn", "vietstock.vn", "ndh.vn",
		"vietnambiz.vn", "cafebiz.vn", "tinnhanhchungkhoan.vn", "vn.investing.com",
	}
	DefaultEnglishDomains = []string{
		"reuters.com", "bloomberg.com", "cnbc.com", "marketwatch.com",
		"investing.com", "seekingalpha.com", "finance.yahoo.com", "ft.com",
	}
)

type Config struct {
	Name              string
	BaseURL           string
	APIKey            string
	VietnameseDomains []string
	EnglishDomains    []string
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "tavily"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if len(cfg.VietnameseDomains) == 0 {
		cfg.VietnameseDomains = DefaultVietnameseDomains
	}
	if len(cfg.EnglishDomains) == 0 {
		cfg.EnglishDomains = DefaultEnglishDomains
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

type searchResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

func (p *Provider) Search(ctx context.Context, query string, opts provider.SearchOpts) ([]provider.NewsItem, error) {
	domains := p.cfg.EnglishDomains
	if opts.Language == "vi" {
		domains = p.cfg.VietnameseDomains
	}

	payload := map[string]any{
		"api_key":         p.cfg.APIKey,
		"query":           query,
		"max_results":     opts.MaxResults,
		"search_depth":    "advanced",
		"include_domains": domains,
		"days":            opts.DaysBack,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, provider.Wrap(provider.KindInvalidData, p.cfg.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, provider.TransportError(p.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, provider.Errf(provider.StatusKind(resp.StatusCode), p.cfg.Name, "search -> %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, provider.Errf(provider.KindInvalidData, p.cfg.Name, "decode: %v", err)
	}
	if len(sr.Results) == 0 {
		return nil, provider.Errf(provider.KindNoData, p.cfg.Name, "no results for %q", query)
	}

	now := time.Now().UTC()
	out := make([]provider.NewsItem, 0, len(sr.Results))
	for _, r := range sr.Results {
		item := provider.NewsItem{
			Title:       r.Title,
			Content:     r.Content,
			URL:         r.URL,
			Source:      hostOf(r.URL),
			PublishedAt: parsePublished(r.PublishedDate, now),
			Score:       r.Score,
		}
		if item.Score == 0 {
			item.Score = 0.8 // Tavily omits the score on some result types
		}
		out = append(out, item)
	}
	return out, nil
}

// parsePublished falls back to now: an undated result from a fresh search is
// assumed current rather than discarded.
func parsePublished(s string, now time.Time) time.Time {
	if s == "" {
		return now
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return now
}

func hostOf(rawURL string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "www.")
}
