// Package newsdata adapts the NewsData.io API. It queries the latest
// endpoint first and tops up from the archive endpoint when the latest feed
// comes up short, the way the free tier behaves in practice.
package newsdata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"findata/internal/httpx"
	"findata/internal/provider"
)

type Config struct {
	Name     string
	BaseURL  string
	APIKey   string
	Category string
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "newsdata"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://newsdata.io/api/1"
	}
	if cfg.Category == "" {
		cfg.Category = "business"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

type apiResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Content     string `json:"content"`
		Description string `json:"description"`
		SourceID    string `json:"source_id"`
		PubDate     string `json:"pubDate"`
	} `json:"results"`
}

func (p *Provider) Search(ctx context.Context, query string, opts provider.SearchOpts) ([]provider.NewsItem, error) {
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}

	latest := url.Values{
		"apikey":   {p.cfg.APIKey},
		"q":        {query},
		"language": {lang},
		"category": {p.cfg.Category},
	}
	items, err := p.query(ctx, "/latest", latest)
	if err != nil {
		return nil, err
	}

	if len(items) < opts.MaxResults && opts.DaysBack > 0 {
		to := time.Now()
		from := to.AddDate(0, 0, -opts.DaysBack)
		archive := url.Values{
			"apikey":    {p.cfg.APIKey},
			"q":         {query},
			"language":  {lang},
			"from_date": {from.Format("2006-01-02")},
			"to_date":   {to.Format("2006-01-02")},
		}
		more, err := p.query(ctx, "/archive", archive)
		if err == nil {
			items = append(items, more...)
		}
		// An archive failure is not fatal when latest already returned rows.
		if err != nil && len(items) == 0 {
			return nil, err
		}
	}

	if len(items) == 0 {
		return nil, provider.Errf(provider.KindNoData, p.cfg.Name, "no results for %q", query)
	}
	if len(items) > opts.MaxResults && opts.MaxResults > 0 {
		items = items[:opts.MaxResults]
	}
	return items, nil
}

func (p *Provider) query(ctx context.Context, path string, params url.Values) ([]provider.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, provider.Wrap(provider.KindInvalidData, p.cfg.Name, err)
	}
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, provider.TransportError(p.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, provider.Errf(provider.StatusKind(resp.StatusCode), p.cfg.Name, "%s -> %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, provider.Errf(provider.KindInvalidData, p.cfg.Name, "decode: %v", err)
	}
	if body.Status != "success" {
		return nil, provider.Errf(provider.KindInvalidData, p.cfg.Name, "status %q", body.Status)
	}

	now := time.Now().UTC()
	out := make([]provider.NewsItem, 0, len(body.Results))
	for _, r := range body.Results {
		content := r.Content
		if content == "" {
			content = r.Description
		}
		pub := now
		if t, err := time.Parse("2006-01-02 15:04:05", r.PubDate); err == nil {
			pub = t
		}
		out = append(out, provider.NewsItem{
			Title:       r.Title,
			Content:     content,
			URL:         r.Link,
			Source:      r.SourceID,
			PublishedAt: pub,
			Score:       0.5,
		})
	}
	return out, nil
}
