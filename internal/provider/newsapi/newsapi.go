// Package newsapi adapts NewsAPI.org, the last-resort English-only news
// source.
package newsapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"findata/internal/httpx"
	"findata/internal/provider"
)

type Config struct {
	Name    string
	BaseURL string
	APIKey  string
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "newsapi"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://newsapi.org/v2"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

type everythingResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Search queries the everything endpoint. NewsAPI has no Vietnamese corpus;
// the cascade only reaches this provider for English queries.
func (p *Provider) Search(ctx context.Context, query string, opts provider.SearchOpts) ([]provider.NewsItem, error) {
	if opts.Language == "vi" {
		return nil, provider.Errf(provider.KindNoData, p.cfg.Name, "no vietnamese corpus")
	}

	from := time.Now().AddDate(0, 0, -opts.DaysBack)
	params := url.Values{
		"q":        {query},
		"language": {"en"},
		"sortBy":   {"publishedAt"},
		"from":     {from.Format("2006-01-02")},
		"apiKey":   {p.cfg.APIKey},
	}
	if opts.MaxResults > 0 {
		params.Set("pageSize", strconv.Itoa(opts.MaxResults))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/everything?"+params.Encode(), nil)
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
		return nil, provider.Errf(provider.StatusKind(resp.StatusCode), p.cfg.Name, "everything -> %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body everythingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, provider.Errf(provider.KindInvalidData, p.cfg.Name, "decode: %v", err)
	}
	if body.Status != "ok" {
		return nil, provider.Errf(provider.KindInvalidData, p.cfg.Name, "status %q", body.Status)
	}
	if len(body.Articles) == 0 {
		return nil, provider.Errf(provider.KindNoData, p.cfg.Name, "no articles for %q", query)
	}

	now := time.Now().UTC()
	out := make([]provider.NewsItem, 0, len(body.Articles))
	for _, a := range body.Articles {
		content := a.Content
		if content == "" {
			content = a.Description
		}
		pub := now
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			pub = t
		}
		out = append(out, provider.NewsItem{
			Title:       a.Title,
			Content:     content,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: pub,
			Score:       0.4,
		})
	}
	return out, nil
}
