// Package eodhd adapts the EODHD end-of-day API. It supports single-symbol
// history and the bulk last-day endpoint, which serves any number of symbols
// in one call. The adapter is stateless: retries and caching belong to the
// orchestration layer.
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"findata/internal/httpx"
	"findata/internal/provider"
)

type Config struct {
	Name     string
	BaseURL  string
	APIKey   string
	Exchange string // e.g. "US"
	Currency string
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "eodhd"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://eodhd.com/api"
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "US"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// bulkRow is one symbol in the eod-bulk-last-day response.
type bulkRow struct {
	Code   string      `json:"code"`
	Date   string      `json:"date"`
	Open   json.Number `json:"open"`
	High   json.Number `json:"high"`
	Low    json.Number `json:"low"`
	Close  json.Number `json:"close"`
	Volume json.Number `json:"volume"`
}

// eodRow is one bar in the single-symbol history response.
type eodRow struct {
	Date   string      `json:"date"`
	Open   json.Number `json:"open"`
	High   json.Number `json:"high"`
	Low    json.Number `json:"low"`
	Close  json.Number `json:"close"`
	Volume json.Number `json:"volume"`
}

func (p *Provider) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	m, err := p.FetchBatch(ctx, []string{symbol})
	if err != nil {
		return provider.Quote{}, err
	}
	q, ok := m[strings.ToUpper(symbol)]
	if !ok {
		return provider.Quote{}, provider.Errf(provider.KindNoData, p.cfg.Name, "no row for %s", symbol)
	}
	return q, nil
}

// FetchBatch requests the last trading day for every symbol in one call.
// Symbols missing from the response are simply absent from the returned map;
// the caller decides how to treat the gap.
func (p *Provider) FetchBatch(ctx context.Context, symbols []string) (map[string]provider.Quote, error) {
	upper := make([]string, 0, len(symbols))
	for _, s := range symbols {
		upper = append(upper, strings.ToUpper(s))
	}

	u := fmt.Sprintf("%s/eod-bulk-last-day/%s", p.cfg.BaseURL, p.cfg.Exchange)
	q := url.Values{
		"api_token": {p.cfg.APIKey},
		"fmt":       {"json"},
		"symbols":   {strings.Join(upper, ",")},
	}

	var rows []bulkRow
	if err := p.getJSON(ctx, u+"?"+q.Encode(), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, provider.Errf(provider.KindNoData, p.cfg.Name, "empty bulk response for %d symbols", len(upper))
	}

	out := make(map[string]provider.Quote, len(rows))
	for _, r := range rows {
		quote, err := p.toQuote(r.Code, eodRow{Date: r.Date, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume})
		if err != nil {
			// One corrupt row must not poison its siblings.
			continue
		}
		out[strings.ToUpper(r.Code)] = quote
	}
	if len(out) == 0 {
		return nil, provider.Errf(provider.KindInvalidData, p.cfg.Name, "all %d bulk rows failed validation", len(rows))
	}
	return out, nil
}

func (p *Provider) FetchHistory(ctx context.Context, symbol string, from, to time.Time, interval string) ([]provider.Quote, error) {
	period := map[string]string{"1D": "d", "1W": "w", "1M": "m"}[interval]
	if period == "" {
		period = "d"
	}

	u := fmt.Sprintf("%s/eod/%s.%s", p.cfg.BaseURL, strings.ToUpper(symbol), p.cfg.Exchange)
	q := url.Values{
		"api_token": {p.cfg.APIKey},
		"fmt":       {"json"},
		"period":    {period},
		"from":      {from.Format("2006-01-02")},
		"to":        {to.Format("2006-01-02")},
	}

	var rows []eodRow
	if err := p.getJSON(ctx, u+"?"+q.Encode(), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, provider.Errf(provider.KindNoData, p.cfg.Name, "no bars for %s %s..%s", symbol, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	out := make([]provider.Quote, 0, len(rows))
	for _, r := range rows {
		quote, err := p.toQuote(symbol, r)
		if err != nil {
			return nil, err
		}
		out = append(out, quote)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AsOf.Before(out[j].AsOf) })
	return out, nil
}

func (p *Provider) toQuote(symbol string, r eodRow) (provider.Quote, error) {
	asOf, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return provider.Quote{}, provider.Errf(provider.KindInvalidData, p.cfg.Name, "bad date %q for %s", r.Date, symbol)
	}
	open, _ := r.Open.Float64()
	high, _ := r.High.Float64()
	low, _ := r.Low.Float64()
	closep, _ := r.Close.Float64()
	vol, _ := r.Volume.Float64()

	q := provider.Quote{
		Symbol:   strings.ToUpper(symbol),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closep,
		Volume:   vol,
		AsOf:     asOf,
		Currency: p.cfg.Currency,
		Source:   p.cfg.Name,
	}
	if !q.Valid() {
		return provider.Quote{}, provider.Errf(provider.KindInvalidData, p.cfg.Name, "implausible bar for %s at %s", symbol, r.Date)
	}
	return q, nil
}

func (p *Provider) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return provider.Wrap(provider.KindInvalidData, p.cfg.Name, err)
	}
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return provider.TransportError(p.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return provider.Errf(provider.StatusKind(resp.StatusCode), p.cfg.Name, "GET %s -> %d: %s", resp.Request.URL.Path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return provider.Errf(provider.KindInvalidData, p.cfg.Name, "decode: %v", err)
	}
	return nil
}
