// Package apised adapts the Apised precious-metals API for domestic gold
// pricing in VND per gram.
package apised

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
		cfg.Name = "apised"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://gold.g.apised.com/v1"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

type latestResponse struct {
	Status string `json:"status"`
	Data   struct {
		MetalPrices map[string]metalPrice `json:"metal_prices"`
	} `json:"data"`
}

type metalPrice struct {
	Price    float64 `json:"price"`
	Price24K float64 `json:"price_24k"`
	Price22K float64 `json:"price_22k"`
	Price18K float64 `json:"price_18k"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
}

// FetchGold returns one quote per karat tier. Close is the per-gram metal
// price; Low and High carry the ±1% buy/sell spread around it, matching how
// domestic dealers quote.
func (p *Provider) FetchGold(ctx context.Context) ([]provider.Quote, error) {
	q := url.Values{
		"metals":        {"XAU"},
		"base_currency": {"VND"},
		"currencies":    {"VND"},
		"weight_unit":   {"gram"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/latest?"+q.Encode(), nil)
	if err != nil {
		return nil, provider.Wrap(provider.KindInvalidData, p.cfg.Name, err)
	}
	req.Header.Set("x-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, provider.TransportError(p.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, provider.Errf(provider.StatusKind(resp.StatusCode), p.cfg.Name, "latest -> %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, provider.Errf(provider.KindInvalidData, p.cfg.Name, "decode: %v", err)
	}
	if body.Status != "success" {
		return nil, provider.Errf(provider.KindInvalidData, p.cfg.Name, "status %q", body.Status)
	}
	mp, ok := body.Data.MetalPrices["XAU"]
	if !ok || mp.Price <= 0 {
		return nil, provider.Errf(provider.KindNoData, p.cfg.Name, "no XAU price in response")
	}

	now := time.Now().UTC()
	price24 := mp.Price24K
	if price24 <= 0 {
		price24 = mp.Price
	}

	out := []provider.Quote{tierQuote("XAU-24K", price24, now, p.cfg.Name)}
	out[0].Open = mp.Open
	if mp.Price22K > 0 {
		out = append(out, tierQuote("XAU-22K", mp.Price22K, now, p.cfg.Name))
	}
	if mp.Price18K > 0 {
		out = append(out, tierQuote("XAU-18K", mp.Price18K, now, p.cfg.Name))
	}
	return out, nil
}

func tierQuote(symbol string, price float64, asOf time.Time, source string) provider.Quote {
	return provider.Quote{
		Symbol:   symbol,
		Open:     price,
		Low:      price * 0.99, // buy side
		High:     price * 1.01, // sell side
		Close:    price,
		AsOf:     asOf,
		Currency: "VND",
		Source:   source,
	}
}
