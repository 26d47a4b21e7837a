// Package vci adapts the VCI trading API for Vietnamese equities. The price
// board endpoint serves any number of symbols in one call; history comes from
// the OHLC chart endpoint as parallel arrays.
package vci

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"findata/internal/httpx"
	"findata/internal/provider"
)

type Config struct {
	Name     string
	BaseURL  string
	Currency string
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "vci"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://trading.vietcap.com.vn/api"
	}
	if cfg.Currency == "" {
		cfg.Currency = "VND"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// boardRow is one symbol on the price board. Field names vary across API
// versions; both spellings are accepted where they do.
type boardRow struct {
	Symbol       string      `json:"symbol"`
	Ticker       string      `json:"ticker"`
	OpenPrice    json.Number `json:"openPrice"`
	HighestPrice json.Number `json:"highestPrice"`
	LowestPrice  json.Number `json:"lowestPrice"`
	MatchedPrice json.Number `json:"matchedPrice"`
	LastPrice    json.Number `json:"lastPrice"`
	TotalVolume  json.Number `json:"totalVolume"`
	TradingDate  string      `json:"tradingDate"`
}

func (p *Provider) FetchQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	m, err := p.FetchBatch(ctx, []string{symbol})
	if err != nil {
		return provider.Quote{}, err
	}
	q, ok := m[strings.ToUpper(symbol)]
	if !ok {
		return provider.Quote{}, provider.Errf(provider.KindNoData, p.cfg.Name, "no board row for %s", symbol)
	}
	return q, nil
}

func (p *Provider) FetchBatch(ctx context.Context, symbols []string) (map[string]provider.Quote, error) {
	upper := make([]string, 0, len(symbols))
	for _, s := range symbols {
		upper = append(upper, strings.ToUpper(s))
	}
	body, _ := json.Marshal(map[string]any{"symbols": upper})

	var rows []boardRow
	if err := p.postJSON(ctx, p.cfg.BaseURL+"/price/symbols/getList", body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, provider.Errf(provider.KindNoData, p.cfg.Name, "empty price board for %d symbols", len(upper))
	}

	out := make(map[string]provider.Quote, len(rows))
	for _, r := range rows {
		sym := r.Symbol
		if sym == "" {
			sym = r.Ticker
		}
		sym = strings.ToUpper(sym)

		closeNum := r.MatchedPrice
		if closeNum.String() == "" {
			closeNum = r.LastPrice
		}
		open, _ := r.OpenPrice.Float64()
		high, _ := r.HighestPrice.Float64()
		low, _ := r.LowestPrice.Float64()
		closep, _ := closeNum.Float64()
		vol, _ := r.TotalVolume.Float64()

		asOf := parseTradingDate(r.TradingDate)
		if asOf.IsZero() {
			// The board omits tradingDate intraday; the row is current.
			asOf = time.Now().UTC()
		}
		q := provider.Quote{
			Symbol:   sym,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closep,
			Volume:   vol,
			AsOf:     asOf,
			Currency: p.cfg.Currency,
			Source:   p.cfg.Name,
		}
		if sym == "" || !q.Valid() {
			continue
		}
		out[sym] = q
	}
	if len(out) == 0 {
		return nil, provider.Errf(provider.KindInvalidData, p.cfg.Name, "all %d board rows failed validation", len(rows))
	}
	return out, nil
}

// chartSeries is the gap-chart response shape: per-symbol parallel arrays.
type chartSeries struct {
	Symbol string        `json:"symbol"`
	T      []int64       `json:"t"`
	O      []json.Number `json:"o"`
	H      []json.Number `json:"h"`
	L      []json.Number `json:"l"`
	C      []json.Number `json:"c"`
	V      []json.Number `json:"v"`
}

func (p *Provider) FetchHistory(ctx context.Context, symbol string, from, to time.Time, interval string) ([]provider.Quote, error) {
	timeFrame := map[string]string{"1D": "ONE_DAY", "1W": "ONE_WEEK", "1M": "ONE_MONTH", "1H": "ONE_HOUR"}[interval]
	if timeFrame == "" {
		timeFrame = "ONE_DAY"
	}
	sym := strings.ToUpper(symbol)
	body, _ := json.Marshal(map[string]any{
		"timeFrame": timeFrame,
		"symbols":   []string{sym},
		"from":      from.Unix(),
		"to":        to.Unix(),
	})

	var series []chartSeries
	if err := p.postJSON(ctx, p.cfg.BaseURL+"/chart/OHLCChart/gap-chart", body, &series); err != nil {
		return nil, err
	}
	if len(series) == 0 || len(series[0].T) == 0 {
		return nil, provider.Errf(provider.KindNoData, p.cfg.Name, "no bars for %s", sym)
	}

	s := series[0]
	if len(s.O) != len(s.T) || len(s.H) != len(s.T) || len(s.L) != len(s.T) || len(s.C) != len(s.T) {
		return nil, provider.Errf(provider.KindInvalidData, p.cfg.Name, "ragged series for %s", sym)
	}

	out := make([]provider.Quote, 0, len(s.T))
	for i := range s.T {
		open, _ := s.O[i].Float64()
		high, _ := s.H[i].Float64()
		low, _ := s.L[i].Float64()
		closep, _ := s.C[i].Float64()
		var vol float64
		if i < len(s.V) {
			vol, _ = s.V[i].Float64()
		}
		q := provider.Quote{
			Symbol:   sym,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closep,
			Volume:   vol,
			AsOf:     time.Unix(s.T[i], 0).UTC(),
			Currency: p.cfg.Currency,
			Source:   p.cfg.Name,
		}
		if !q.Valid() {
			return nil, provider.Errf(provider.KindInvalidData, p.cfg.Name, "implausible bar for %s at index %d", sym, i)
		}
		out = append(out, q)
	}
	return out, nil
}

// parseTradingDate accepts the formats the board has been seen returning:
// RFC3339, plain dates, and epoch millis.
func parseTradingDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	var ms int64
	if _, err := fmt.Sscanf(s, "%d", &ms); err == nil && ms > 1_000_000_000_000 {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}

func (p *Provider) postJSON(ctx context.Context, rawURL string, body []byte, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return provider.Wrap(provider.KindInvalidData, p.cfg.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return provider.TransportError(p.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return provider.Errf(provider.StatusKind(resp.StatusCode), p.cfg.Name, "POST %s -> %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return provider.Errf(provider.KindInvalidData, p.cfg.Name, "decode: %v", err)
	}
	return nil
}
