// Package config loads application configuration from an optional JSON file
// with environment-variable overrides for secrets and deploy-time knobs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

type Server struct {
	Port              string `json:"port" env:"PORT"`
	RequestTimeoutSec int    `json:"request_timeout_sec" env:"REQUEST_TIMEOUT_SEC"`
}

type HTTP struct {
	ConnectTimeoutSec int `json:"connect_timeout_sec" env:"HTTP_CONNECT_TIMEOUT_SEC"`
	ReadTimeoutSec    int `json:"read_timeout_sec" env:"HTTP_READ_TIMEOUT_SEC"`
}

type Cache struct {
	// Dir overrides the default cache directory under the xdg cache home.
	Dir            string `json:"dir" env:"CACHE_DIR"`
	QuoteTTLSec    int    `json:"quote_ttl_sec" env:"CACHE_QUOTE_TTL_SEC"`
	HistoryTTLSec  int    `json:"history_ttl_sec" env:"CACHE_HISTORY_TTL_SEC"`
	NewsTTLSec     int    `json:"news_ttl_sec" env:"CACHE_NEWS_TTL_SEC"`
	GoldTTLSec     int    `json:"gold_ttl_sec" env:"CACHE_GOLD_TTL_SEC"`
	NegativeTTLSec int    `json:"negative_ttl_sec" env:"CACHE_NEGATIVE_TTL_SEC"`
}

type Store struct {
	Enabled bool   `json:"enabled" env:"STORE_ENABLED"`
	Path    string `json:"path" env:"STORE_PATH"`
}

// RateWindow is the shared shape of a per-provider call budget.
type RateWindow struct {
	MaxCalls  int `json:"max_calls"`
	WindowSec int `json:"window_sec"`
}

func (r RateWindow) Window() time.Duration { return time.Duration(r.WindowSec) * time.Second }

type EODHD struct {
	Enabled  bool       `json:"enabled" env:"EODHD_ENABLED"`
	APIKey   string     `json:"api_key" env:"EODHD_API_KEY"`
	BaseURL  string     `json:"base_url" env:"EODHD_BASE_URL"`
	Exchange string     `json:"exchange" env:"EODHD_EXCHANGE"`
	Rate     RateWindow `json:"rate"`
}

type VCI struct {
	Enabled bool       `json:"enabled" env:"VCI_ENABLED"`
	BaseURL string     `json:"base_url" env:"VCI_BASE_URL"`
	Rate    RateWindow `json:"rate"`
}

type Apised struct {
	Enabled bool       `json:"enabled" env:"APISED_ENABLED"`
	APIKey  string     `json:"api_key" env:"APISED_API_KEY"`
	BaseURL string     `json:"base_url" env:"APISED_BASE_URL"`
	Rate    RateWindow `json:"rate"`
}

type GoldAPI struct {
	Enabled bool       `json:"enabled" env:"GOLDAPI_ENABLED"`
	APIKey  string     `json:"api_key" env:"GOLDAPI_API_KEY"`
	BaseURL string     `json:"base_url" env:"GOLDAPI_BASE_URL"`
	Rate    RateWindow `json:"rate"`
}

type Tavily struct {
	Enabled bool       `json:"enabled" env:"TAVILY_ENABLED"`
	APIKey  string     `json:"api_key" env:"TAVILY_API_KEY"`
	BaseURL string     `json:"base_url" env:"TAVILY_BASE_URL"`
	Rate    RateWindow `json:"rate"`
}

type NewsData struct {
	Enabled bool       `json:"enabled" env:"NEWSDATA_ENABLED"`
	APIKey  string     `json:"api_key" env:"NEWSDATA_API_KEY"`
	BaseURL string     `json:"base_url" env:"NEWSDATA_BASE_URL"`
	Rate    RateWindow `json:"rate"`
}

type NewsAPI struct {
	Enabled bool       `json:"enabled" env:"NEWSAPI_ENABLED"`
	APIKey  string     `json:"api_key" env:"NEWSAPI_API_KEY"`
	BaseURL string     `json:"base_url" env:"NEWSAPI_BASE_URL"`
	Rate    RateWindow `json:"rate"`
}

type RSSFeed struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Language string `json:"language"`
}

type RSS struct {
	Enabled bool      `json:"enabled" env:"RSS_ENABLED"`
	Feeds   []RSSFeed `json:"feeds"`
}

type Config struct {
	Server   Server   `json:"server"`
	HTTP     HTTP     `json:"http"`
	Cache    Cache    `json:"cache"`
	Store    Store    `json:"store"`
	EODHD    EODHD    `json:"eodhd"`
	VCI      VCI      `json:"vci"`
	Apised   Apised   `json:"apised"`
	GoldAPI  GoldAPI  `json:"goldapi"`
	Tavily   Tavily   `json:"tavily"`
	NewsData NewsData `json:"newsdata"`
	NewsAPI  NewsAPI  `json:"newsapi"`
	RSS      RSS      `json:"rss"`
}

// defaultRate keeps a safety margin under the common 20-calls-per-minute
// provider limit.
var defaultRate = RateWindow{MaxCalls: 18, WindowSec: 60}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 120},
		HTTP:   HTTP{ConnectTimeoutSec: 10, ReadTimeoutSec: 90},
		Cache: Cache{
			QuoteTTLSec:    300,
			HistoryTTLSec:  86400,
			NewsTTLSec:     1800,
			GoldTTLSec:     300,
			NegativeTTLSec: 1800,
		},
		Store: Store{Enabled: true, Path: ""},
		EODHD: EODHD{
			Enabled:  true,
			BaseURL:  "https://eodhd.com/api",
			Exchange: "US",
			Rate:     defaultRate,
		},
		VCI: VCI{
			Enabled: true,
			BaseURL: "https://trading.vietcap.com.vn/api",
			Rate:    defaultRate,
		},
		Apised: Apised{
			Enabled: true,
			BaseURL: "https://gold.g.apised.com/v1",
			Rate:    RateWindow{MaxCalls: 10, WindowSec: 60},
		},
		GoldAPI: GoldAPI{
			Enabled: true,
			BaseURL: "https://www.goldapi.io/api",
			Rate:    RateWindow{MaxCalls: 10, WindowSec: 60},
		},
		Tavily: Tavily{
			Enabled: true,
			BaseURL: "https://api.tavily.com",
			Rate:    defaultRate,
		},
		NewsData: NewsData{
			Enabled: true,
			BaseURL: "https://newsdata.io/api/1",
			Rate:    defaultRate,
		},
		NewsAPI: NewsAPI{
			Enabled: true,
			BaseURL: "https://newsapi.org/v2",
			Rate:    defaultRate,
		},
		RSS: RSS{
			Enabled: true,
			Feeds: []RSSFeed{
				{Name: "vnexpress-kinhdoanh", URL: "https://vnexpress.net/rss/kinh-doanh.rss", Language: "vi"},
				{Name: "cafef", URL: "https://cafef.vn/thi-truong-chung-khoan.rss", Language: "vi"},
				{Name: "cnbc-markets", URL: "https://www.cnbc.com/id/100003114/device/rss/rss.html", Language: "en"},
			},
		},
	}
}

// Load reads JSON config from path, falling back to ./config.json, then
// applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("apply env overrides: %w", err)
	}
	return cfg, nil
}

func (c Cache) QuoteTTL() time.Duration    { return time.Duration(c.QuoteTTLSec) * time.Second }
func (c Cache) HistoryTTL() time.Duration  { return time.Duration(c.HistoryTTLSec) * time.Second }
func (c Cache) NewsTTL() time.Duration     { return time.Duration(c.NewsTTLSec) * time.Second }
func (c Cache) GoldTTL() time.Duration     { return time.Duration(c.GoldTTLSec) * time.Second }
func (c Cache) NegativeTTL() time.Duration { return time.Duration(c.NegativeTTLSec) * time.Second }

func (h HTTP) ConnectTimeout() time.Duration { return time.Duration(h.ConnectTimeoutSec) * time.Second }
func (h HTTP) ReadTimeout() time.Duration    { return time.Duration(h.ReadTimeoutSec) * time.Second }

func (s Server) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSec) * time.Second
}
