// Package app assembles the provider cascades and services from loaded
// configuration. Both binaries build the same stack through here.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"findata/internal/config"
	"findata/internal/goldsvc"
	"findata/internal/httpx"
	"findata/internal/news"
	"findata/internal/provider/apised"
	"findata/internal/provider/cache"
	"findata/internal/provider/eodhd"
	"findata/internal/provider/goldapi"
	"findata/internal/provider/newsapi"
	"findata/internal/provider/newsdata"
	"findata/internal/provider/ratelimit"
	"findata/internal/provider/retry"
	"findata/internal/provider/rssnews"
	"findata/internal/provider/tavily"
	"findata/internal/provider/vci"
	"findata/internal/quotes"
	"findata/internal/store"
)

// Services is the assembled application stack.
type Services struct {
	Quotes *quotes.Service
	News   *news.Service
	Gold   *goldsvc.Service
	Store  *store.Store // nil when persistence is disabled
}

// Close releases resources held by the services.
func (s *Services) Close() error {
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}

// Build wires providers, limiters, caches and services from cfg.
func Build(cfg config.Config, log zerolog.Logger) (*Services, error) {
	httpClient := httpx.New(cfg.HTTP.ConnectTimeout(), cfg.HTTP.ReadTimeout())

	resultCache, err := cache.NewFile(cfg.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening result cache: %w", err)
	}
	if n := resultCache.PruneNegative(); n > 0 {
		log.Info().Int("removed", n).Msg("pruned expired negative cache entries")
	}

	var db *store.Store
	if cfg.Store.Enabled {
		path := cfg.Store.Path
		if path == "" {
			path = "findata.db"
		}
		db, err = store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening store at %s: %w", path, err)
		}
	}

	retryPolicy := retry.Default()

	// Quote cascades by market.
	sources := make(map[string][]quotes.Source)
	if cfg.EODHD.Enabled {
		p := eodhd.New(eodhd.Config{
			BaseURL:  cfg.EODHD.BaseURL,
			APIKey:   cfg.EODHD.APIKey,
			Exchange: cfg.EODHD.Exchange,
		}, httpClient)
		sources["US"] = append(sources["US"], quotes.Source{
			Name:    p.Name(),
			Limiter: ratelimit.New(cfg.EODHD.Rate.MaxCalls, cfg.EODHD.Rate.Window()),
			Batch:   p,
			History: p,
		})
	}
	if cfg.VCI.Enabled {
		p := vci.New(vci.Config{BaseURL: cfg.VCI.BaseURL}, httpClient)
		sources["VN"] = append(sources["VN"], quotes.Source{
			Name:    p.Name(),
			Limiter: ratelimit.New(cfg.VCI.Rate.MaxCalls, cfg.VCI.Rate.Window()),
			Batch:   p,
			History: p,
		})
	}

	var quoteArchive quotes.Recorder
	var newsArchive news.Archiver
	if db != nil {
		quoteArchive = db
		newsArchive = db
	}

	quoteSvc := quotes.New(quotes.Config{
		Sources:     sources,
		Cache:       resultCache,
		Retry:       retryPolicy,
		QuoteTTL:    cfg.Cache.QuoteTTL(),
		HistoryTTL:  cfg.Cache.HistoryTTL(),
		NegativeTTL: cfg.Cache.NegativeTTL(),
		Archive:     quoteArchive,
		Log:         log.With().Str("service", "quotes").Logger(),
	})

	// Gold cascade: domestic tiers first, international spot second; the
	// static estimate backstop lives inside the service.
	var goldEntries []goldsvc.Entry
	if cfg.Apised.Enabled {
		goldEntries = append(goldEntries, goldsvc.Entry{
			Provider: apised.New(apised.Config{BaseURL: cfg.Apised.BaseURL, APIKey: cfg.Apised.APIKey}, httpClient),
			Limiter:  ratelimit.New(cfg.Apised.Rate.MaxCalls, cfg.Apised.Rate.Window()),
		})
	}
	if cfg.GoldAPI.Enabled {
		goldEntries = append(goldEntries, goldsvc.Entry{
			Provider: goldapi.NewClient(cfg.GoldAPI.APIKey,
				goldapi.WithBaseURL(cfg.GoldAPI.BaseURL),
				goldapi.WithHTTPClient(httpClient.HTTP)),
			Limiter: ratelimit.New(cfg.GoldAPI.Rate.MaxCalls, cfg.GoldAPI.Rate.Window()),
		})
	}
	goldSvc := goldsvc.New(goldsvc.Config{
		Providers:   goldEntries,
		Cache:       resultCache,
		Retry:       retryPolicy,
		PositiveTTL: cfg.Cache.GoldTTL(),
		NegativeTTL: cfg.Cache.NegativeTTL(),
		Log:         log.With().Str("service", "gold").Logger(),
	})

	// News cascade in priority order; RSS feeds are local pulls and need no
	// limiter.
	var newsEntries []news.Entry
	if cfg.Tavily.Enabled {
		newsEntries = append(newsEntries, news.Entry{
			Provider: tavily.New(tavily.Config{BaseURL: cfg.Tavily.BaseURL, APIKey: cfg.Tavily.APIKey}, httpClient),
			Limiter:  ratelimit.New(cfg.Tavily.Rate.MaxCalls, cfg.Tavily.Rate.Window()),
		})
	}
	if cfg.NewsData.Enabled {
		newsEntries = append(newsEntries, news.Entry{
			Provider: newsdata.New(newsdata.Config{BaseURL: cfg.NewsData.BaseURL, APIKey: cfg.NewsData.APIKey}, httpClient),
			Limiter:  ratelimit.New(cfg.NewsData.Rate.MaxCalls, cfg.NewsData.Rate.Window()),
		})
	}
	if cfg.NewsAPI.Enabled {
		newsEntries = append(newsEntries, news.Entry{
			Provider: newsapi.New(newsapi.Config{BaseURL: cfg.NewsAPI.BaseURL, APIKey: cfg.NewsAPI.APIKey}, httpClient),
			Limiter:  ratelimit.New(cfg.NewsAPI.Rate.MaxCalls, cfg.NewsAPI.Rate.Window()),
		})
	}
	if cfg.RSS.Enabled && len(cfg.RSS.Feeds) > 0 {
		feeds := make([]rssnews.Feed, 0, len(cfg.RSS.Feeds))
		for _, f := range cfg.RSS.Feeds {
			feeds = append(feeds, rssnews.Feed{Name: f.Name, URL: f.URL, Language: f.Language})
		}
		newsEntries = append(newsEntries, news.Entry{
			Provider: rssnews.New(rssnews.Config{Feeds: feeds}),
		})
	}
	newsSvc := &news.Service{
		Providers:   newsEntries,
		Cache:       resultCache,
		Retry:       retryPolicy,
		PositiveTTL: cfg.Cache.NewsTTL(),
		NegativeTTL: cfg.Cache.NegativeTTL(),
		Archive:     newsArchive,
		Log:         log.With().Str("service", "news").Logger(),
	}

	return &Services{Quotes: quoteSvc, News: newsSvc, Gold: goldSvc, Store: db}, nil
}
