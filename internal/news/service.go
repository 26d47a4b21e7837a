package news

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"findata/internal/provider"
	"findata/internal/provider/cache"
	"findata/internal/provider/ratelimit"
	"findata/internal/provider/retry"
)

// Entry is one news provider in cascade priority order.
type Entry struct {
	Provider provider.NewsProvider
	Limiter  *ratelimit.Limiter
}

// Archiver persists deduplicated records for long-term history. SaveNews is
// expected to skip records whose canonical URL is already stored.
type Archiver interface {
	SaveNews(ctx context.Context, items []provider.NewsItem) error
}

// Service runs news searches through the provider cascade. Unlike the quote
// cascade, a short result from one provider is topped up from the next
// rather than advancing completely: overlapping sources are the norm in news
// and the deduplicator reconciles them.
type Service struct {
	Providers   []Entry
	Cache       cache.Cache
	Retry       retry.Policy
	PositiveTTL time.Duration
	NegativeTTL time.Duration
	Archive     Archiver // optional
	Log         zerolog.Logger
}

const (
	defaultMaxResults = 10
	defaultDaysBack   = 30
	// overshootCap bounds how many raw results the primary provider is asked
	// for; requesting beyond this wastes quota on rows the dedupe pass drops.
	overshootCap = 50
)

// Search returns deduplicated records for query, newest first. A fully
// exhausted cascade returns ErrExhausted; a short but non-empty result set
// is a success.
func (s *Service) Search(ctx context.Context, query string, maxResults, daysBack int) ([]provider.NewsItem, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if daysBack <= 0 {
		daysBack = defaultDaysBack
	}
	lang := DetectLanguage(query)
	key := cache.Key("news", query, lang, strconv.Itoa(maxResults), strconv.Itoa(daysBack))

	if value, ok, negative := s.Cache.Get(key); ok && !negative {
		var out []provider.NewsItem
		if err := json.Unmarshal(value, &out); err == nil {
			s.Log.Debug().Str("query", query).Msg("news cache hit")
			return out, nil
		}
		s.Cache.Invalidate(key)
	}

	var raw []provider.NewsItem
	var lastErr error
	for i, entry := range s.Providers {
		if len(raw) >= maxResults {
			break
		}
		stepKey := key + "#" + entry.Provider.Name()
		if _, ok, negative := s.Cache.Get(stepKey); ok && negative {
			s.Log.Debug().Str("provider", entry.Provider.Name()).Msg("negative cache hit, skipping news provider")
			continue
		}

		// Ask the primary for extra rows; later providers only fill the gap.
		want := maxResults - len(raw)
		if i == 0 {
			want = min(maxResults*3, overshootCap)
		}
		opts := provider.SearchOpts{MaxResults: want, DaysBack: daysBack, Language: lang}

		items, err := s.searchOne(ctx, entry, query, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			kind, _ := provider.KindOf(err)
			s.Log.Warn().Str("provider", entry.Provider.Name()).Stringer("kind", kind).Err(err).Msg("news provider failed")
			s.Cache.PutNegative(stepKey, s.NegativeTTL)
			lastErr = err
			continue
		}
		raw = append(raw, items...)
	}

	if len(raw) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %w", provider.ErrExhausted, lastErr)
		}
		return nil, provider.ErrExhausted
	}

	cutoff := time.Now().AddDate(0, 0, -daysBack)
	kept := raw[:0]
	for _, item := range raw {
		if item.PublishedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, item)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].PublishedAt.After(kept[j].PublishedAt)
	})

	out := Dedupe(kept)
	if len(out) > maxResults {
		out = out[:maxResults]
	}

	if b, err := json.Marshal(out); err == nil {
		s.Cache.PutPositive(key, b, s.PositiveTTL)
	}
	if s.Archive != nil && len(out) > 0 {
		if err := s.Archive.SaveNews(ctx, out); err != nil {
			s.Log.Error().Err(err).Msg("archiving news failed")
		}
	}
	return out, nil
}

func (s *Service) searchOne(ctx context.Context, entry Entry, query string, opts provider.SearchOpts) ([]provider.NewsItem, error) {
	for attempt := 0; ; attempt++ {
		if err := entry.Limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		items, err := entry.Provider.Search(ctx, query, opts)
		if err == nil {
			return items, nil
		}
		again, delay := s.Retry.Decide(err, attempt)
		if !again {
			return nil, err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
