package news

import (
	"findata/internal/provider"
)

// Dedupe removes duplicate records, preserving order so the highest-priority
// occurrence of each identity survives. Two records are duplicates when
// their canonical URLs match or their normalized titles hash equally. Input
// is expected already sorted by priority (provider order, then score/date).
func Dedupe(items []provider.NewsItem) []provider.NewsItem {
	seenURLs := make(map[string]struct{}, len(items))
	seenTitles := make(map[string]struct{}, len(items))

	out := make([]provider.NewsItem, 0, len(items))
	for _, item := range items {
		if len(item.Content) < MinContentLength {
			continue
		}
		if !isLikelyArticle(item.URL, item.Title) {
			continue
		}

		canonical := CanonicalURL(item.URL)
		titleHash := TitleHash(item.Title)
		if _, dup := seenURLs[canonical]; dup {
			continue
		}
		if _, dup := seenTitles[titleHash]; dup {
			continue
		}
		seenURLs[canonical] = struct{}{}
		seenTitles[titleHash] = struct{}{}

		item.CanonicalURL = canonical
		item.TitleHash = titleHash
		out = append(out, item)
	}
	return out
}
