// Package news orchestrates the news-search cascade and owns the
// canonicalization and deduplication of results pulled from overlapping
// providers.
package news

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var mobilePrefixRe = regexp.MustCompile(`^(m\.|mobile\.|www\.)`)

// CanonicalURL reduces a URL to a stable identity for deduplication: the
// host loses its mobile/www prefix, the query string and fragment are
// dropped, the trailing slash is trimmed and the scheme is forced to https.
// It is a pure function of its input; on an unparseable URL the input is
// returned unchanged.
func CanonicalURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	host := mobilePrefixRe.ReplaceAllString(strings.ToLower(u.Host), "")
	path := strings.TrimRight(u.Path, "/")
	return "https://" + host + path
}

var punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
var spaceRe = regexp.MustCompile(`\s+`)

// TitleHash hashes the normalized title: lowercased, punctuation stripped,
// whitespace collapsed. Titles differing only in case or punctuation hash
// identically.
func TitleHash(title string) string {
	normalized := strings.ToLower(strings.TrimSpace(title))
	normalized = punctRe.ReplaceAllString(normalized, "")
	normalized = spaceRe.ReplaceAllString(normalized, " ")
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum[:16])
}
