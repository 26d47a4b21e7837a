package news

import (
	"net/url"
	"regexp"
	"strings"
)

// MinContentLength is the floor below which a record adds no value. Filtered
// records are dropped before deduplication so they never occupy a seen-set
// slot that a fuller duplicate could have filled.
const MinContentLength = 100

var homepagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://[^/]+/?$`),
	regexp.MustCompile(`^https?://[^/]+/index\.(html|php|aspx)$`),
	regexp.MustCompile(`^https?://[^/]+/(home|homepage|trang-chu)/?$`),
	regexp.MustCompile(`^https?://[^/]+/(category|tag|archive|section)/?$`),
}

var articleIndicators = []string{
	".html", "-post-", "/news/", "/article/", "/story/", "/bai-viet/", "/tin-tuc/",
}

var datePathRe = regexp.MustCompile(`/\d{4}/\d{2}/\d{2}/|/\d{8}/`)

// isLikelyArticle rejects homepage, category and otherwise slug-less links
// that search providers sometimes return instead of articles.
func isLikelyArticle(rawURL, title string) bool {
	lower := strings.ToLower(rawURL)
	for _, re := range homepagePatterns {
		if re.MatchString(lower) {
			return false
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.Trim(u.Path, "/")
	if len(path) < 10 {
		return false
	}
	if strings.HasPrefix(path, "category/") || strings.HasPrefix(path, "tag/") ||
		strings.HasPrefix(path, "section/") || strings.HasPrefix(path, "archive/") {
		return false
	}
	if len(title) < 20 {
		return false
	}
	for _, ind := range articleIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	if datePathRe.MatchString(lower) {
		return true
	}
	// Long hyphenated slugs are articles on every outlet we pull from.
	return len(path) > 30 && strings.Count(path, "-") > 2
}

// vietnameseChars covers the diacritics that only occur in Vietnamese text.
const vietnameseChars = "àáạảãâầấậẩẫăằắặẳẵèéẹẻẽêềếệểễìíịỉĩòóọỏõôồốộổỗơờớợởỡùúụủũưừứựửữỳýỵỷỹđ"

// DetectLanguage classifies a query as "vi" or "en" by scanning for
// Vietnamese diacritics.
func DetectLanguage(query string) string {
	lower := strings.ToLower(query)
	for _, r := range lower {
		if strings.ContainsRune(vietnameseChars, r) {
			return "vi"
		}
	}
	return "en"
}
