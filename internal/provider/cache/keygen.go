package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Key builds a stable cache key from the provider identity and the request
// parameters. The readable prefix keeps cache directories inspectable; the
// hash guards against symbols or queries that are unsafe as filenames.
func Key(providerName string, parts ...string) string {
	joined := providerName + "|" + strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(joined))
	prefix := sanitize(providerName)
	return fmt.Sprintf("%s_%x", prefix, sum[:12])
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() > 32 {
		return b.String()[:32]
	}
	return b.String()
}
