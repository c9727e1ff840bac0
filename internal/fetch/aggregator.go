package fetch

import (
	"encoding/base64"
	"regexp"
	"strings"
)

var aggregatorPath = regexp.MustCompile(`^https?://news\.google\.com/rss/articles/([^/?#]+)`)

var embeddedURLPattern = regexp.MustCompile(`https?://[A-Za-z0-9\-._~:/?#\[\]@!$&()*+,;=%]+`)

// isAggregatorURL reports whether rawURL matches the known Google News
// aggregator redirect shape.
func isAggregatorURL(rawURL string) bool {
	return aggregatorPath.MatchString(rawURL)
}

// decodeAggregatorURL attempts to recover the embedded article URL from a
// Google News aggregator link without any network I/O. It returns ok=false
// when the base64 segment doesn't decode, or decodes to bytes with no
// embedded http(s) URL — callers should fall back to the browser resolver.
func decodeAggregatorURL(rawURL string) (string, bool) {
	m := aggregatorPath.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	seg := m[1]

	for _, dec := range []*base64.Encoding{
		base64.RawURLEncoding, base64.URLEncoding,
		base64.RawStdEncoding, base64.StdEncoding,
	} {
		b, err := dec.DecodeString(seg)
		if err != nil {
			continue
		}
		if u := embeddedURLPattern.FindString(string(b)); u != "" {
			return strings.TrimRight(u, "\x00"), true
		}
	}
	return "", false
}
