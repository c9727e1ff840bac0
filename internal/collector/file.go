package collector

import (
	"fmt"
	"net/url"
	"os"
)

// readFileURL reads a file:// source. These are treated as read-only test
// fixtures per the feed parser's file-scheme support, not first-class,
// writable input: no retry, no mutation of the referenced file.
func readFileURL(rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("collector: parse file url: %w", err)
	}
	return os.ReadFile(u.Path)
}
