package extract

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

func parseHTML(raw []byte) (*html.Node, error) {
	return html.Parse(strings.NewReader(string(raw)))
}

var videoHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"youtu.be":        true,
	"m.youtube.com":   true,
}

// isVideoHost reports whether rawURL's host is a known video host.
func isVideoHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return videoHosts[strings.ToLower(u.Hostname())]
}

// extractVideo builds synthetic content for a video-host page from its
// <title> and description meta tag, reusing the same x/net/html walk the
// density extractor uses rather than a separate parser.
func extractVideo(raw []byte) (*Result, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, &ErrReadabilityFailed{Reason: "malformed HTML: " + err.Error()}
	}

	title := findTitle(doc)
	description := findMeta(doc, "description")
	if title == "" || description == "" {
		return nil, &ErrReadabilityFailed{Reason: "video page missing title or description"}
	}

	return &Result{
		Title:    title,
		Content:  fmt.Sprintf("%s\n\nDescription:\n%s", title, description),
		ImageURL: findMeta(doc, "og:image"),
	}, nil
}
