// Package extract turns raw fetched bytes into {title, content, image_url}
// via one of three strategies, dispatched on content-type and URL shape:
// PDF content-stream extraction, video-host synthetic content, or
// readable-content density extraction for everything else.
package extract

import (
	"net/url"
	"path"
	"strings"
)

// Extract dispatches raw (with contentType and the final resolved URL) to
// the appropriate strategy and returns the populated Result, or an
// *ErrReadabilityFailed when no strategy could produce usable content.
func Extract(raw []byte, contentType, finalURL string) (*Result, error) {
	switch {
	case isPDF(contentType, finalURL):
		title, text, err := extractPDF(raw)
		if err != nil {
			return nil, &ErrReadabilityFailed{Reason: err.Error()}
		}
		if title == "" {
			title = basename(finalURL)
		}
		if title == "" || text == "" {
			return nil, &ErrReadabilityFailed{Reason: "empty PDF text or title"}
		}
		return &Result{Title: title, Content: text}, nil

	case isVideoHost(finalURL):
		return extractVideo(raw)

	default:
		return extractHTML(raw)
	}
}

func isPDF(contentType, rawURL string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(rawURL), ".pdf")
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// basename returns the last path segment of rawURL, used as a PDF title
// fallback when no usable text line was found.
func basename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
