package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const minHTMLTextLen = 50

var sanitizer = bluemonday.UGCPolicy()

var markdownConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// extractHTML applies readable-content extraction (main-article density
// heuristics) to raw HTML bytes and pulls og:image/twitter:image for the
// lead image. It rejects payloads with an empty title or under
// minHTMLTextLen characters of extracted text.
func extractHTML(raw []byte) (*Result, error) {
	doc, err := parseHTML(raw)
	if err != nil {
		return nil, &ErrReadabilityFailed{Reason: "malformed HTML: " + err.Error()}
	}

	title := findTitle(doc)
	if title == "" {
		title = findMeta(doc, "og:title")
	}

	match, err := extractDensity(doc, title, minHTMLTextLen)
	if err != nil {
		return nil, &ErrReadabilityFailed{Reason: err.Error()}
	}
	if match.Title == "" || len(match.Text) < minHTMLTextLen {
		return nil, &ErrReadabilityFailed{Reason: "title or extracted text too short"}
	}

	clean := sanitizer.Sanitize(match.HTML)
	markdown, err := markdownConverter.ConvertString(clean)
	if err != nil {
		// Fall back to the plain extracted text rather than failing the
		// whole extraction over a markdown-conversion error.
		markdown = match.Text
	}

	return &Result{
		Title:    match.Title,
		Content:  markdown,
		ImageURL: leadImage(doc),
	}, nil
}

// leadImage reads og:image, falling back to twitter:image, from the same
// parsed document the density extractor already walked — goquery wraps
// the existing *html.Node tree rather than re-parsing the bytes.
func leadImage(doc *html.Node) string {
	gq := goquery.NewDocumentFromNode(doc)
	if content, ok := gq.Find(`meta[property="og:image"]`).Attr("content"); ok && content != "" {
		return strings.TrimSpace(content)
	}
	if content, ok := gq.Find(`meta[name="twitter:image"]`).Attr("content"); ok && content != "" {
		return strings.TrimSpace(content)
	}
	return ""
}
