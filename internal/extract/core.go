package extract

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// contentMatch is the intermediate result shared by the density and CSS
// extraction strategies before the dispatcher builds the final Result.
type contentMatch struct {
	Text  string
	HTML  string
	Title string
	Hash  string
}

// boilerplateTags are structurally boilerplate regardless of content.
var boilerplateTags = map[atom.Atom]bool{
	atom.Nav:    true,
	atom.Footer: true,
	atom.Header: true,
	atom.Aside:  true,
	atom.Form:   true,
}

// boilerplateHints match against id/class attribute values.
var boilerplateHints = []string{
	"nav", "menu", "sidebar", "footer", "header", "banner",
	"advert", "ad-", "ads-", "promo", "social", "share",
	"comment", "related", "newsletter", "subscribe", "cookie",
	"popup", "modal", "breadcrumb",
}

// isBoilerplate reports whether n is (or is very likely) chrome rather
// than article content, based on its tag and its id/class attributes.
func isBoilerplate(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if boilerplateTags[n.DataAtom] {
		return true
	}
	id := strings.ToLower(getAttr(n, "id"))
	class := strings.ToLower(getAttr(n, "class"))
	role := strings.ToLower(getAttr(n, "role"))
	for _, hint := range boilerplateHints {
		if strings.Contains(id, hint) || strings.Contains(class, hint) {
			return true
		}
	}
	return role == "navigation" || role == "banner" || role == "contentinfo"
}

// contentTags are candidate container tags the density scorer considers.
var contentTags = map[atom.Atom]bool{
	atom.Div:     true,
	atom.Section: true,
	atom.Article: true,
	atom.Main:    true,
	atom.P:       true,
	atom.Body:    true,
}

func isContentTag(a atom.Atom) bool {
	return contentTags[a]
}

// collectText gathers visible text under n, skipping script/style/noscript
// and any boilerplate subtree, joining text nodes with single spaces.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
			if isBoilerplate(n) {
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// renderNode serializes n back to an HTML string.
func renderNode(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// hashText returns a short content hash. It is recorded on
// contentMatch.Hash; nothing compares it, so no deduplication is done.
func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum[:8])
}
