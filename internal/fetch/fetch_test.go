package fetch

import (
	"encoding/base64"
	"testing"
)

func TestDecodeAggregatorURL(t *testing.T) {
	embedded := "https://site.example/a/article-title"
	seg := base64.RawURLEncoding.EncodeToString([]byte("garbage-prefix" + embedded + "\xd2\x01garbage-suffix"))
	wrapped := "https://news.google.com/rss/articles/" + seg

	got, ok := decodeAggregatorURL(wrapped)
	if !ok {
		t.Fatalf("expected decode to succeed")
	}
	if got != embedded {
		t.Errorf("got %q, want %q", got, embedded)
	}
}

func TestDecodeAggregatorURLFallback(t *testing.T) {
	seg := base64.RawURLEncoding.EncodeToString([]byte("no url in here at all"))
	wrapped := "https://news.google.com/rss/articles/" + seg

	_, ok := decodeAggregatorURL(wrapped)
	if ok {
		t.Error("expected decode to fail when no embedded URL is present")
	}
}

func TestIsAggregatorURL(t *testing.T) {
	if !isAggregatorURL("https://news.google.com/rss/articles/CBMi") {
		t.Error("expected aggregator match")
	}
	if isAggregatorURL("https://example.com/article") {
		t.Error("expected no aggregator match")
	}
}

func TestDetectBotProtection(t *testing.T) {
	cases := []struct {
		name   string
		html   string
		vendor string
	}{
		{"datadome", `<script src="https://js.datadome.co/tags.js"></script>`, "DataDome"},
		{"cloudflare", `Checking your browser before accessing example.com`, "Cloudflare"},
		{"perimeterx", `<div id="px-captcha"></div>`, "PerimeterX"},
		{"distil", `<div class="distil_r_captcha"></div>`, "Distil"},
		{"clean", `<html><body>Hello world</body></html>`, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := detectBotProtection([]byte(c.html))
			if got != c.vendor {
				t.Errorf("got vendor %q, want %q", got, c.vendor)
			}
		})
	}
}

func TestErrorHumanMessage(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindTimeout}, "Failed to reach source (Timeout)"},
		{&Error{Kind: KindNotFound}, "Article not found (404)"},
		{&Error{Kind: KindBlocked, Host: "evil.example"}, "Domain blocked: evil.example"},
		{&Error{Kind: KindBotProtection, Host: "evil.example"}, "Domain blocked: evil.example"},
	}
	for _, c := range cases {
		if got := c.err.HumanMessage(); got != c.want {
			t.Errorf("got %q, want %q", got, c.want)
		}
	}
}
