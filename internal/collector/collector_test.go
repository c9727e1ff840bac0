package collector

import (
	"context"
	"errors"
	"testing"
)

type fakeFetcher struct {
	feeds     map[string][]byte
	browser   map[string][]byte
	redirects map[string]string
}

func (f *fakeFetcher) FetchFeed(ctx context.Context, url string) ([]byte, error) {
	if raw, ok := f.feeds[url]; ok {
		return raw, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeFetcher) FetchFeedViaBrowser(ctx context.Context, url string) ([]byte, error) {
	if raw, ok := f.browser[url]; ok {
		return raw, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeFetcher) ResolveRedirect(ctx context.Context, rawURL string) (string, error) {
	if resolved, ok := f.redirects[rawURL]; ok {
		return resolved, nil
	}
	return rawURL, nil
}

type fakeProcessed struct {
	done map[string]bool
}

func (f *fakeProcessed) IsFullyProcessed(ctx context.Context, url string) (bool, error) {
	return f.done[url], nil
}

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Feed</title>
<item><title>One</title><link>https://example.com/a</link></item>
<item><title>Two</title><link>https://example.com/b</link></item>
</channel></rss>`

func TestCollectAll_DedupesAndSkipsProcessed(t *testing.T) {
	f := &fakeFetcher{
		feeds: map[string][]byte{
			"https://feed.example/rss": []byte(sampleRSS),
		},
	}
	p := &fakeProcessed{done: map[string]bool{"https://example.com/b": true}}
	c := New(f, p, nil)

	sources := []Source{{ID: "s1", URL: "https://feed.example/rss", Name: "Feed"}}
	got := c.CollectAll(context.Background(), sources, 5)

	if len(got) != 1 {
		t.Fatalf("expected 1 collected article, got %d", len(got))
	}
	if got[0].URL != "https://example.com/a" {
		t.Errorf("url: got %q", got[0].URL)
	}
}

func TestCollectAll_FeedFailureIsolated(t *testing.T) {
	f := &fakeFetcher{feeds: map[string][]byte{}}
	p := &fakeProcessed{done: map[string]bool{}}
	c := New(f, p, nil)

	sources := []Source{
		{ID: "bad", URL: "https://broken.example/rss"},
		{ID: "ok", URL: "https://feed.example/rss"},
	}
	f.feeds["https://feed.example/rss"] = []byte(sampleRSS)

	got := c.CollectAll(context.Background(), sources, 5)
	if len(got) != 2 {
		t.Fatalf("expected the good feed's 2 items despite the bad feed failing, got %d", len(got))
	}
}

func TestCollectAll_ResolvesRedirects(t *testing.T) {
	rss := `<?xml version="1.0"?><rss version="2.0"><channel>
		<item><link>https://news.google.com/rss/articles/AGG</link></item>
	</channel></rss>`
	f := &fakeFetcher{
		feeds:     map[string][]byte{"https://feed.example/rss": []byte(rss)},
		redirects: map[string]string{"https://news.google.com/rss/articles/AGG": "https://site.example/a"},
	}
	p := &fakeProcessed{done: map[string]bool{}}
	c := New(f, p, nil)

	got := c.CollectAll(context.Background(), []Source{{URL: "https://feed.example/rss"}}, 5)
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].ResolvedURL != "https://site.example/a" {
		t.Errorf("resolved url: got %q", got[0].ResolvedURL)
	}
}
