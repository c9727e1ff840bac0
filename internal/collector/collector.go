// Package collector runs Phase 1: pulling every configured source's feed,
// resolving aggregator redirects, and producing a deduplicated list of
// articles still worth crawling.
package collector

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/rssingest/rssingest/internal/feedparse"
)

// CollectedArticle is one feed item worth crawling.
type CollectedArticle struct {
	URL         string
	ResolvedURL string
	PubDate     int64
	HasPubDate  bool
	FeedSource  string
}

func (a CollectedArticle) dedupeKey() string {
	if a.ResolvedURL != "" {
		return a.ResolvedURL
	}
	return a.URL
}

// Source is the minimal shape of a registered feed the collector reads.
type Source struct {
	ID   string
	URL  string
	Name string
}

// FeedFetcher retrieves a feed's raw bytes, trying direct fetch first and
// falling back to the browser when the caller's feed parser rejects the
// direct result.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, url string) ([]byte, error)
	FetchFeedViaBrowser(ctx context.Context, url string) ([]byte, error)
	ResolveRedirect(ctx context.Context, rawURL string) (string, error)
}

// ProcessedChecker reports whether a URL already has a fully processed
// Article record (content >= 200 chars and evaluated).
type ProcessedChecker interface {
	IsFullyProcessed(ctx context.Context, url string) (bool, error)
}

const redirectBatchSize = 5

// Collector runs collectAll across every configured source.
type Collector struct {
	fetch     FeedFetcher
	processed ProcessedChecker
	logger    *slog.Logger
}

// New creates a Collector.
func New(fetch FeedFetcher, processed ProcessedChecker, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{fetch: fetch, processed: processed, logger: logger}
}

// CollectAll runs Phase 1 across sources, batching sources at concurrency
// and, within a feed, batching redirect resolution at redirectBatchSize.
// A feed-level failure is logged and does not abort the overall collect.
func (c *Collector) CollectAll(ctx context.Context, sources []Source, concurrency int) []CollectedArticle {
	if concurrency <= 0 {
		concurrency = 5
	}

	var (
		mu      sync.Mutex
		all     []CollectedArticle
		seen    = make(map[string]bool)
		wg      sync.WaitGroup
		tickets = make(chan struct{}, concurrency)
	)

	for _, src := range sources {
		src := src
		tickets <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-tickets }()

			items, err := c.collectSource(ctx, src)
			if err != nil {
				c.logger.Warn("collector: feed failed", "source_id", src.ID, "url", src.URL, "error", err)
				return
			}

			mu.Lock()
			for _, item := range items {
				key := item.dedupeKey()
				if seen[key] {
					continue
				}
				seen[key] = true
				all = append(all, item)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return all
}

func (c *Collector) collectSource(ctx context.Context, src Source) ([]CollectedArticle, error) {
	raw, err := c.readFeed(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	feed, err := feedparse.Parse(raw)
	if err != nil {
		raw, err = c.fetch.FetchFeedViaBrowser(ctx, src.URL)
		if err != nil {
			return nil, err
		}
		feed, err = feedparse.Parse(raw)
		if err != nil {
			return nil, err
		}
	}

	var candidates []feedparse.Entry
	for _, entry := range feed.Entries {
		if entry.Link == "" {
			continue
		}
		processed, err := c.processed.IsFullyProcessed(ctx, entry.Link)
		if err != nil {
			c.logger.Warn("collector: processed check failed", "url", entry.Link, "error", err)
			continue
		}
		if processed {
			continue
		}
		candidates = append(candidates, entry)
	}

	return c.resolveRedirects(ctx, candidates, src.Name), nil
}

// readFeed reads file:// sources locally (read-only, no retry or
// write-back — these are treated as fixtures, not live endpoints) and
// everything else via the Fetcher's direct tier.
func (c *Collector) readFeed(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, "file://") {
		return readFileURL(rawURL)
	}
	return c.fetch.FetchFeed(ctx, rawURL)
}

// resolveRedirects resolves aggregator links in batches of redirectBatchSize
// to bound peak concurrent browser contexts.
func (c *Collector) resolveRedirects(ctx context.Context, entries []feedparse.Entry, feedSource string) []CollectedArticle {
	out := make([]CollectedArticle, 0, len(entries))

	for start := 0; start < len(entries); start += redirectBatchSize {
		end := start + redirectBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		results := make([]CollectedArticle, len(batch))
		var wg sync.WaitGroup
		for i, entry := range batch {
			i, entry := i, entry
			wg.Add(1)
			go func() {
				defer wg.Done()
				resolved, err := c.fetch.ResolveRedirect(ctx, entry.Link)
				if err != nil {
					c.logger.Warn("collector: redirect resolution failed", "url", entry.Link, "error", err)
					resolved = entry.Link
				}
				article := CollectedArticle{
					URL:        entry.Link,
					FeedSource: feedSource,
				}
				if resolved != entry.Link {
					article.ResolvedURL = resolved
				}
				if entry.HasDate {
					article.PubDate = entry.Published.UnixMilli()
					article.HasPubDate = true
				}
				results[i] = article
			}()
		}
		wg.Wait()
		out = append(out, results...)
	}

	return out
}
