// Package fetch implements the two-tier content retrieval strategy: a
// direct HTTP client for the common case, and a headless-browser fallback
// for sites that reject the direct request or hide content behind
// JavaScript. It also resolves aggregator redirects and recognizes
// commercial bot-protection challenge pages.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rssingest/rssingest/horosafe"
	"github.com/rssingest/rssingest/internal/browser"
)

// Result is the outcome of a successful Fetch.
type Result struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// BlockedDomains is the subset of the Store the Fetcher needs to consult
// and update as it discovers hostile hosts.
type BlockedDomains interface {
	IsBlocked(ctx context.Context, host string) (bool, error)
	Block(ctx context.Context, host, reason string) error
}

// Config configures a Fetcher.
type Config struct {
	// DirectTimeout bounds the direct HTTP attempt. Default: 15s.
	DirectTimeout time.Duration
	// RedirectTimeout bounds a browser-fallback navigation used only for
	// aggregator redirect resolution. Default: 30s.
	RedirectTimeout time.Duration
	// BrowserTimeout bounds a browser-fallback navigation used for content
	// fetch (401/403 fallback) and for FetchFeedViaBrowser. Default: 45s.
	BrowserTimeout time.Duration
	// MaxBytes caps the direct-tier response body. Default: 10MB.
	MaxBytes int64
	// UserAgent sent with the direct HTTP request.
	UserAgent string
	Profile   browser.Profile
}

func (c *Config) defaults() {
	if c.DirectTimeout <= 0 {
		c.DirectTimeout = 15 * time.Second
	}
	if c.RedirectTimeout <= 0 {
		c.RedirectTimeout = 30 * time.Second
	}
	if c.BrowserTimeout <= 0 {
		c.BrowserTimeout = 45 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = browser.DefaultProfile.UserAgent
	}
	if c.Profile == (browser.Profile{}) {
		c.Profile = browser.DefaultProfile
	}
}

// Fetcher implements the direct-then-browser-fallback content retrieval
// strategy described for the crawl phase.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	browser *browser.Manager
	blocked BlockedDomains
}

// New creates a Fetcher. mgr is the shared browser singleton; it is lazily
// started on first fallback use.
func New(cfg Config, mgr *browser.Manager, blocked BlockedDomains) *Fetcher {
	cfg.defaults()
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.DirectTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := horosafe.ValidateURL(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked (SSRF): %w", err)
				}
				return nil
			},
		},
		browser: mgr,
		blocked: blocked,
	}
}

// CloseBrowser shuts down the browser singleton. Called by the Worker at
// the end of Phase 2 and in the teardown block.
func (f *Fetcher) CloseBrowser() error {
	if f.browser == nil {
		return nil
	}
	return f.browser.Close()
}

// ResolveRedirect resolves aggregator-wrapped links (currently Google
// News's `news.google.com/rss/articles/...` form) to the underlying
// article URL. Non-aggregator URLs are returned unchanged. Nothing here
// consults a stored Article.resolved_url, and the collector calls this for
// every feed item that is not yet fully processed, so an unfinished
// aggregator link is resolved again on each cycle.
func (f *Fetcher) ResolveRedirect(ctx context.Context, rawURL string) (string, error) {
	if !isAggregatorURL(rawURL) {
		return rawURL, nil
	}
	if resolved, ok := decodeAggregatorURL(rawURL); ok {
		return resolved, nil
	}

	tab, err := f.openBrowserTab(ctx, rawURL, f.cfg.RedirectTimeout)
	if err != nil {
		return "", err
	}
	defer tab.Close()
	return tab.URL, nil
}

// FetchFeed retrieves a feed document via the direct tier only, with the
// fetcher's own direct timeout. The collector falls back to
// FetchFeedViaBrowser itself when the parser rejects the result, so no
// blocked-domain short-circuit or status-based tiering applies here.
func (f *Fetcher) FetchFeed(ctx context.Context, rawURL string) ([]byte, error) {
	res, status, err := f.fetchDirect(ctx, rawURL, f.cfg.DirectTimeout)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("fetch feed: status %d", status)
	}
	return res.Body, nil
}

// FetchFeedViaBrowser retrieves a feed document's rendered HTML/XML via the
// headless-browser tier, for feeds whose direct response the parser could
// not make sense of.
func (f *Fetcher) FetchFeedViaBrowser(ctx context.Context, rawURL string) ([]byte, error) {
	tab, err := f.openBrowserTab(ctx, rawURL, f.cfg.BrowserTimeout)
	if err != nil {
		return nil, fmt.Errorf("fetch feed via browser: %w", err)
	}
	defer tab.Close()

	html, err := tab.HTML()
	if err != nil {
		return nil, fmt.Errorf("fetch feed via browser: %w", err)
	}
	return []byte(html), nil
}

// Fetch retrieves url following the strategy in §4.2: blocked-domain
// short-circuit, direct HTTP GET, browser fallback on 401/403, bot-
// protection detection on the fallback response, and immediate failure
// (no fallback) on 404.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = f.cfg.DirectTimeout
	}

	host := hostOf(rawURL)
	if blocked, err := f.blocked.IsBlocked(ctx, host); err == nil && blocked {
		return nil, &Error{Kind: KindBlocked, Host: host}
	}

	res, status, err := f.fetchDirect(ctx, rawURL, timeout)
	switch {
	case err != nil && status == 0:
		// No response at all: transport failure or timeout before we got a
		// status line.
		if isTimeout(err) {
			return nil, &Error{Kind: KindTimeout, Host: host, Cause: err}
		}
		return nil, &Error{Kind: KindTransport, Host: host, Cause: err}

	case status == http.StatusNotFound:
		return nil, &Error{Kind: KindNotFound, Host: host, StatusCode: status}

	case status >= 200 && status < 300:
		return res, nil

	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return f.fetchBrowserFallback(ctx, rawURL, host, fmt.Sprintf("HTTP %d", status))

	default:
		return nil, &Error{Kind: KindTransport, Host: host, StatusCode: status, Cause: err}
	}
}

// isTimeout reports whether err stems from a transport timeout or a
// context deadline.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (f *Fetcher) fetchDirect(ctx context.Context, rawURL string, timeout time.Duration) (*Result, int, error) {
	if err := horosafe.ValidateURL(rawURL); err != nil {
		return nil, 0, fmt.Errorf("URL blocked (SSRF): %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	// "accepting responses with status < 500" — read the body for anything
	// the caller might still use (401/403 included, for bot-detect context).
	if resp.StatusCode >= 500 {
		return nil, resp.StatusCode, fmt.Errorf("server error")
	}

	body, err := horosafe.LimitedReadAll(resp.Body, f.cfg.MaxBytes)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
	}, resp.StatusCode, nil
}

func (f *Fetcher) fetchBrowserFallback(ctx context.Context, rawURL, host, reason string) (*Result, error) {
	tab, err := f.openBrowserTab(ctx, rawURL, f.cfg.BrowserTimeout)
	if err != nil {
		_ = f.blocked.Block(ctx, host, fmt.Sprintf("%s + browser fetch failed", reason))
		return nil, &Error{Kind: KindBlocked, Host: host, Cause: err}
	}
	defer tab.Close()

	html, err := tab.HTML()
	if err != nil {
		_ = f.blocked.Block(ctx, host, fmt.Sprintf("%s + browser fetch failed", reason))
		return nil, &Error{Kind: KindBlocked, Host: host, Cause: err}
	}

	if vendor := detectBotProtection([]byte(html)); vendor != "" {
		_ = f.blocked.Block(ctx, host, vendor+" bot protection")
		return nil, &Error{Kind: KindBotProtection, Host: host}
	}

	return &Result{
		Body:        []byte(html),
		ContentType: "text/html; charset=utf-8",
		FinalURL:    tab.URL,
	}, nil
}

// openBrowserTab opens a stealth tab, recreating the browser singleton
// exactly once if it was found already closed.
func (f *Fetcher) openBrowserTab(ctx context.Context, rawURL string, timeout time.Duration) (*browser.Tab, error) {
	tab, err := browser.Open(ctx, f.browser, rawURL, timeout, f.cfg.Profile)
	if err != nil && strings.Contains(err.Error(), "has been closed") {
		if _, rerr := f.browser.Recreate(ctx); rerr != nil {
			return nil, fmt.Errorf("browser: recreate after close: %w", rerr)
		}
		tab, err = browser.Open(ctx, f.browser, rawURL, timeout, f.cfg.Profile)
	}
	return tab, err
}

// hostOf extracts the lowercase host from a URL, degrading to the raw
// string if it doesn't parse.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Hostname())
}
