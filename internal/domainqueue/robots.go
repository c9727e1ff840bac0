package domainqueue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const robotsFetchTimeout = 10 * time.Second
const maxRobotsBody = 1 << 20

// RobotsChecker performs a soft robots.txt politeness check: a disallow
// is reported to the caller as false (the caller may choose to skip it) rather than
// blocking the queue outright, since feed-linked article URLs are not
// crawl-discovered and the site never opted into being crawled in the
// traditional sense. Any failure to fetch or parse robots.txt allows the
// host through — robots enforcement here is advisory, not a gate the rest
// of the pipeline depends on.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
	cache     sync.Map
}

// NewRobotsChecker builds a RobotsChecker using userAgent for both the
// robots.txt fetch and the group lookup within the parsed file.
func NewRobotsChecker(userAgent string, logger *slog.Logger) *RobotsChecker {
	return &RobotsChecker{
		client:    &http.Client{Timeout: robotsFetchTimeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Allowed reports whether rawURL's path may be fetched per the host's
// robots.txt. Fetch or parse failure is logged and treated as allowed.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	data, err := r.load(ctx, parsed)
	if err != nil {
		r.logger.Debug("robots.txt fetch failed, allowing", "host", parsed.Host, "error", err)
		return true
	}

	group := data.FindGroup(r.userAgent)
	if group == nil {
		return true
	}
	return group.Test(parsed.Path)
}

func (r *RobotsChecker) load(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	hostKey := strings.ToLower(parsed.Host)
	if cached, ok := r.cache.Load(hostKey); ok {
		return cached.(*robotstxt.RobotsData), nil
	}

	robotsURL := *parsed
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("domainqueue: robots request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("domainqueue: robots fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		return nil, fmt.Errorf("domainqueue: robots read: %w", err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("domainqueue: robots parse: %w", err)
	}
	r.cache.Store(hostKey, data)
	return data, nil
}
