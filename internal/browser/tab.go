package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Profile describes the fingerprint a Tab presents to the target site.
type Profile struct {
	UserAgent string
	Locale    string
	Timezone  string
	Width     int
	Height    int
}

// DefaultProfile is a common desktop Chrome/Windows fingerprint.
var DefaultProfile = Profile{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	Locale:   "en-US",
	Timezone: "America/New_York",
	Width:    1366,
	Height:   768,
}

// consentSelectors are checked, in order, for a small set of common cookie
// consent buttons. Only the first match is clicked.
var consentSelectors = []string{
	`button#onetrust-accept-btn-handler`,
	`button[aria-label="Accept all"]`,
	`button[aria-label="Accept All"]`,
	`#sp_message_iframe_1`,
	`.fc-cta-consent`,
	`button:has-text("Accept")`,
	`button:has-text("I agree")`,
}

// Tab wraps a stealth-initialized Rod page: fresh fingerprint, consent
// handling, and lazy-content scrolling. The page is opened in the browser's
// default context, not in a separate isolated (incognito) context.
type Tab struct {
	Page    *rod.Page
	URL     string
	Profile Profile
}

// Open creates a fresh stealth page, navigates to pageURL, waits up to 2s
// for the page's idle callback, opportunistically dismisses a consent
// dialog, and scrolls halfway down to trigger lazy-loaded content.
func Open(ctx context.Context, mgr *Manager, pageURL string, timeout time.Duration, profile Profile) (*Tab, error) {
	b, err := mgr.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create stealth page: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	page = page.Context(navCtx)

	if err := applyProfile(page, profile); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: apply profile: %w", err)
	}

	if err := page.Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}

	// Wait up to 2s for window.requestIdleCallback to fire. Network
	// activity itself is not tracked.
	if err := page.WaitIdle(2 * time.Second); err != nil {
		// Non-fatal: slow-polling pages may never go fully idle.
	}

	dismissConsent(page)

	page.MustEval(`() => window.scrollTo(0, document.body.scrollHeight / 2)`)
	time.Sleep(300 * time.Millisecond)

	info, err := page.Info()
	finalURL := pageURL
	if err == nil && info != nil {
		finalURL = info.URL
	}

	return &Tab{Page: page, URL: finalURL, Profile: profile}, nil
}

func applyProfile(page *rod.Page, p Profile) error {
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: p.Width, Height: p.Height, DeviceScaleFactor: 1, Mobile: false,
	}); err != nil {
		return err
	}
	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: p.Timezone}).Call(page); err != nil {
		return err
	}
	if err := (proto.EmulationSetLocaleOverride{Locale: p.Locale}).Call(page); err != nil {
		return err
	}
	_, err := page.SetExtraHeaders([]string{
		"Accept-Language", p.Locale + ",en;q=0.9",
	})
	return err
}

// dismissConsent tries each known consent selector with a short timeout and
// clicks the first one found. Absence of any consent dialog is the common
// case and not an error.
func dismissConsent(page *rod.Page) {
	for _, sel := range consentSelectors {
		el, err := page.Timeout(500 * time.Millisecond).Element(sel)
		if err != nil || el == nil {
			continue
		}
		_ = el.Click(proto.InputMouseButtonLeft, 1)
		return
	}
}

// HTML returns the fully rendered document as outer HTML.
func (t *Tab) HTML() (string, error) {
	return t.Page.HTML()
}

// Close closes the underlying page.
func (t *Tab) Close() error {
	if t.Page == nil {
		return nil
	}
	return t.Page.Close()
}
