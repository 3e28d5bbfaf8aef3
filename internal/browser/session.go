// Package browser wraps go-rod with the session and tab operations the
// exploration needs: navigate, settle, inventory capture, click, back
// navigation and screenshots. One Session drives one Chrome instance.
package browser

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/taotie111/browser-use/internal/logger"
)

// Options configures the browser session.
type Options struct {
	Width      int
	Height     int
	Headless   bool
	ProfileDir string // Chrome/Chromium profile directory for authenticated sessions
	// SettleTimeout bounds the network-idle wait and element lookups.
	SettleTimeout time.Duration
	// ScreenshotMaxWidth bounds captured screenshots; zero keeps the
	// original size.
	ScreenshotMaxWidth int
}

// Session drives a single Chrome instance. The page field always points at
// the tab currently being acted on; tabs is the session's ordered ledger of
// known tabs, with the root page at index 0.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	tabs    []*rod.Page
	opts    Options
}

// Launch starts Chrome, opens startURL and waits for it to settle.
func Launch(startURL string, opts Options) (*Session, error) {
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = 5 * time.Second
	}

	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	var s *Session
	err := rod.Try(func() {
		u := l.MustLaunch()
		b := rod.New().ControlURL(u).MustConnect()
		page := b.MustPage(startURL)
		page.MustSetViewport(opts.Width, opts.Height, 1, false)
		s = &Session{browser: b, page: page, tabs: []*rod.Page{page}, opts: opts}
	})
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	s.WaitSettle()
	return s, nil
}

// Close cleans up browser resources.
func (s *Session) Close() {
	if s.page != nil {
		_ = rod.Try(func() { s.page.MustClose() })
	}
	if s.browser != nil {
		_ = rod.Try(func() { s.browser.MustClose() })
	}
}

// Navigate loads url in the current tab and waits for the load event.
func (s *Session) Navigate(url string) error {
	err := rod.Try(func() {
		s.page.MustNavigate(url)
		s.page.MustWaitLoad()
	})
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// CurrentURL returns the location of the current tab, empty on failure.
func (s *Session) CurrentURL() string {
	var u string
	if err := rod.Try(func() {
		u = s.page.MustEval(`() => window.location.href`).String()
	}); err != nil {
		logger.Warn("current url: %v", err)
		return ""
	}
	return u
}

// Title returns the document title of the current tab, empty on failure.
func (s *Session) Title() string {
	var t string
	if err := rod.Try(func() {
		t = s.page.MustEval(`() => document.title`).String()
	}); err != nil {
		logger.Warn("page title: %v", err)
		return ""
	}
	return t
}

// WaitSettle waits for the load event, then for network idle with a bounded
// timeout, then briefly polls for visible interactive elements so
// client-rendered pages are not captured empty. Timeouts degrade silently;
// the caller proceeds with whatever state is observable.
func (s *Session) WaitSettle() {
	_ = rod.Try(func() { s.page.MustWaitLoad() })

	// Bounded so persistent connections (websockets, polling) cannot hang
	// the crawl.
	s.page.Timeout(s.opts.SettleTimeout).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()

	s.waitForInteractiveElements(s.opts.SettleTimeout)
}

// waitForInteractiveElements polls until interactive elements appear or the
// timeout elapses.
func (s *Session) waitForInteractiveElements(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	checkInterval := 200 * time.Millisecond

	for time.Now().Before(deadline) {
		count := 0
		err := rod.Try(func() {
			count = s.page.MustEval(`() => {
				const sels = 'button, [role="button"], input:not([type="hidden"]), textarea, a[href], select';
				let visible = 0;
				document.querySelectorAll(sels).forEach(el => { if (el.offsetParent) visible++; });
				return visible;
			}`).Int()
		})
		if err == nil && count > 0 {
			// Small grace period for any final renders.
			time.Sleep(300 * time.Millisecond)
			return
		}
		time.Sleep(checkInterval)
	}
}

// Click locates selector and clicks it. The lookup is bounded by the settle
// timeout; a missing element or failed click surfaces as an error for the
// caller to classify.
func (s *Session) Click(selector string) error {
	el, err := s.page.Timeout(s.opts.SettleTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %s", selector)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// GoBack navigates the current tab one history entry back and waits for the
// load event.
func (s *Session) GoBack() error {
	err := rod.Try(func() {
		s.page.MustNavigateBack()
		s.page.MustWaitLoad()
	})
	if err != nil {
		return fmt.Errorf("navigate back: %w", err)
	}
	return nil
}

// TabCount refreshes the tab ledger from the browser and returns the number
// of open tabs. Newly discovered tabs append in discovery order, so a tab
// spawned by the latest click lands at the end.
func (s *Session) TabCount() (int, error) {
	pages, err := s.browser.Pages()
	if err != nil {
		return 0, fmt.Errorf("list tabs: %w", err)
	}

	open := map[proto.TargetTargetID]*rod.Page{}
	for _, p := range pages {
		open[p.TargetID] = p
	}

	kept := s.tabs[:0]
	for _, t := range s.tabs {
		if _, ok := open[t.TargetID]; ok {
			kept = append(kept, t)
			delete(open, t.TargetID)
		}
	}
	s.tabs = kept
	for _, p := range pages {
		if _, ok := open[p.TargetID]; ok {
			s.tabs = append(s.tabs, p)
		}
	}

	return len(s.tabs), nil
}

// CurrentTab returns the ledger index of the tab being driven.
func (s *Session) CurrentTab() int {
	for i, t := range s.tabs {
		if t == s.page {
			return i
		}
	}
	return 0
}

// SwitchTab points the session at the tab with the given ledger index.
func (s *Session) SwitchTab(i int) error {
	if i < 0 || i >= len(s.tabs) {
		return fmt.Errorf("switch tab: no tab at index %d", i)
	}
	s.page = s.tabs[i]
	if err := rod.Try(func() { s.page.MustActivate() }); err != nil {
		return fmt.Errorf("activate tab %d: %w", i, err)
	}
	return nil
}

// CloseTab closes the tab with the given ledger index. When the closed tab
// was current, the session falls back to the root tab.
func (s *Session) CloseTab(i int) error {
	if i < 0 || i >= len(s.tabs) {
		return fmt.Errorf("close tab: no tab at index %d", i)
	}
	if i == 0 {
		return fmt.Errorf("close tab: refusing to close the root tab")
	}

	closed := s.tabs[i]
	if err := rod.Try(func() { closed.MustClose() }); err != nil {
		return fmt.Errorf("close tab %d: %w", i, err)
	}
	s.tabs = append(s.tabs[:i], s.tabs[i+1:]...)
	if s.page == closed {
		s.page = s.tabs[0]
	}
	return nil
}
