package serp

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserConfig controls the headless Chrome page source.
type BrowserConfig struct {
	// ExecPath overrides chromedp's Chrome discovery.
	ExecPath string
	Timeout  time.Duration
	// Settle is how long to wait after navigation before reading the DOM.
	Settle time.Duration
	// Proxy, if set, is passed to Chrome as --proxy-server.
	Proxy *url.URL
}

// BrowserSource renders result pages in headless Chrome. Each Get starts a
// fresh browser so the user agent can change per request.
type BrowserSource struct {
	cfg BrowserConfig
}

// NewBrowserSource returns a BrowserSource with defaults applied.
func NewBrowserSource(cfg BrowserConfig) *BrowserSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	return &BrowserSource{cfg: cfg}
}

func (b *BrowserSource) allocatorOptions(userAgent string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1366, 768),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}
	if b.cfg.Proxy != nil {
		opts = append(opts, chromedp.ProxyServer(b.cfg.Proxy.String()))
	}
	return opts
}

// Get implements PageSource.
func (b *BrowserSource) Get(ctx context.Context, searchURL, userAgent string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.allocatorOptions(userAgent)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html, location string
	tasks := chromedp.Tasks{chromedp.Navigate(searchURL)}
	if b.cfg.Settle > 0 {
		tasks = append(tasks, chromedp.Sleep(b.cfg.Settle))
	}
	tasks = append(tasks,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return nil, &FetchError{URL: searchURL, Err: fmt.Errorf("browser: %w", err)}
	}

	if source, blocked := analyzeRendered(location, html); blocked {
		return nil, &FetchError{URL: searchURL, BlockedBy: source}
	}
	return []byte(html), nil
}
