package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// BrowserFetcher implements Fetcher using a headless Chromium driven by Rod.
// It is the fallback for when the review site starts serving script
// challenges to plain HTTP clients.
type BrowserFetcher struct {
	browser  *rod.Browser
	cfg      *config.FetcherConfig
	logger   *slog.Logger
	proxyMgr *ProxyManager
	stealth  bool
	pagePool chan *rod.Page
	maxPages int
}

// BrowserOption configures the BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithStealth applies go-rod/stealth evasions to every page.
func WithStealth() BrowserOption {
	return func(bf *BrowserFetcher) { bf.stealth = true }
}

// WithBrowserProxy launches the browser behind the next proxy in rotation.
func WithBrowserProxy(pm *ProxyManager) BrowserOption {
	return func(bf *BrowserFetcher) { bf.proxyMgr = pm }
}

// WithMaxPages sets the number of idle pages kept for reuse.
func WithMaxPages(n int) BrowserOption {
	return func(bf *BrowserFetcher) { bf.maxPages = n }
}

// NewBrowserFetcher launches a headless browser and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger, opts ...BrowserOption) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:      &cfg.Fetcher,
		logger:   logger.With("component", "browser_fetcher"),
		maxPages: cfg.Extraction.SiteConcurrency,
	}
	for _, opt := range opts {
		opt(bf)
	}
	if bf.maxPages < 1 {
		bf.maxPages = 1
	}

	launchURL, err := bf.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	bf.browser = browser
	bf.pagePool = make(chan *rod.Page, bf.maxPages)

	bf.logger.Info("browser fetcher ready",
		"max_pages", bf.maxPages,
		"stealth", bf.stealth,
	)
	return bf, nil
}

func (bf *BrowserFetcher) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if bf.proxyMgr != nil {
		if proxyURL := bf.proxyMgr.Next(); proxyURL != nil {
			l = l.Proxy(proxyURL.String())
		}
	}
	return l.Launch()
}

// Fetch navigates to the request URL and returns the rendered markup.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()

	page, err := bf.getPage()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	defer bf.putPage(page)

	timeout := bf.cfg.RetryTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	p := page.Context(attemptCtx)

	if ua := req.Headers.Get("User-Agent"); ua != "" {
		err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: req.Headers.Get("Accept-Language"),
		})
		if err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	extra := make([]string, 0, len(req.Headers)*2)
	for k, vals := range req.Headers {
		if k == "User-Agent" {
			continue
		}
		for _, v := range vals {
			extra = append(extra, k, v)
		}
	}
	if len(extra) > 0 {
		if _, err := p.SetExtraHeaders(extra); err != nil {
			bf.logger.Warn("failed to set headers", "error", err)
		}
	}

	if err := p.Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: ctx.Err() == nil}
	}
	if err := p.WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Debug("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: ctx.Err() == nil}
	}

	finalURL := req.URLString()
	if info, err := p.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	// Rod does not surface the document status code; a rendered page is a 200.
	resp := types.NewBrowserResponse(req, 200, []byte(html), finalURL, duration)

	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)
	return resp, nil
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	close(bf.pagePool)
	for page := range bf.pagePool {
		_ = page.Close()
	}
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}

func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	select {
	case page := <-bf.pagePool:
		return page, nil
	default:
	}
	if bf.stealth {
		return stealth.Page(bf.browser)
	}
	return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

func (bf *BrowserFetcher) putPage(page *rod.Page) {
	_ = page.Navigate("about:blank")

	select {
	case bf.pagePool <- page:
	default:
		_ = page.Close()
	}
}
