package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client   *http.Client
	cfg      *config.FetcherConfig
	proxyMgr *ProxyManager
	logger   *slog.Logger
}

// NewHTTPFetcher creates a new HTTP fetcher. proxyMgr may be nil.
func NewHTTPFetcher(cfg *config.Config, logger *slog.Logger, proxyMgr *ProxyManager) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.Fetcher.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Fetcher.MaxIdleConns / 2,
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Fetcher.TLSInsecure,
		},
		DisableCompression: true, // decoded below, brotli included
	}
	if proxyMgr != nil {
		transport.Proxy = proxyMgr.ProxyFunc()
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.Fetcher.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= cfg.Fetcher.MaxRedirects {
			return fmt.Errorf("max redirects (%d) reached", cfg.Fetcher.MaxRedirects)
		}
		return nil
	}

	// No client-wide timeout: each attempt carries its own deadline.
	client := &http.Client{
		Transport:     transport,
		Jar:           jar,
		CheckRedirect: redirectPolicy,
	}

	return &HTTPFetcher{
		client:   client,
		cfg:      &cfg.Fetcher,
		proxyMgr: proxyMgr,
		logger:   logger.With("component", "http_fetcher"),
	}, nil
}

// Fetch executes a GET and returns the response. Transport failures and
// attempt timeouts are reported as retryable FetchErrors; cancellation of
// the caller's context never is.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	attemptCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	proxy := f.pickProxy()
	if proxy != nil {
		attemptCtx = WithProxy(attemptCtx, proxy)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URLString(), nil)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: false}
	}

	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Set(key, v)
		}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		f.markProxy(proxy, err)
		return nil, &types.FetchError{
			URL:       req.URLString(),
			Err:       err,
			Retryable: ctx.Err() == nil,
		}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(httpResp.Header.Get("Retry-After"))
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP 429: rate limited (retry after %s)", retryAfter),
			Retryable:  true,
			RetryAfter: retryAfter,
		}
	}

	if httpResp.StatusCode >= 500 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(snippet))),
			Retryable:  true,
		}
	}

	var reader io.Reader = httpResp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}

	reader, err = decompressReader(httpResp, reader)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Err: err, Retryable: false}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		// A body cut short by the attempt deadline is a timeout like any other.
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: httpResp.StatusCode,
			Err:        err,
			Retryable:  ctx.Err() == nil && !errors.Is(err, context.Canceled),
		}
	}
	duration := time.Since(start)

	f.markProxy(proxy, nil)
	resp := types.NewResponse(req, httpResp, body, duration)

	f.logger.Debug("fetch complete",
		"url", req.URLString(),
		"status", resp.StatusCode,
		"size", len(body),
		"duration", duration,
	)

	return resp, nil
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return "http"
}

func (f *HTTPFetcher) pickProxy() *url.URL {
	if f.proxyMgr == nil {
		return nil
	}
	return f.proxyMgr.Next()
}

func (f *HTTPFetcher) markProxy(proxy *url.URL, err error) {
	if f.proxyMgr == nil || proxy == nil {
		return
	}
	if err != nil {
		f.proxyMgr.MarkFailed(proxy, err)
		return
	}
	f.proxyMgr.MarkHealthy(proxy)
}

// decompressReader wraps a reader with the decoder for the response's
// Content-Encoding (gzip, deflate, br).
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// parseRetryAfter parses the Retry-After header value, either integer
// seconds or an HTTP-date, capped at two minutes.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}
