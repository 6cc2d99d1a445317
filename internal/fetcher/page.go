package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// Observer receives one call per page fetch, after the retry (if any).
type Observer interface {
	ObserveFetch(tag string, ok, retried bool, d time.Duration)
}

// Stats counts page fetches. One Stats is shared by every PageFetcher
// derived from the same root.
type Stats struct {
	attempted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	reached   atomic.Int64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Attempted int64 `json:"attempted"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Retried   int64 `json:"retried"`
	Reached   int64 `json:"reached"`
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Attempted: s.attempted.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
		Retried:   s.retried.Load(),
		Reached:   s.reached.Load(),
	}
}

// Unreachable reports whether pages were attempted but the host never
// answered a single one, with any status.
func (s Snapshot) Unreachable() bool {
	return s.Attempted > 0 && s.Succeeded == 0 && s.Reached == 0
}

// PageFetcher turns a Fetcher into the crawler's page contract: rotate the
// header profile by page index, bound the primary attempt, retry exactly
// once with a longer bound, and degrade a double failure to an empty page.
type PageFetcher struct {
	fetcher        Fetcher
	profiles       *ProfilePool
	primaryTimeout time.Duration
	retryTimeout   time.Duration
	pacer          Pacer
	tag            string
	stats          *Stats
	observer       Observer
	challenges     bool
	logger         *slog.Logger
}

// PageOption configures a PageFetcher.
type PageOption func(*PageFetcher)

// WithObserver reports every page fetch to o.
func WithObserver(o Observer) PageOption {
	return func(p *PageFetcher) { p.observer = o }
}

// WithProfiles overrides the header profile pool.
func WithProfiles(pool *ProfilePool) PageOption {
	return func(p *PageFetcher) { p.profiles = pool }
}

// NewPageFetcher wraps f with the page contract configured by cfg.
func NewPageFetcher(f Fetcher, cfg *config.FetcherConfig, logger *slog.Logger, opts ...PageOption) *PageFetcher {
	p := &PageFetcher{
		fetcher:        f,
		profiles:       NewProfilePool(cfg.HeaderProfiles),
		primaryTimeout: cfg.PrimaryTimeout,
		retryTimeout:   cfg.RetryTimeout,
		challenges:     cfg.DetectChallenges,
		stats:          &Stats{},
		logger:         logger.With("component", "page_fetcher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Paced returns a PageFetcher that waits on pacer before every fetch and
// tags requests with tag. Stats are shared with p.
func (p *PageFetcher) Paced(tag string, pacer Pacer) *PageFetcher {
	c := *p
	c.tag = tag
	c.pacer = pacer
	return &c
}

// Stats returns the shared counters.
func (p *PageFetcher) Stats() *Stats { return p.stats }

// Fetch returns the body of rawURL and whether it was fetched. A page that
// fails twice yields ("", false); callers treat it as an empty page.
func (p *PageFetcher) Fetch(ctx context.Context, rawURL string, pageIndex int) (string, bool) {
	if p.pacer != nil {
		if err := p.pacer.Wait(ctx); err != nil {
			return "", false
		}
	}
	if ctx.Err() != nil {
		return "", false
	}

	p.stats.attempted.Add(1)
	start := time.Now()

	body, err := p.attempt(ctx, rawURL, pageIndex, 0, p.primaryTimeout)
	retried := false
	if err != nil && p.shouldRetry(ctx, err) {
		retried = true
		p.stats.retried.Add(1)
		p.logger.Debug("retrying page fetch",
			"url", rawURL,
			"page", pageIndex,
			"error", err,
		)
		body, err = p.attempt(ctx, rawURL, pageIndex, 1, p.retryTimeout)
	}

	if p.observer != nil {
		p.observer.ObserveFetch(p.tag, err == nil, retried, time.Since(start))
	}

	if err != nil {
		p.stats.failed.Add(1)
		if ctx.Err() == nil {
			p.logger.Warn("page fetch failed",
				"url", rawURL,
				"page", pageIndex,
				"retried", retried,
				"error", err,
			)
		}
		return "", false
	}

	p.stats.succeeded.Add(1)
	return body, true
}

func (p *PageFetcher) attempt(ctx context.Context, rawURL string, pageIndex, attempt int, timeout time.Duration) (string, error) {
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return "", &types.FetchError{URL: rawURL, Err: err, Retryable: false}
	}
	req.Headers = p.profiles.For(pageIndex)
	req.PageIndex = pageIndex
	req.Attempt = attempt
	req.Timeout = timeout
	req.Tag = p.tag

	resp, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		var fe *types.FetchError
		if errors.As(err, &fe) && fe.StatusCode > 0 {
			p.stats.reached.Add(1)
		}
		return "", err
	}

	p.stats.reached.Add(1)
	if !resp.IsSuccess() {
		return "", &types.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
			Retryable:  false,
		}
	}
	body := string(resp.Body)
	if p.challenges {
		if kind := DetectChallenge(body); kind != "" {
			return "", &types.FetchError{
				URL:        rawURL,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("%w: %s", ErrChallenge, kind),
				Retryable:  true,
			}
		}
	}
	return body, nil
}

// shouldRetry allows the single retry for timeouts, transport failures, 5xx
// and 429, never for a cancelled caller.
func (p *PageFetcher) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var fe *types.FetchError
	if errors.As(err, &fe) {
		return fe.IsRetryable()
	}
	return true
}
