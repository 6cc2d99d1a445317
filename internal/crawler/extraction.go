package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/parser"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// Extractor walks each resolved site's review pages and parses review
// records. Pages of one site are fetched strictly in order; distinct sites
// may run in parallel up to the configured concurrency.
type Extractor struct {
	pages       PageSource
	markup      parser.Markup
	baseURL     string
	concurrency int
	logger      *slog.Logger
}

// NewExtractor creates an Extractor. pages should already carry the
// review-phase pacing.
func NewExtractor(pages PageSource, markup parser.Markup, cfg *config.Config, logger *slog.Logger) *Extractor {
	concurrency := cfg.Extraction.SiteConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Extractor{
		pages:       pages,
		markup:      markup,
		baseURL:     strings.TrimRight(cfg.Site.BaseURL, "/"),
		concurrency: concurrency,
		logger:      logger.With("component", "extraction"),
	}
}

// Extract returns the records of every site, grouped by site in the order
// of sites and by page within a site. pageLimit 0 means no cap. The only
// error is the context's.
func (e *Extractor) Extract(ctx context.Context, sites []types.ResolvedSite, pageLimit int) ([]types.ReviewRecord, error) {
	perSite := make([][]types.ReviewRecord, len(sites))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, site := range sites {
		g.Go(func() error {
			recs, err := e.extractSite(gctx, site, pageLimit)
			perSite[i] = recs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, recs := range perSite {
		total += len(recs)
	}
	records := make([]types.ReviewRecord, 0, total)
	for _, recs := range perSite {
		records = append(records, recs...)
	}
	return records, nil
}

func (e *Extractor) extractSite(ctx context.Context, site types.ResolvedSite, pageLimit int) ([]types.ReviewRecord, error) {
	start := time.Now()
	var records []types.ReviewRecord

	page := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, ok := e.pages.Fetch(ctx, e.ReviewURL(site, page), page)
		if !ok {
			e.logger.Warn("review page unavailable", "site", site, "page", page)
		}

		recs, hasNext, err := e.markup.ReviewPage(body, site)
		if err != nil {
			e.logger.Warn("review page unparseable", "site", site, "page", page, "error", err)
		}
		records = append(records, recs...)

		if NextReviewState(hasNext, page, pageLimit) == StateDone {
			break
		}
		page++
	}

	e.logger.Info("site extracted",
		"site", site,
		"pages", page,
		"records", len(records),
		"duration", time.Since(start),
	)
	return records, nil
}

// ReviewURL builds the URL of a site's review page.
func (e *Extractor) ReviewURL(site types.ResolvedSite, page int) string {
	return fmt.Sprintf("%s/review/%s?page=%d", e.baseURL, url.PathEscape(string(site)), page)
}
