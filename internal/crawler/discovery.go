package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/parser"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// PageSource fetches one page. A false ok means the page is treated as
// empty; implementations handle their own retries.
type PageSource interface {
	Fetch(ctx context.Context, rawURL string, pageIndex int) (body string, ok bool)
}

// Discoverer walks a category's listing pages and resolves the businesses
// found there to crawlable sites.
type Discoverer struct {
	pages    PageSource
	search   PageSource
	markup   parser.Markup
	baseURL  string
	policy   ResolvePolicy
	maxPages int
	logger   *slog.Logger
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(pages PageSource, markup parser.Markup, cfg *config.Config, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		pages:   pages,
		search:  pages,
		markup:  markup,
		baseURL: strings.TrimRight(cfg.Site.BaseURL, "/"),
		policy: ResolvePolicy{
			Suffixes:       cfg.Site.DomainSuffixes,
			RemovalMarkers: cfg.Site.RemovalMarkers,
		},
		maxPages: cfg.Discovery.MaxPages,
		logger:   logger.With("component", "discovery"),
	}
}

// WithSearchSource fetches disambiguation searches through p instead of the
// listing source.
func (d *Discoverer) WithSearchSource(p PageSource) *Discoverer {
	d.search = p
	return d
}

// Discover returns the deduplicated candidates of a category (removed
// businesses excluded) and, in the same first-seen order, the sites the
// first siteLimit candidates resolved to. siteLimit 0 keeps every candidate.
func (d *Discoverer) Discover(ctx context.Context, category, location string, siteLimit int) (types.Discovery, error) {
	names, err := d.walkListing(ctx, category, location)
	if err != nil {
		return types.Discovery{}, err
	}

	candidates := Dedupe(names)
	retained := candidates
	if siteLimit > 0 && siteLimit < len(retained) {
		retained = retained[:siteLimit]
	}

	resolved := NewOrderedSet(len(retained))
	for i, name := range retained {
		if err := ctx.Err(); err != nil {
			return types.Discovery{}, err
		}

		res := Resolve(name, d.lookup(ctx, name, i+1), d.policy)
		switch res.Outcome {
		case Removed:
			d.logger.Debug("dropping removed site", "candidate", name)
		case Unresolved:
			d.logger.Debug("candidate not resolved",
				"candidate", name,
				"error", types.ErrAmbiguousResolution,
			)
		default:
			if !resolved.Add(string(res.Site)) {
				d.logger.Debug("site already resolved", "candidate", name, "site", res.Site)
			}
		}
	}

	out := types.Discovery{
		Candidates: make([]types.SiteCandidate, 0, len(candidates)),
		Resolved:   make([]types.ResolvedSite, 0, resolved.Len()),
	}
	for _, name := range candidates {
		if d.policy.IsRemoved(name) {
			continue
		}
		out.Candidates = append(out.Candidates, types.SiteCandidate(name))
	}
	for _, site := range resolved.Items() {
		out.Resolved = append(out.Resolved, types.ResolvedSite(site))
	}

	d.logger.Info("discovery complete",
		"category", category,
		"location", location,
		"candidates", len(out.Candidates),
		"resolved", len(out.Resolved),
	)
	return out, nil
}

// walkListing collects business names from every listing page in order.
func (d *Discoverer) walkListing(ctx context.Context, category, location string) ([]string, error) {
	var names []string
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, ok := d.pages.Fetch(ctx, d.ListingURL(category, location, page), page)
		if !ok {
			// Parsed as an empty page, which carries no next control.
			d.logger.Warn("listing page unavailable", "category", category, "page", page)
		}

		pageNames, hasNext, err := d.markup.ListingPage(body)
		if err != nil {
			d.logger.Warn("listing page unparseable", "page", page, "error", err)
		}
		names = append(names, pageNames...)

		d.logger.Debug("listing page parsed", "page", page, "names", len(pageNames), "has_next", hasNext)

		if NextListingState(hasNext) == StateDone {
			break
		}
		if d.maxPages > 0 && page >= d.maxPages {
			d.logger.Warn("listing walk stopped at discovery.max_pages", "pages", page)
			break
		}
	}
	return names, nil
}

// lookup returns the deferred search for name, issued only if Resolve asks.
func (d *Discoverer) lookup(ctx context.Context, name string, pageIndex int) func() []types.Suggestion {
	return func() []types.Suggestion {
		body, ok := d.search.Fetch(ctx, d.SearchURL(name), pageIndex)
		if !ok {
			return nil
		}
		suggestions, err := d.markup.SearchPage(body)
		if err != nil {
			d.logger.Warn("search page unparseable", "candidate", name, "error", err)
			return nil
		}
		return suggestions
	}
}

// ListingURL builds the URL of a category listing page.
func (d *Discoverer) ListingURL(category, location string, page int) string {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	if location != "" {
		q.Set("location", location)
	}
	return d.baseURL + "/categories/" + url.PathEscape(category) + "?" + q.Encode()
}

// SearchURL builds the disambiguation search URL for a business name.
func (d *Discoverer) SearchURL(name string) string {
	return d.baseURL + "/search?" + url.Values{"query": {name}}.Encode()
}
