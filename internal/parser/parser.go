package parser

import (
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// Markup is the narrow contract between the crawler and the review site's
// HTML. Everything that depends on class names, anchors, or embedded data
// fragments lives behind it.
type Markup interface {
	// ListingPage returns business names in document order and whether a
	// next-page control is present.
	ListingPage(body string) (names []string, hasNext bool, err error)

	// SearchPage returns (displayName, domain) suggestions in document order.
	SearchPage(body string) ([]types.Suggestion, error)

	// ReviewPage parses every review block on a site's review page and
	// reports whether a next-page control is present.
	ReviewPage(body string, site types.ResolvedSite) (records []types.ReviewRecord, hasNext bool, err error)
}
