package types

import (
	"fmt"
	"strings"
	"time"
)

// Default limits applied by the front ends when the caller omits them.
const (
	DefaultSiteLimit = 5
	DefaultPageLimit = 2
)

// RunConfig describes one crawl-and-analyse run. It is not modified once a
// run has started.
type RunConfig struct {
	// Category is the listing key on the review site, e.g. "restaurants_bars".
	Category string `json:"category"`

	// Location scopes the category listing. Empty means unscoped.
	Location string `json:"location,omitempty"`

	// SiteLimit caps the number of deduplicated candidates considered. 0 = no cap.
	SiteLimit int `json:"site_limit"`

	// PageLimit caps review pages walked per site. 0 = no cap.
	PageLimit int `json:"page_limit"`
}

// Validate reports configuration errors in the run parameters.
func (c RunConfig) Validate() error {
	if strings.TrimSpace(c.Category) == "" {
		return ErrMissingCategory
	}
	if c.SiteLimit < 0 || c.PageLimit < 0 {
		return fmt.Errorf("%w: site_limit=%d page_limit=%d", ErrInvalidLimit, c.SiteLimit, c.PageLimit)
	}
	return nil
}

// SiteCandidate is a business display name as listed on a category page.
type SiteCandidate string

// ResolvedSite is a domain-like identifier usable in a review listing URL.
type ResolvedSite string

// Suggestion is one entry of a disambiguation search result page.
type Suggestion struct {
	DisplayName string
	Domain      string
}

// Discovery is the result of walking a category: every deduplicated
// candidate still listed, and the subset that resolved to a crawlable site.
type Discovery struct {
	Candidates []SiteCandidate
	Resolved   []ResolvedSite
}

// ReviewRecord is one parsed review block.
type ReviewRecord struct {
	Site        ResolvedSite `json:"site"`
	RatingLabel string       `json:"rating_label,omitempty"`
	Rating      *int         `json:"rating,omitempty"`
	Title       string       `json:"title"`
	Body        string       `json:"body"`
	PublishedAt *time.Time   `json:"date,omitempty"`
}

// Text returns the text handed to the normalizer and classifier.
func (r ReviewRecord) Text() string {
	return r.Title + " " + r.Body
}

// AnnotatedRecord is a ReviewRecord with the externally produced tokens and
// sentiment label (1 positive, 0 negative).
type AnnotatedRecord struct {
	ReviewRecord
	Tokens    []string `json:"tokens"`
	Sentiment int      `json:"sentiment"`
}

// Sentiment labels.
const (
	SentimentNegative = 0
	SentimentPositive = 1
)
