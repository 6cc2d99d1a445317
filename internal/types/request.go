package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request tags identify which crawl phase issued a request.
const (
	TagListing = "listing"
	TagSearch  = "search"
	TagReview  = "review"
)

// Request represents an HTTP GET issued by the crawler.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Method is the HTTP method. Always GET for the crawler.
	Method string

	// Headers are the HTTP headers to send, usually a header profile.
	Headers http.Header

	// PageIndex is the 1-based page number within the current pagination walk.
	PageIndex int

	// Attempt is 0 for the primary attempt and 1 for the retry.
	Attempt int

	// Timeout bounds this attempt. Zero means the fetcher default.
	Timeout time.Duration

	// Tag categorizes this request (listing, search, review).
	Tag string

	// Meta stores arbitrary metadata attached to this request.
	Meta map[string]any

	// CreatedAt is when this request was created.
	CreatedAt time.Time
}

// NewRequest creates a new GET Request.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	return &Request{
		URL:       u,
		Method:    http.MethodGet,
		Headers:   make(http.Header),
		Meta:      make(map[string]any),
		CreatedAt: time.Now(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Clone creates a deep copy of the request.
func (r *Request) Clone() *Request {
	clone := *r
	if r.URL != nil {
		u := *r.URL
		clone.URL = &u
	}
	clone.Headers = r.Headers.Clone()
	clone.Meta = make(map[string]any, len(r.Meta))
	for k, v := range r.Meta {
		clone.Meta[k] = v
	}
	return &clone
}
