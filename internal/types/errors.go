package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrMissingCategory     = errors.New("category is required")
	ErrInvalidLimit        = errors.New("limits must be >= 0")
	ErrHostUnreachable     = errors.New("every page fetch failed; crawled host unreachable")
	ErrAmbiguousResolution = errors.New("site name did not resolve to a single domain")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrNoFetcher           = errors.New("no fetcher available for request")
	ErrProxyExhausted      = errors.New("all proxies exhausted")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur during parsing. A missing field is a
// parse omission and is reported with Field set; callers substitute the
// field's default instead of failing.
type ParseError struct {
	URL      string
	Selector string
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse error for %s (field=%s selector=%q): %v", e.URL, e.Field, e.Selector, e.Err)
	}
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the annotation pipeline.
type PipelineError struct {
	Stage  string
	Record *AnnotatedRecord
	Err    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
