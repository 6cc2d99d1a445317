package fetcher

import (
	"net/http"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
)

// ProfilePool is a fixed, ordered pool of header profiles. Consecutive page
// indexes map to different profiles so paginated walks do not present a
// single client fingerprint.
type ProfilePool struct {
	names   []string
	headers []http.Header
}

// NewProfilePool builds a pool from config. An empty list falls back to the
// built-in profiles, so the pool always holds at least one entry.
func NewProfilePool(profiles []config.HeaderProfile) *ProfilePool {
	if len(profiles) == 0 {
		profiles = config.DefaultHeaderProfiles()
	}
	p := &ProfilePool{
		names:   make([]string, 0, len(profiles)),
		headers: make([]http.Header, 0, len(profiles)),
	}
	for _, prof := range profiles {
		h := make(http.Header, len(prof.Headers))
		for k, v := range prof.Headers {
			h.Set(k, v)
		}
		p.names = append(p.names, prof.Name)
		p.headers = append(p.headers, h)
	}
	return p
}

// Len returns the pool size.
func (p *ProfilePool) Len() int { return len(p.headers) }

// Index returns the pool slot used for pageIndex.
func (p *ProfilePool) Index(pageIndex int) int {
	i := pageIndex % len(p.headers)
	if i < 0 {
		i += len(p.headers)
	}
	return i
}

// For returns a copy of the headers selected for pageIndex.
func (p *ProfilePool) For(pageIndex int) http.Header {
	return p.headers[p.Index(pageIndex)].Clone()
}

// Name returns the profile name selected for pageIndex.
func (p *ProfilePool) Name(pageIndex int) string {
	return p.names[p.Index(pageIndex)]
}
