package crawler

import (
	"strings"

	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// Outcome classifies how a candidate name was resolved.
type Outcome int

const (
	// Unresolved means no suggestion qualified; the candidate is dropped.
	Unresolved Outcome = iota
	// Direct means the name already ends with a known domain suffix.
	Direct
	// Resolved means a search suggestion supplied the domain.
	Resolved
	// Removed means the listing marks the business as gone.
	Removed
)

func (o Outcome) String() string {
	switch o {
	case Direct:
		return "direct"
	case Resolved:
		return "resolved"
	case Removed:
		return "removed"
	default:
		return "unresolved"
	}
}

// Resolution is the result of resolving one candidate. Site is set only for
// Direct and Resolved.
type Resolution struct {
	Site    types.ResolvedSite
	Outcome Outcome
}

// OK reports whether the candidate maps to a crawlable site.
func (r Resolution) OK() bool {
	return r.Outcome == Direct || r.Outcome == Resolved
}

// ResolvePolicy holds the markers and suffixes resolution relies on.
type ResolvePolicy struct {
	Suffixes       []string
	RemovalMarkers []string
}

// IsRemoved reports whether name carries a removal marker.
func (p ResolvePolicy) IsRemoved(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range p.RemovalMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// HasKnownSuffix reports whether name ends with one of the known suffixes.
func (p ResolvePolicy) HasKnownSuffix(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range p.Suffixes {
		if suffix != "" && strings.HasSuffix(lower, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

// Resolve maps a candidate name to a site. suggestions is only called when
// the name is neither removed nor already domain-like, so the lookup it
// wraps is skipped for those.
func Resolve(name string, suggestions func() []types.Suggestion, policy ResolvePolicy) Resolution {
	if policy.IsRemoved(name) {
		return Resolution{Outcome: Removed}
	}
	if policy.HasKnownSuffix(name) {
		return Resolution{Site: types.ResolvedSite(name), Outcome: Direct}
	}
	if suggestions == nil {
		return Resolution{Outcome: Unresolved}
	}

	for _, s := range suggestions() {
		if s.DisplayName != name {
			continue
		}
		if policy.HasKnownSuffix(s.Domain) {
			return Resolution{Site: types.ResolvedSite(s.Domain), Outcome: Resolved}
		}
	}
	return Resolution{Outcome: Unresolved}
}
