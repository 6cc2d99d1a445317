// Package aggregator turns annotated reviews into the nested report returned
// to callers: an overall summary, a per-site breakdown and a summary of the
// recent window.
package aggregator

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/hugaba/api-sentiment-analysis/internal/fetcher"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// DefaultRecentMonths is the recent window used when Options.RecentMonths is unset.
const DefaultRecentMonths = 3

// Counts splits a review count by sentiment.
type Counts struct {
	Pos int `json:"pos"`
	Neg int `json:"neg"`
}

// Clouds holds one word cloud per sentiment.
type Clouds struct {
	Pos WordCloud `json:"pos"`
	Neg WordCloud `json:"neg"`
}

// Summary is the statistical shape shared by every report scope.
type Summary struct {
	NbReviewAnalysed int    `json:"nb_review_analysed"`
	NbReview         Counts `json:"nb_review"`
	WordCloud        Clouds `json:"word_cloud"`

	// Set only on the top-level summary of a live run.
	NbConcurrent         *int `json:"nb_concurrent,omitempty"`
	NbConcurrentAnalysed *int `json:"nb_concurrent_analysed,omitempty"`
}

// Details maps each site to its own Summary, in first-seen order.
type Details struct {
	sites  []types.ResolvedSite
	bySite map[types.ResolvedSite]Summary
}

// Sites returns the sites in first-seen order.
func (d Details) Sites() []types.ResolvedSite { return d.sites }

// Len returns the number of sites.
func (d Details) Len() int { return len(d.sites) }

// Get returns the summary for site.
func (d Details) Get(site types.ResolvedSite) (Summary, bool) {
	s, ok := d.bySite[site]
	return s, ok
}

// MarshalJSON encodes the details as an object keyed by site in first-seen order.
func (d Details) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, site := range d.sites {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(site))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(d.bySite[site])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keyed by site, keeping document order.
func (d *Details) UnmarshalJSON(data []byte) error {
	out := Details{bySite: make(map[types.ResolvedSite]Summary)}
	err := decodeOrdered(data, func(key string, raw json.RawMessage) error {
		var s Summary
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		site := types.ResolvedSite(key)
		if _, dup := out.bySite[site]; !dup {
			out.sites = append(out.sites, site)
		}
		out.bySite[site] = s
		return nil
	})
	if err != nil {
		return err
	}
	*d = out
	return nil
}

// Report is the artifact returned for a run.
type Report struct {
	Summary Summary `json:"summary"`
	Details Details `json:"details"`
	Recent  Summary `json:"last_3_month"`

	Run *RunInfo `json:"run,omitempty"`
}

// RunInfo describes the live run that produced a report.
type RunInfo struct {
	ID         string            `json:"id"`
	Category   string            `json:"category"`
	Location   string            `json:"location,omitempty"`
	SiteLimit  int               `json:"site_limit"`
	PageLimit  int               `json:"page_limit"`
	Classifier string            `json:"classifier"`
	StartedAt  time.Time         `json:"started_at"`
	Stages     map[string]int64  `json:"stage_ms,omitempty"`
	Fetch      *fetcher.Snapshot `json:"fetch,omitempty"`
}

// SiteContext carries discovery totals for a live run.
type SiteContext struct {
	Known    int
	Analysed int
}

// SitesFrom builds the context from a discovery result.
func SitesFrom(d types.Discovery) *SiteContext {
	return &SiteContext{Known: len(d.Candidates), Analysed: len(d.Resolved)}
}

// Options tunes Aggregate. The zero value uses time.Now, DefaultTopN and
// DefaultRecentMonths, and omits the site block.
type Options struct {
	Now          time.Time
	TopN         int
	RecentMonths int

	// Sites is nil for a retrospective run over stored records.
	Sites *SiteContext
}

func (o Options) withDefaults() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.RecentMonths <= 0 {
		o.RecentMonths = DefaultRecentMonths
	}
	return o
}

// RecentCutoff returns the oldest publication time still inside the window.
// The day is clamped to the target month, so May 31 minus three months is
// February 29 (or 28), never early March.
func (o Options) RecentCutoff() time.Time {
	o = o.withDefaults()
	return subMonths(o.Now, o.RecentMonths)
}

func subMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m-time.Month(months), 1, 0, 0, 0, 0, t.Location())
	y, m, _ = first.Date()
	last := time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location()).Day()
	return time.Date(y, m, min(d, last), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Aggregate computes the report. It never fails and never mutates records;
// an empty input gives zero counts and empty clouds.
func Aggregate(records []types.AnnotatedRecord, opts Options) *Report {
	opts = opts.withDefaults()

	report := &Report{
		Summary: summarize(records, opts.TopN),
		Details: details(records, opts.TopN),
		Recent:  summarize(recent(records, opts.RecentCutoff()), opts.TopN),
	}
	if opts.Sites != nil {
		known, analysed := opts.Sites.Known, opts.Sites.Analysed
		report.Summary.NbConcurrent = &known
		report.Summary.NbConcurrentAnalysed = &analysed
	}
	return report
}

func summarize(records []types.AnnotatedRecord, topN int) Summary {
	var pos, neg [][]string
	for _, r := range records {
		if r.Sentiment == types.SentimentPositive {
			pos = append(pos, r.Tokens)
		} else {
			neg = append(neg, r.Tokens)
		}
	}
	return Summary{
		NbReviewAnalysed: len(records),
		NbReview:         Counts{Pos: len(pos), Neg: len(neg)},
		WordCloud: Clouds{
			Pos: BuildWordCloud(pos, topN),
			Neg: BuildWordCloud(neg, topN),
		},
	}
}

func details(records []types.AnnotatedRecord, topN int) Details {
	d := Details{bySite: make(map[types.ResolvedSite]Summary)}
	groups := make(map[types.ResolvedSite][]types.AnnotatedRecord)
	for _, r := range records {
		if _, seen := groups[r.Site]; !seen {
			d.sites = append(d.sites, r.Site)
		}
		groups[r.Site] = append(groups[r.Site], r)
	}
	for _, site := range d.sites {
		d.bySite[site] = summarize(groups[site], topN)
	}
	return d
}

func recent(records []types.AnnotatedRecord, cutoff time.Time) []types.AnnotatedRecord {
	var out []types.AnnotatedRecord
	for _, r := range records {
		if r.PublishedAt == nil || r.PublishedAt.Before(cutoff) {
			continue
		}
		out = append(out, r)
	}
	return out
}
