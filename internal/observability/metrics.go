package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// pageCounters groups the page fetch counters of one tag.
type pageCounters struct {
	total   atomic.Int64
	failed  atomic.Int64
	retried atomic.Int64
	millis  atomic.Int64
}

// Metrics tracks operational metrics for runs. It implements
// fetcher.Observer so page fetchers report into it directly.
type Metrics struct {
	// Run metrics
	RunsTotal       atomic.Int64
	RunsFailed      atomic.Int64
	RunsUnreachable atomic.Int64
	ActiveRuns      atomic.Int32

	// Discovery metrics
	SitesKnown    atomic.Int64
	SitesResolved atomic.Int64

	// Review metrics
	ReviewsExtracted    atomic.Int64
	ReviewsPositive     atomic.Int64
	ReviewsNegative     atomic.Int64
	ClassifierFallbacks atomic.Int64
	RecordsExported     atomic.Int64
	ExportErrors        atomic.Int64

	mu    sync.RWMutex
	pages map[string]*pageCounters

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		pages:  make(map[string]*pageCounters),
		logger: logger.With("component", "metrics"),
	}
}

// ObserveFetch records one page fetch.
func (m *Metrics) ObserveFetch(tag string, ok, retried bool, d time.Duration) {
	c := m.counters(tag)
	c.total.Add(1)
	if !ok {
		c.failed.Add(1)
	}
	if retried {
		c.retried.Add(1)
	}
	c.millis.Add(d.Milliseconds())
}

func (m *Metrics) counters(tag string) *pageCounters {
	m.mu.RLock()
	c, ok := m.pages[tag]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok = m.pages[tag]; !ok {
		c = &pageCounters{}
		m.pages[tag] = c
	}
	return c
}

// PageSnapshot returns the fetch counters of one tag.
func (m *Metrics) PageSnapshot(tag string) (total, failed, retried int64) {
	m.mu.RLock()
	c, ok := m.pages[tag]
	m.mu.RUnlock()
	if !ok {
		return 0, 0, 0
	}
	return c.total.Load(), c.failed.Load(), c.retried.Load()
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"reviewscan_runs_total", "Total runs started", "counter", m.RunsTotal.Load()},
		{"reviewscan_runs_failed_total", "Total runs that returned an error", "counter", m.RunsFailed.Load()},
		{"reviewscan_runs_unreachable_total", "Total runs where the review site was never reached", "counter", m.RunsUnreachable.Load()},
		{"reviewscan_active_runs", "Currently active runs", "gauge", int64(m.ActiveRuns.Load())},
		{"reviewscan_sites_known_total", "Total deduplicated candidate sites", "counter", m.SitesKnown.Load()},
		{"reviewscan_sites_resolved_total", "Total resolved sites", "counter", m.SitesResolved.Load()},
		{"reviewscan_reviews_extracted_total", "Total reviews extracted", "counter", m.ReviewsExtracted.Load()},
		{"reviewscan_reviews_positive_total", "Total reviews labelled positive", "counter", m.ReviewsPositive.Load()},
		{"reviewscan_reviews_negative_total", "Total reviews labelled negative", "counter", m.ReviewsNegative.Load()},
		{"reviewscan_classifier_fallbacks_total", "Total reviews labelled by the fallback classifier", "counter", m.ClassifierFallbacks.Load()},
		{"reviewscan_records_exported_total", "Total records exported", "counter", m.RecordsExported.Load()},
		{"reviewscan_export_errors_total", "Total failed exports", "counter", m.ExportErrors.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}

	m.mu.RLock()
	tags := make([]string, 0, len(m.pages))
	for tag := range m.pages {
		tags = append(tags, tag)
	}
	m.mu.RUnlock()
	sort.Strings(tags)

	labelled := []struct {
		name string
		help string
		get  func(*pageCounters) int64
	}{
		{"reviewscan_page_fetches_total", "Total page fetches", func(c *pageCounters) int64 { return c.total.Load() }},
		{"reviewscan_page_fetches_failed_total", "Total page fetches that yielded no body", func(c *pageCounters) int64 { return c.failed.Load() }},
		{"reviewscan_page_fetches_retried_total", "Total page fetches that needed the retry", func(c *pageCounters) int64 { return c.retried.Load() }},
		{"reviewscan_page_fetch_milliseconds_total", "Total time spent fetching pages", func(c *pageCounters) int64 { return c.millis.Load() }},
	}
	for _, metric := range labelled {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		for _, tag := range tags {
			fmt.Fprintf(w, "%s{tag=%q} %d\n", metric.name, tag, metric.get(m.counters(tag)))
		}
	}
}

// StartServer starts a standalone metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return srv
}

// Snapshot returns the run-level metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"runs_total":           m.RunsTotal.Load(),
		"runs_failed":          m.RunsFailed.Load(),
		"runs_unreachable":     m.RunsUnreachable.Load(),
		"active_runs":          int64(m.ActiveRuns.Load()),
		"sites_known":          m.SitesKnown.Load(),
		"sites_resolved":       m.SitesResolved.Load(),
		"reviews_extracted":    m.ReviewsExtracted.Load(),
		"reviews_positive":     m.ReviewsPositive.Load(),
		"reviews_negative":     m.ReviewsNegative.Load(),
		"classifier_fallbacks": m.ClassifierFallbacks.Load(),
		"records_exported":     m.RecordsExported.Load(),
		"export_errors":        m.ExportErrors.Load(),
	}
}
